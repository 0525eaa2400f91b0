// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x_test

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/owi"
	"github.com/GermanBionicSystems/owi/ds248x"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	// Open the default I²C bus.
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer bus.Close()

	// Open the DS2483 1-wire bus master.
	link, err := ds248x.New(bus, 0x18, &ds248x.DefaultOpts)
	if err != nil {
		log.Fatalf("failed to open DS2483: %v", err)
	}

	// List the devices discovered on the bus.
	m := owi.New(link)
	codes, err := m.Discover(0, false)
	if err != nil {
		log.Fatalf("failed to search the bus: %v", err)
	}
	for _, code := range codes {
		fmt.Printf("device found: %s\n", code)
	}
}
