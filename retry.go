// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owi

// DefaultResetAttempts is the attempt count used by WithResetRetry when
// given a non-positive one.
const DefaultResetAttempts = 4

// WithResetRetry wraps a link so that Reset retries until a device answers
// with a presence pulse, up to the given number of attempts. Devices that
// are still powering up miss the occasional reset; the wrapper hides such
// transients from the command layer. Link errors are not retried, and all
// other operations pass through unchanged.
func WithResetRetry(l Link, attempts int) Link {
	if attempts <= 0 {
		attempts = DefaultResetAttempts
	}
	r := &retryLink{Link: l, attempts: attempts}
	if pl, ok := l.(PowerLink); ok {
		return &retryPowerLink{retryLink: r, pl: pl}
	}
	return r
}

type retryLink struct {
	Link
	attempts int
}

func (r *retryLink) Reset() (bool, error) {
	for i := 1; ; i++ {
		present, err := r.Link.Reset()
		if present || err != nil || i >= r.attempts {
			return present, err
		}
	}
}

// retryPowerLink keeps the strong pull-up capability of the wrapped link
// visible through the wrapper.
type retryPowerLink struct {
	*retryLink
	pl PowerLink
}

func (r *retryPowerLink) StrongPullup() error {
	return r.pl.StrongPullup()
}
