// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package preprocess

import (
	"errors"
	"fmt"
)

// ErrBatchLimitExceeded is returned by AddBatch once MaxBatches batches
// have already been absorbed.
var ErrBatchLimitExceeded = errors.New("preprocess: batch limit exceeded")

// ErrInvalidBatchIndex is returned by RemoveBatch for an out-of-range
// index.
var ErrInvalidBatchIndex = errors.New("preprocess: invalid batch index")

// InvariantError reports a violated internal invariant (spec.md §7,
// InternalInvariantViolation): it always indicates a bug in this package,
// never a recoverable input condition.
type InvariantError struct {
	Msg string
}

func (e InvariantError) Error() string {
	return fmt.Sprintf("preprocess: internal invariant violated: %s", e.Msg)
}
