// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import "github.com/pkg/errors"

// wrapStage tags an underlying stage error with the stage name it came
// from (spec.md §7: "an exception from any stage aborts the run and
// propagates outward with a stage tag"). Callers that need the original
// sentinel can still reach it with errors.Cause, since Wrapf preserves
// the chain.
func wrapStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "stage %s", stage)
}
