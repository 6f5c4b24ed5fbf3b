// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"strings"

	"gvisor.dev/tss/pkg/ring0"
)

// Bitmap kinds accepted on the command line and in configuration files.
const (
	bitmapNone   = "none"
	bitmapLegacy = "legacy"
	bitmapFull   = "full"
)

var bitmapKinds = strings.Join([]string{bitmapNone, bitmapLegacy, bitmapFull}, ", ")

// layoutOf returns the field layout and size of a task state with the given
// bitmap kind.
func layoutOf(kind string) ([]ring0.Field, uintptr, error) {
	switch kind {
	case bitmapNone:
		tss := ring0.NewTaskState64[ring0.NoIOBitmap]()
		return tss.Layout(), tss.Size(), nil
	case bitmapLegacy:
		tss := ring0.NewTaskState64[ring0.LegacyIOBitmap]()
		return tss.Layout(), tss.Size(), nil
	case bitmapFull:
		tss := ring0.NewTaskState64[ring0.FullIOBitmap]()
		return tss.Layout(), tss.Size(), nil
	default:
		return nil, 0, fmt.Errorf("unknown bitmap kind %q, want one of: %s", kind, bitmapKinds)
	}
}
