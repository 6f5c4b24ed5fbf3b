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

package ring0

import (
	"errors"
	"fmt"
)

// ErrPortNotCovered is returned when a port lies beyond the end of an I/O
// permission bitmap.
var ErrPortNotCovered = errors.New("port not covered by I/O permission bitmap")

// IOPermissionBitmap is a view of the I/O permission bitmap of a task state
// segment. Bit j of byte i controls port 8*i+j: zero allows user mode access
// and one denies it.
//
// From section 18.5.2 "I/O Permission Bit Map" of Intel SDM vol1: I/O
// addresses not spanned by the map are treated as if they had set bits in
// the map.
type IOPermissionBitmap []byte

// Ports returns the number of ports covered by the bitmap.
func (b IOPermissionBitmap) Ports() int {
	return 8 * len(b)
}

func (b IOPermissionBitmap) covers(port uint16) bool {
	return int(port) < b.Ports()
}

// Allowed returns true if user mode may access port.
func (b IOPermissionBitmap) Allowed(port uint16) bool {
	if !b.covers(port) {
		return false
	}
	return b[port/8]&(1<<(port%8)) == 0
}

// Allow permits user mode access to port.
func (b IOPermissionBitmap) Allow(port uint16) error {
	if !b.covers(port) {
		return fmt.Errorf("allow port %#x: %w", port, ErrPortNotCovered)
	}
	b[port/8] &^= 1 << (port % 8)
	return nil
}

// AllowRange permits user mode access to count ports starting at first. The
// bitmap is left unchanged if any of the ports is not covered.
func (b IOPermissionBitmap) AllowRange(first uint16, count int) error {
	if count <= 0 {
		return nil
	}
	if count > b.Ports()-int(first) {
		return fmt.Errorf("allow %d ports from %#x: %w", count, first, ErrPortNotCovered)
	}
	for i := 0; i < count; i++ {
		port := int(first) + i
		b[port/8] &^= 1 << (port % 8)
	}
	return nil
}

// Deny revokes user mode access to port. Ports not covered by the bitmap are
// always denied.
func (b IOPermissionBitmap) Deny(port uint16) {
	if b.covers(port) {
		b[port/8] |= 1 << (port % 8)
	}
}

// DenyAll revokes user mode access to every port.
func (b IOPermissionBitmap) DenyAll() {
	for i := range b {
		b[i] = ioMapDeny
	}
}
