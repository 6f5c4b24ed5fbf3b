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

// Package hostarch contains host arch address operations.
package hostarch

import "fmt"

// Addr represents a 64-bit virtual address. The zero value is the zero
// address.
type Addr uint64

const (
	// VirtualAddressBits is the number of implemented virtual address bits
	// with 4-level paging.
	VirtualAddressBits = 48

	// lowerTop is the highest canonical address in the lower half.
	lowerTop = Addr(1)<<(VirtualAddressBits-1) - 1

	// upperBottom is the lowest canonical address in the upper half.
	upperBottom = ^lowerTop
)

// IsCanonical returns true if bits 63 through VirtualAddressBits-1 of v are
// all equal.
func (v Addr) IsCanonical() bool {
	return v <= lowerTop || v >= upperBottom
}

// SignExtend returns v with bit VirtualAddressBits-1 copied into the upper
// bits, which always yields a canonical address.
func (v Addr) SignExtend() Addr {
	const shift = 64 - VirtualAddressBits
	return Addr(int64(v<<shift) >> shift)
}

// String implements fmt.Stringer.String.
func (v Addr) String() string {
	return fmt.Sprintf("%#x", uint64(v))
}
