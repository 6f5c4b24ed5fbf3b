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

package hostarch

import "testing"

func TestIsCanonical(t *testing.T) {
	for _, tc := range []struct {
		addr Addr
		want bool
	}{
		{0, true},
		{0x00007fffffffffff, true},
		{0x0000800000000000, false},
		{0x7fff000000000000, false},
		{0xffff7fffffffffff, false},
		{0xffff800000000000, true},
		{0xffffffffffffffff, true},
	} {
		if got := tc.addr.IsCanonical(); got != tc.want {
			t.Errorf("%v.IsCanonical() = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestSignExtend(t *testing.T) {
	for _, tc := range []struct {
		addr Addr
		want Addr
	}{
		{0, 0},
		{0x00007fffffffe000, 0x00007fffffffe000},
		{0x0000800000000000, 0xffff800000000000},
		{0x1234800000001000, 0xffff800000001000},
		{0xffff900000000000, 0xffff900000000000},
	} {
		got := tc.addr.SignExtend()
		if got != tc.want {
			t.Errorf("%v.SignExtend() = %v, want %v", tc.addr, got, tc.want)
		}
		if !got.IsCanonical() {
			t.Errorf("%v.SignExtend() = %v is not canonical", tc.addr, got)
		}
	}
}

func TestString(t *testing.T) {
	if got, want := Addr(0xffff800000000000).String(), "0xffff800000000000"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := Addr(0).String(), "0x0"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
