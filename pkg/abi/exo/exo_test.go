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

package exo

import (
	"testing"
)

func TestEnvIDIndex(t *testing.T) {
	for _, tc := range []struct {
		id    EnvID
		index int
	}{
		{0x1000, 0},
		{0x1001, 1},
		{0x2000 | (NEnv - 1), NEnv - 1},
		{0x7ffff3ff, 0x3ff},
	} {
		if got := tc.id.Index(); got != tc.index {
			t.Errorf("%v.Index() = %d, want %d", tc.id, got, tc.index)
		}
	}
	if got := EnvID(0x1001).String(); got != "00001001" {
		t.Errorf("String() = %q, want 00001001", got)
	}
}

func TestPermUserValid(t *testing.T) {
	for _, tc := range []struct {
		perm Perm
		want bool
	}{
		{PermU | PermP, true},
		{PermU | PermP | PermW, true},
		{PermU | PermP | PermShare, true},
		{PermU | PermP | PermAvail, true},
		{PermP, false},
		{PermU, false},
		{0, false},
		{PermU | PermP | 0x1000, false},
		{PermU | PermP | 0x008, false},
	} {
		if got := tc.perm.UserValid(); got != tc.want {
			t.Errorf("%v.UserValid() = %t, want %t", tc.perm, got, tc.want)
		}
	}
}

func TestPermString(t *testing.T) {
	for _, tc := range []struct {
		perm Perm
		want string
	}{
		{0, "-"},
		{PermU | PermP, "-U-P"},
		{PermShare | PermU | PermW | PermP, "SUWP"},
		{PermU | PermP | 0x200, "-U-P|0x200"},
	} {
		if got := tc.perm.String(); got != tc.want {
			t.Errorf("Perm(%#x).String() = %q, want %q", uint32(tc.perm), got, tc.want)
		}
	}
}

func TestAddr(t *testing.T) {
	if !Addr(0x1000).PageAligned() || Addr(0x1001).PageAligned() {
		t.Errorf("PageAligned is wrong")
	}
	if got := Addr(0x1fff).RoundDown(); got != 0x1000 {
		t.Errorf("RoundDown() = %v, want 0x1000", got)
	}
	if NoPage.Mappable() || !Addr(UTop-PageSize).Mappable() {
		t.Errorf("Mappable is wrong around UTop")
	}
}

func TestEnvFree(t *testing.T) {
	entry := func(s EnvStatus) Env {
		return Env{ID: 0x1001, Status: s}
	}
	if !entry(EnvFree).Free() {
		t.Errorf("entry with status %v is not free", EnvFree)
	}
	for _, s := range []EnvStatus{EnvDying, EnvRunnable, EnvRunning, EnvNotRunnable} {
		if entry(s).Free() {
			t.Errorf("entry with status %v is free", s)
		}
	}
}
