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

package ipc

import (
	"exokern.dev/exokern/pkg/abi/exo"
)

// FindByType returns the ID of the live environment of type t with the
// lowest directory index, or 0 if there is none.
//
// Free entries never match, even when they still record a type from their
// last occupant.
func FindByType(dir Directory, t exo.EnvType) exo.EnvID {
	for i, n := 0, dir.NumEnvs(); i < n; i++ {
		env := dir.Env(i)
		if !env.Free() && env.Type == t {
			return env.ID
		}
	}
	return 0
}
