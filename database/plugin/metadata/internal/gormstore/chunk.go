// Copyright 2025 Blink Labs Software
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

package gormstore

// chunkSize limits the number of values in a single IN clause to stay within
// database variable limits (SQLITE_MAX_VARIABLE_NUMBER, PostgreSQL's 65535
// parameter limit)
const chunkSize = 500

func chunk[T any](values []T) [][]T {
	var ret [][]T
	for len(values) > chunkSize {
		ret = append(ret, values[:chunkSize])
		values = values[chunkSize:]
	}
	if len(values) > 0 {
		ret = append(ret, values)
	}
	return ret
}
