/*
 * Copyright 2025 SharedMemory Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import cmap "github.com/orcaman/concurrent-map/v2"

// openBuffers tracks the buffers this process has mapped, by segment name,
// so components sharing a process can find an existing attachment instead
// of mapping the segment twice.
var openBuffers = cmap.New[*CircularBuffer]()

func registerBuffer(b *CircularBuffer) {
	openBuffers.Set(b.name, b)
}

func deregisterBuffer(name string) {
	openBuffers.Remove(name)
}

// Lookup returns the buffer this process already has open under name.
func Lookup(name string) (*CircularBuffer, bool) {
	return openBuffers.Get(name)
}
