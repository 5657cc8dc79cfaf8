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

// Package shm implements a single-writer, multi-reader circular buffer laid
// out inside a named shared memory segment, for streaming fixed-size records
// between processes without an intermediate broker.
//
// The buffer is a fixed ring of fixed-size nodes. The writer reserves the
// next node in ring order, fills it, and publishes it; every publication
// carries a strictly increasing continuity counter. Readers are independent:
// each tracks its own cursor, may read the same published node as other
// readers (broadcast, not consume-once), and detects via the continuity
// counter when the writer has lapped it and overwritten data it never saw.
//
// The writer never blocks on readers. A slow reader is lapped, and its next
// read fails with ErrContinuityLost; recovery is the caller's decision.
//
// A typical producer:
//
//	buf, err := shm.Create("samples", 64, 4096)
//	w := buf.NewWriter()
//	n, err := w.Write(block)
//
// And a consumer in another process:
//
//	buf, err := shm.Open("samples")
//	r := buf.NewReader()
//	n, err := r.Read(dst, 10*time.Second)
//
// Node lock acquisition is a busy-wait spin on words in the mapped region and
// is not time bounded: a reader that holds a node forever stalls the writer
// once the ring wraps onto that node. This is a known limitation of the
// protocol, not a bug in a caller.
package shm
