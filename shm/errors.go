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

import "errors"

var (
	// ErrNodeCountRange means Create was called with fewer than two nodes.
	ErrNodeCountRange = errors.New("shm: node count must be at least 2")

	// ErrNodeBufferSize means Create was called with a non-positive per-node
	// payload size.
	ErrNodeBufferSize = errors.New("shm: node buffer size must be positive")

	// ErrIndexOutOfRange means a node index fell outside [0, nodeCount).
	ErrIndexOutOfRange = errors.New("shm: node index out of range")

	// ErrValueTooLarge means a typed value does not fit in one node payload.
	ErrValueTooLarge = errors.New("shm: value exceeds node buffer size")

	// ErrNotFixedSize means a typed value has no fixed binary encoding.
	ErrNotFixedSize = errors.New("shm: value is not a fixed-size type")

	// ErrReadTimeout means no new data was published within the wait budget.
	// Transient; the caller may retry.
	ErrReadTimeout = errors.New("shm: read timed out waiting for data")

	// ErrContinuityLost means the writer recycled the expected node before
	// this reader consumed it. Not transient: the caller must resynchronize
	// (for example by creating a fresh Reader) or accept the loss.
	ErrContinuityLost = errors.New("shm: data continuity lost, writer overwrote unread data")

	// ErrReaderCountUnderflow means a read hold was released more times than
	// it was taken. Caller misuse.
	ErrReaderCountUnderflow = errors.New("shm: reader count underflow")

	// ErrCursorRace means two threads drove the same Reader concurrently.
	// A Reader instance is single-threaded; use one Reader per thread.
	ErrCursorRace = errors.New("shm: concurrent use of a single reader")

	// ErrSegmentExists means Create found a segment with the same name.
	ErrSegmentExists = errors.New("shm: segment already exists")

	// ErrSegmentInvalid means an opened segment failed header validation.
	ErrSegmentInvalid = errors.New("shm: segment header invalid")

	// ErrNoSpaceOnDevShm means /dev/shm has too little free space for the
	// requested segment.
	ErrNoSpaceOnDevShm = errors.New("shm: not enough free space on /dev/shm")

	// ErrClosed means the buffer was already closed.
	ErrClosed = errors.New("shm: buffer is closed")
)
