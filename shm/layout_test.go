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

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// The shared structs are the wire format; their sizes and field offsets are
// load-bearing for every process mapping the segment.

func TestSharedStructSizes(t *testing.T) {
	assert.Equal(t, uintptr(segmentHeaderSize), unsafe.Sizeof(segmentHeader{}))
	assert.Equal(t, uintptr(nodeHeaderSize), unsafe.Sizeof(nodeHeader{}))
	assert.Equal(t, uintptr(nodeSize), unsafe.Sizeof(node{}))
}

func TestAtomicFieldAlignment(t *testing.T) {
	// 64-bit atomics require 8-byte alignment.
	assert.Zero(t, unsafe.Offsetof(nodeHeader{}.writeLastCounter)%8)
	assert.Zero(t, unsafe.Offsetof(node{}.offset)%8)
	assert.Zero(t, unsafe.Offsetof(node{}.continueCounter)%8)
	assert.Zero(t, unsafe.Offsetof(node{}.amountWritten)%8)
	assert.Zero(t, unsafe.Offsetof(node{}.reserveWaitTicks)%8)
}

func TestLayoutArithmetic(t *testing.T) {
	const nodes, bufSize = int32(4), int32(8)

	table := payloadTableOffset(nodes)
	assert.Equal(t, uint64(segmentHeaderSize+nodeHeaderSize+nodeSize*4), table)

	for i := int32(0); i < nodes; i++ {
		assert.Equal(t, table+uint64(bufSize)*uint64(i), payloadOffset(nodes, bufSize, i))
	}
	assert.Equal(t, table+uint64(bufSize*nodes), totalSegmentSize(nodes, bufSize))
}

func TestHeaderInitializedOnCreate(t *testing.T) {
	buf := newTestBuffer(t, 3, 128)

	hdr := buf.header()
	assert.Equal(t, int32(3), hdr.NodeCount())
	assert.Equal(t, int32(128), hdr.NodeBufferSize())
	assert.Equal(t, int32(0), hdr.WriteStart())
	assert.Equal(t, int32(0), hdr.WriteEnd())
	assert.Equal(t, int32(0), hdr.WriteLastIndex())
	assert.Equal(t, int64(-1), hdr.WriteLastCounter())
}
