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

import "sync/atomic"

// Segment layout, byte-exact and fixed at creation:
//
//	[ segmentHeader ][ nodeHeader ][ node[0..N-1] ][ payload[0..N-1] ]
//	      64B             64B           64B * N      nodeBufferSize * N
//
// Cursor fields are mutated only with atomic exchange/CAS. nodeCount and
// nodeBufferSize are written once by the creator and read-only afterwards,
// as are each node's next/prev/index/offset.
const (
	nodeHeaderSize = 64
	nodeSize       = 64

	nodeHeaderOffset = segmentHeaderSize
	nodeTableOffset  = nodeHeaderOffset + nodeHeaderSize
)

// nodeHeader mirrors the shared ring header in mapped memory.
type nodeHeader struct {
	nodeCount      int32 // 0x00: ring capacity, >= 2
	nodeBufferSize int32 // 0x04: bytes per node payload
	writeStart     int32 // 0x08: next node the writer reserves
	writeEnd       int32 // 0x0C: first node not yet fully published
	writeLastIndex int32 // 0x10: most recently published node
	_              int32 // 0x14: padding
	// writeLastCounter is -1 until the first publication.
	writeLastCounter int64    // 0x18
	reserved         [32]byte // 0x20-0x3F
}

func (h *nodeHeader) NodeCount() int32 { return atomic.LoadInt32(&h.nodeCount) }

func (h *nodeHeader) NodeBufferSize() int32 { return atomic.LoadInt32(&h.nodeBufferSize) }

func (h *nodeHeader) WriteStart() int32 { return atomic.LoadInt32(&h.writeStart) }
func (h *nodeHeader) CasWriteStart(old, new int32) bool {
	return atomic.CompareAndSwapInt32(&h.writeStart, old, new)
}

func (h *nodeHeader) WriteEnd() int32 { return atomic.LoadInt32(&h.writeEnd) }

func (h *nodeHeader) SetWriteEnd(idx int32) { atomic.StoreInt32(&h.writeEnd, idx) }

func (h *nodeHeader) WriteLastIndex() int32 { return atomic.LoadInt32(&h.writeLastIndex) }

func (h *nodeHeader) SetWriteLastIndex(idx int32) { atomic.StoreInt32(&h.writeLastIndex, idx) }

func (h *nodeHeader) WriteLastCounter() int64 { return atomic.LoadInt64(&h.writeLastCounter) }

func (h *nodeHeader) SetWriteLastCounter(c int64) { atomic.StoreInt64(&h.writeLastCounter, c) }

// node is one ring slot's control record. next/prev form a closed circular
// doubly-linked list assigned once at creation; offset points at the slot's
// payload region within the segment.
type node struct {
	next  int32  // 0x00
	prev  int32  // 0x04
	index int32  // 0x08: self index
	state uint32 // 0x0C: spinlock word guarding writerHeld/readerCount
	// Invariant: never writerHeld == 1 while readerCount > 0.
	writerHeld       int32   // 0x10
	readerCount      int32   // 0x14
	offset           int64   // 0x18: payload byte offset within the segment
	continueCounter  int64   // 0x20: sequence number assigned at reservation
	amountWritten    int64   // 0x28: bytes populated before publish
	reserveWaitTicks int64   // 0x30: accumulated contention wait, nanoseconds
	reserved         [8]byte // 0x38-0x3F
}

// Topology fields are fixed after creation; plain reads are fine once the
// segment's ready flag has been observed.
func (n *node) Next() int32 { return n.next }

func (n *node) Prev() int32 { return n.prev }

func (n *node) Index() int32 { return n.index }

func (n *node) Offset() int64 { return n.offset }

func (n *node) ContinueCounter() int64 { return atomic.LoadInt64(&n.continueCounter) }

func (n *node) SetContinueCounter(c int64) { atomic.StoreInt64(&n.continueCounter, c) }

func (n *node) AmountWritten() int64 { return atomic.LoadInt64(&n.amountWritten) }

func (n *node) SetAmountWritten(a int64) { atomic.StoreInt64(&n.amountWritten, a) }

func (n *node) ReserveWaitTicks() int64 { return atomic.LoadInt64(&n.reserveWaitTicks) }

func (n *node) addReserveWait(d int64) { atomic.AddInt64(&n.reserveWaitTicks, d) }

// payloadTableOffset returns the byte offset of payload[0].
func payloadTableOffset(nodeCount int32) uint64 {
	return nodeTableOffset + nodeSize*uint64(nodeCount)
}

// payloadOffset returns the byte offset of payload[i].
func payloadOffset(nodeCount, nodeBufferSize, i int32) uint64 {
	return payloadTableOffset(nodeCount) + uint64(nodeBufferSize)*uint64(i)
}

// totalSegmentSize is the collaborator header plus the ring structures.
func totalSegmentSize(nodeCount, nodeBufferSize int32) uint64 {
	return payloadTableOffset(nodeCount) + uint64(nodeBufferSize)*uint64(nodeCount)
}
