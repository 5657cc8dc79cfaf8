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
	"fmt"
	"sync/atomic"
	"unsafe"
)

// CircularBuffer is the shared ring container: it owns the layout offsets,
// bounds-checked node access, the one-time initialization performed by the
// creating process, and the name-derived wake signal.
//
// Exactly one process creates a given buffer; all others Open it and only
// ever read nodeCount/nodeBufferSize from the header.
type CircularBuffer struct {
	name           string
	seg            *segment
	evt            *event
	nodeCount      int32
	nodeBufferSize int32
	closed         atomic.Bool
}

// Create builds a fresh buffer: a new segment sized for nodeCount nodes of
// nodeBufferSize bytes each, with the ring topology and header cursors
// initialized, plus the wake signal. The caller becomes the owner.
func Create(name string, nodeCount, nodeBufferSize int32) (*CircularBuffer, error) {
	if nodeCount < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNodeCountRange, nodeCount)
	}
	if nodeBufferSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNodeBufferSize, nodeBufferSize)
	}

	seg, err := createSegment(name, totalSegmentSize(nodeCount, nodeBufferSize))
	if err != nil {
		return nil, err
	}
	b := &CircularBuffer{
		name:           name,
		seg:            seg,
		nodeCount:      nodeCount,
		nodeBufferSize: nodeBufferSize,
	}

	hdr := b.header()
	atomic.StoreInt32(&hdr.nodeCount, nodeCount)
	atomic.StoreInt32(&hdr.nodeBufferSize, nodeBufferSize)
	atomic.StoreInt32(&hdr.writeStart, 0)
	atomic.StoreInt32(&hdr.writeEnd, 0)
	hdr.SetWriteLastIndex(0)
	hdr.SetWriteLastCounter(-1)

	// Fixed ring topology: a closed doubly-linked list over the node table.
	for i := int32(0); i < nodeCount; i++ {
		n := b.nodeRef(i)
		n.next = (i + 1) % nodeCount
		n.prev = (i - 1 + nodeCount) % nodeCount
		n.index = i
		n.offset = int64(payloadOffset(nodeCount, nodeBufferSize, i))
	}
	seg.setReady()

	evt, err := openEvent(name)
	if err != nil {
		_ = seg.close()
		_ = removeSegmentFile(name)
		return nil, err
	}
	b.evt = evt
	registerBuffer(b)
	internalLogger.debugf("created buffer %s: %d nodes of %d bytes", name, nodeCount, nodeBufferSize)
	return b, nil
}

// Open attaches to an existing buffer by name without touching shared state;
// ring geometry is read back from the header.
func Open(name string) (*CircularBuffer, error) {
	seg, err := openSegment(name)
	if err != nil {
		return nil, err
	}
	b := &CircularBuffer{name: name, seg: seg}

	hdr := b.header()
	b.nodeCount = hdr.NodeCount()
	b.nodeBufferSize = hdr.NodeBufferSize()
	if b.nodeCount < 2 || b.nodeBufferSize <= 0 {
		_ = seg.close()
		return nil, fmt.Errorf("%w: header geometry %d x %d",
			ErrSegmentInvalid, b.nodeCount, b.nodeBufferSize)
	}
	if want := totalSegmentSize(b.nodeCount, b.nodeBufferSize); want != uint64(len(seg.mem)) {
		_ = seg.close()
		return nil, fmt.Errorf("%w: geometry needs %d bytes, segment has %d",
			ErrSegmentInvalid, want, len(seg.mem))
	}

	evt, err := openEvent(name)
	if err != nil {
		_ = seg.close()
		return nil, err
	}
	b.evt = evt
	registerBuffer(b)
	internalLogger.debugf("attached buffer %s: %d nodes of %d bytes", name, b.nodeCount, b.nodeBufferSize)
	return b, nil
}

// Name returns the buffer's segment name.
func (b *CircularBuffer) Name() string { return b.name }

// Owner reports whether this process created the segment.
func (b *CircularBuffer) Owner() bool { return b.seg.owner }

// NodeCount returns the ring capacity in nodes.
func (b *CircularBuffer) NodeCount() int32 { return b.nodeCount }

// NodeBufferSize returns the payload bytes per node.
func (b *CircularBuffer) NodeBufferSize() int32 { return b.nodeBufferSize }

func (b *CircularBuffer) header() *nodeHeader {
	return (*nodeHeader)(unsafe.Pointer(uintptr(b.seg.base()) + nodeHeaderOffset))
}

// nodeRef returns node i without bounds checking. Creation-time only.
func (b *CircularBuffer) nodeRef(i int32) *node {
	return (*node)(unsafe.Pointer(uintptr(b.seg.base()) + nodeTableOffset + uintptr(i)*nodeSize))
}

// nodeAt returns node i, failing if i is outside [0, nodeCount).
func (b *CircularBuffer) nodeAt(i int32) (*node, error) {
	if i < 0 || i >= b.nodeCount {
		return nil, fmt.Errorf("%w: index %d, node count %d", ErrIndexOutOfRange, i, b.nodeCount)
	}
	return b.nodeRef(i), nil
}

// payload returns node n's full payload region.
func (b *CircularBuffer) payload(n *node) []byte {
	off := n.Offset()
	return b.seg.mem[off : off+int64(b.nodeBufferSize)]
}

// NewWriter returns a writer over this buffer. The protocol supports a
// single concurrent writer per buffer; the interleaving of two writers on
// the same segment is undefined.
func (b *CircularBuffer) NewWriter() *Writer {
	return &Writer{
		buf: b,
		// Continue the continuity sequence where the segment left off, so
		// a writer re-attaching to a live buffer does not break readers.
		counter: b.header().WriteLastCounter() + 1,
	}
}

// NewReader returns an independent reader with an uninitialized cursor. The
// first read starts from the most recently published node. A Reader must be
// driven by one thread at a time.
func (b *CircularBuffer) NewReader() *Reader {
	r := &Reader{buf: b, readCounter: -1}
	r.readPointer.Store(-1)
	return r
}

// Close detaches from the segment and wake signal. The segment file itself
// stays until Remove, so other processes keep working.
func (b *CircularBuffer) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	deregisterBuffer(b.name)
	var firstErr error
	if b.evt != nil {
		if err := b.evt.close(); err != nil {
			firstErr = err
		}
	}
	if err := b.seg.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Remove deletes a named buffer's backing files. Processes still attached
// keep their mappings; new opens fail.
func Remove(name string) error {
	if err := removeSegmentFile(name); err != nil {
		return err
	}
	return removeEventFile(name)
}
