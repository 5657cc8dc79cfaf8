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
	"encoding/binary"
	"fmt"

	"github.com/valyala/bytebufferpool"
)

// NodeSnapshot is a diagnostics copy of the node a writer or reader most
// recently acted on.
type NodeSnapshot struct {
	Index            int32
	ContinueCounter  int64
	AmountWritten    int64
	ReserveWaitTicks int64
}

// Writer publishes records into the buffer in ring order. The continuity
// counter is writer-local state; only the shared header cursors need atomic
// semantics. A Writer never blocks on readers: once the ring wraps onto a
// node a slow reader still holds, reserve spins until that reader releases
// it, then overwrites the data.
type Writer struct {
	buf     *CircularBuffer
	counter int64 // next continuity counter to assign
	last    NodeSnapshot
}

// reserve claims the node at writeStart exclusively, assigns it the next
// continuity counter, and advances the shared cursor to its successor.
func (w *Writer) reserve() (*node, error) {
	for {
		start := w.buf.header().WriteStart()
		n, err := w.buf.nodeAt(start)
		if err != nil {
			return nil, err
		}
		n.reserveWrite()
		if w.buf.header().CasWriteStart(start, n.Next()) {
			n.SetContinueCounter(w.counter)
			w.counter++
			return n, nil
		}
		// Another writer moved the cursor first. The single-writer contract
		// makes that caller misuse, but back off rather than corrupt the ring.
		n.freeWrite()
		internalLogger.warnf("write cursor moved underneath us, node %d", start)
	}
}

// publish makes the filled node visible: record the publication in the
// header, advance writeEnd, release the write hold, and wake waiting
// readers.
func (w *Writer) publish(n *node) {
	hdr := w.buf.header()
	hdr.SetWriteLastIndex(n.Index())
	hdr.SetWriteLastCounter(n.ContinueCounter())
	hdr.SetWriteEnd(n.Next())
	n.freeWrite()
	w.buf.evt.set()

	w.last = NodeSnapshot{
		Index:            n.Index(),
		ContinueCounter:  n.ContinueCounter(),
		AmountWritten:    n.AmountWritten(),
		ReserveWaitTicks: n.ReserveWaitTicks(),
	}
	writesTotal.Inc()
}

// Write copies p into the next node and publishes it. At most
// NodeBufferSize bytes are written; any excess is silently truncated, so
// callers must size records to fit. Returns the byte count written.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.reserve()
	if err != nil {
		return 0, err
	}
	written := copy(w.buf.payload(n), p)
	n.SetAmountWritten(int64(written))
	w.publish(n)
	return written, nil
}

// WriteFunc reserves a node and hands its payload region to fill. The
// publish step runs on every exit path, including a failed fill, so a node
// lock is never left held: the count fill reported, clamped to the payload
// bounds, is recorded as the amount written and the node is published as-is.
func (w *Writer) WriteFunc(fill func(dst []byte) (int, error)) (written int, err error) {
	n, rerr := w.reserve()
	if rerr != nil {
		return 0, rerr
	}
	defer func() {
		// Clamp whatever fill reported into [0, nodeBufferSize]; a negative
		// count would poison every attached reader's copy bound.
		if written < 0 {
			written = 0
		}
		if written > int(w.buf.nodeBufferSize) {
			written = int(w.buf.nodeBufferSize)
		}
		n.SetAmountWritten(int64(written))
		w.publish(n)
	}()
	written, err = fill(w.buf.payload(n))
	return written, err
}

// LastNode returns a snapshot of the most recently published node.
func (w *Writer) LastNode() NodeSnapshot { return w.last }

// WriteValue encodes v with encoding/binary and publishes it as one record.
// Fails with ErrValueTooLarge before any node is reserved if the encoding
// cannot fit in a node payload. Returns the byte count written.
func WriteValue[T any](w *Writer, v *T) (int, error) {
	size := binary.Size(*v)
	if size < 0 {
		return 0, fmt.Errorf("%w: %T", ErrNotFixedSize, *v)
	}
	if size > int(w.buf.nodeBufferSize) {
		return 0, fmt.Errorf("%w: %T needs %d bytes, node holds %d",
			ErrValueTooLarge, *v, size, w.buf.nodeBufferSize)
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if err := binary.Write(bb, binary.LittleEndian, v); err != nil {
		return 0, err
	}
	return w.Write(bb.B)
}

// WriteSlice publishes as many leading elements of vals as fit in one node
// payload, and returns the element count written.
func WriteSlice[T any](w *Writer, vals []T) (int, error) {
	if len(vals) == 0 {
		return 0, nil
	}
	elemSize := binary.Size(vals[0])
	if elemSize < 0 {
		return 0, fmt.Errorf("%w: %T", ErrNotFixedSize, vals[0])
	}
	if elemSize > int(w.buf.nodeBufferSize) {
		return 0, fmt.Errorf("%w: element %T needs %d bytes, node holds %d",
			ErrValueTooLarge, vals[0], elemSize, w.buf.nodeBufferSize)
	}
	elems := minInt(len(vals), int(w.buf.nodeBufferSize)/elemSize)

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if err := binary.Write(bb, binary.LittleEndian, vals[:elems]); err != nil {
		return 0, err
	}
	if _, err := w.Write(bb.B); err != nil {
		return 0, err
	}
	return elems, nil
}
