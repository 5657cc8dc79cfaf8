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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultReadTimeout bounds the wait for new data when the caller passes a
// non-positive timeout.
const DefaultReadTimeout = 10 * time.Second

// Reader consumes publications in order through its own cursor. Readers are
// independent of each other: each may read the same published node
// (broadcast consumption), and each detects separately when the writer has
// lapped it. A Reader instance must not be driven by more than one thread
// at a time.
type Reader struct {
	buf *CircularBuffer

	// readPointer is the next node index to reserve; -1 until the first
	// read. Advanced by CAS so concurrent misuse is detected, not silent.
	readPointer atomic.Int64
	// readCounter is the continuity counter expected on the next node; -1
	// until the first read.
	readCounter int64

	waitTicks int64 // accumulated wait-for-data time, nanoseconds
	last      NodeSnapshot
}

// initCursor starts a new reader from the most recently published node.
// There is no historical backfill: anything older is already at risk of
// being overwritten.
func (r *Reader) initCursor() {
	hdr := r.buf.header()
	last := hdr.WriteLastCounter()
	if last < 0 {
		// Nothing published yet; expect the first publication on node 0.
		r.readCounter = 0
	} else {
		r.readCounter = last
	}
	r.readPointer.Store(int64(hdr.WriteLastIndex()))
}

// reserve acquires the next node for shared reading, waiting up to timeout
// for the writer to publish something new.
func (r *Reader) reserve(timeout time.Duration) (*node, error) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if r.readPointer.Load() < 0 {
		r.initCursor()
	}

	hdr := r.buf.header()
	if r.readCounter > hdr.WriteLastCounter() {
		// Everything published so far has been consumed. Reset the wake
		// signal, then re-check before sleeping so a publication landing in
		// between is not lost.
		r.buf.evt.reset()
		start := time.Now()
		deadline := start.Add(timeout)
		for r.readCounter > hdr.WriteLastCounter() {
			if err := r.buf.evt.wait(time.Until(deadline)); err != nil {
				atomic.AddInt64(&r.waitTicks, time.Since(start).Nanoseconds())
				if errors.Is(err, ErrReadTimeout) {
					readTimeoutsTotal.Inc()
				}
				return nil, err
			}
		}
		atomic.AddInt64(&r.waitTicks, time.Since(start).Nanoseconds())
	}

	ptr := r.readPointer.Load()
	n, err := r.buf.nodeAt(int32(ptr))
	if err != nil {
		return nil, err
	}
	n.reserveRead()
	if !r.readPointer.CompareAndSwap(ptr, int64(n.Next())) {
		// Another thread moved this reader's cursor.
		_ = n.freeRead()
		return nil, ErrCursorRace
	}
	return n, nil
}

// Read copies the next published record into dst, waiting up to timeout for
// one to arrive. At most len(dst) bytes are copied; the return value is the
// byte count actually copied.
//
// A continuity mismatch means the writer recycled the expected node before
// this reader got to it; Read fails with ErrContinuityLost and does not
// resynchronize. Timeout and continuity loss are distinct failures: the
// first is transient, the second needs caller-level recovery.
func (r *Reader) Read(dst []byte, timeout time.Duration) (int, error) {
	n, err := r.reserve(timeout)
	if err != nil {
		return 0, err
	}

	counter := n.ContinueCounter()
	if counter != r.readCounter {
		ferr := n.freeRead()
		continuityLossTotal.Inc()
		r.snapshot(n)
		if ferr != nil {
			return 0, ferr
		}
		return 0, fmt.Errorf("%w: expected counter %d, node %d has %d",
			ErrContinuityLost, r.readCounter, n.Index(), counter)
	}

	amount := n.AmountWritten()
	limit := minInt(len(dst), int(amount))
	copied := copy(dst[:limit], r.buf.payload(n)[:limit])
	ferr := n.freeRead()
	r.readCounter++
	r.snapshot(n)
	readsTotal.Inc()
	if ferr != nil {
		return copied, ferr
	}
	return copied, nil
}

// TryRead is Read with timeouts reported as a zero-byte success instead of
// an error. Continuity loss still fails.
func (r *Reader) TryRead(dst []byte, timeout time.Duration) (int, error) {
	copied, err := r.Read(dst, timeout)
	if errors.Is(err, ErrReadTimeout) {
		return 0, nil
	}
	return copied, err
}

// LastNode returns a snapshot of the most recently acted-upon node.
func (r *Reader) LastNode() NodeSnapshot { return r.last }

// WaitTicks returns the accumulated time this reader has spent waiting for
// new data, in nanoseconds.
func (r *Reader) WaitTicks() int64 { return atomic.LoadInt64(&r.waitTicks) }

func (r *Reader) snapshot(n *node) {
	r.last = NodeSnapshot{
		Index:            n.Index(),
		ContinueCounter:  n.ContinueCounter(),
		AmountWritten:    n.AmountWritten(),
		ReserveWaitTicks: n.ReserveWaitTicks(),
	}
}

// ReadValue decodes the next published record into v with encoding/binary.
func ReadValue[T any](r *Reader, v *T, timeout time.Duration) error {
	size := binary.Size(*v)
	if size < 0 {
		return fmt.Errorf("%w: %T", ErrNotFixedSize, *v)
	}
	dst := make([]byte, size)
	copied, err := r.Read(dst, timeout)
	if err != nil {
		return err
	}
	if copied < size {
		return fmt.Errorf("shm: record has %d bytes, %T needs %d", copied, *v, size)
	}
	return binary.Read(bytes.NewReader(dst), binary.LittleEndian, v)
}
