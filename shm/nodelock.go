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
	"runtime"
	"sync/atomic"
	"time"
)

// Per-node reservation protocol: writer-exclusive, readers-shared. The two
// count fields are guarded by the node's own spin word so that the
// check-then-set on (writerHeld, readerCount) is a single step for every
// process mapping the segment. All waits here are unbounded busy-wait spins;
// only the reader's wait-for-data step (reader.go) blocks in the kernel.

const spinGoschedEvery = 64 // yield the P periodically in hot loops

// lockState acquires the node's spin word.
func (n *node) lockState() {
	var spins uint32
	for !atomic.CompareAndSwapUint32(&n.state, 0, 1) {
		spins++
		if spins%spinGoschedEvery == 0 {
			runtime.Gosched()
		}
	}
}

func (n *node) unlockState() {
	atomic.StoreUint32(&n.state, 0)
}

// reserveWrite spins until the node is neither write-held nor read-held,
// then claims it exclusively. There is no upper bound on the spin: a reader
// that never releases the node stalls the writer here forever.
func (n *node) reserveWrite() {
	start := time.Now()
	var spins uint32
	for {
		n.lockState()
		if atomic.LoadInt32(&n.writerHeld) == 0 && atomic.LoadInt32(&n.readerCount) == 0 {
			atomic.StoreInt32(&n.writerHeld, 1)
			n.unlockState()
			n.addReserveWait(time.Since(start).Nanoseconds())
			return
		}
		n.unlockState()
		spins++
		if spins%spinGoschedEvery == 0 {
			runtime.Gosched()
		}
	}
}

// freeWrite releases the exclusive claim.
func (n *node) freeWrite() {
	atomic.StoreInt32(&n.writerHeld, 0)
}

// reserveRead spins until no writer holds the node, then joins the readers.
// Arriving readers and a pending writer are not ordered relative to each
// other; whichever wins the spin word proceeds.
func (n *node) reserveRead() {
	start := time.Now()
	var spins uint32
	for {
		n.lockState()
		if atomic.LoadInt32(&n.writerHeld) == 0 {
			atomic.AddInt32(&n.readerCount, 1)
			n.unlockState()
			n.addReserveWait(time.Since(start).Nanoseconds())
			return
		}
		n.unlockState()
		spins++
		if spins%spinGoschedEvery == 0 {
			runtime.Gosched()
		}
	}
}

// freeRead drops one read hold. Releasing more holds than were taken is
// caller misuse and reported, not masked.
func (n *node) freeRead() error {
	n.lockState()
	if atomic.LoadInt32(&n.readerCount) <= 0 {
		n.unlockState()
		return ErrReaderCountUnderflow
	}
	atomic.AddInt32(&n.readerCount, -1)
	n.unlockState()
	return nil
}
