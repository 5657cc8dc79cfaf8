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
	"math"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/PeterSpiegler/SharedMemory/internal/platform"
)

// eventSuffix is appended to the segment name to derive the wake signal's
// name, so any process attaching to the buffer can open the same signal.
const eventSuffix = "_evt_dataexists"

// event is a named, cross-process, manual-reset wake signal: a single uint32
// in its own tiny shared mapping, plus non-private futex wait/wake. Once set
// it stays signaled until reset, so a waiter arriving after the signal still
// observes it.
type event struct {
	path string
	file *os.File
	mem  []byte
	word *uint32
}

// openEvent creates or opens the signal backing file. Every attaching
// process calls this; creation is idempotent and the word starts unsignaled.
func openEvent(name string) (*event, error) {
	path := segmentPath(name + eventSuffix)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open event %s: %w", path, err)
	}
	const size = 8
	if err := file.Truncate(size); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("resize event %s: %w", path, err)
	}
	mem, err := platform.Map(int(file.Fd()), size)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("map event %s: %w", path, err)
	}
	return &event{
		path: path,
		file: file,
		mem:  mem,
		word: (*uint32)(unsafe.Pointer(&mem[0])),
	}, nil
}

// set signals the event and wakes every waiter.
func (e *event) set() {
	atomic.StoreUint32(e.word, 1)
	if _, err := platform.FutexWake(e.word, math.MaxInt32); err != nil {
		internalLogger.errorf("event wake failed: %v", err)
	}
}

// reset clears the signal.
func (e *event) reset() {
	atomic.StoreUint32(e.word, 0)
}

// wait blocks until the event is signaled or timeout elapses. Returns
// ErrReadTimeout on expiry.
func (e *event) wait(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for atomic.LoadUint32(e.word) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrReadTimeout
		}
		err := platform.FutexWait(e.word, 0, remaining)
		if err == platform.ErrTimedOut {
			// The word may have been set right at the deadline.
			if atomic.LoadUint32(e.word) != 0 {
				return nil
			}
			return ErrReadTimeout
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *event) close() error {
	var firstErr error
	if e.mem != nil {
		if err := platform.Unmap(e.mem); err != nil {
			firstErr = err
		}
		e.mem = nil
		e.word = nil
	}
	if e.file != nil {
		if err := e.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.file = nil
	}
	return firstErr
}

func removeEventFile(name string) error {
	err := os.Remove(segmentPath(name + eventSuffix))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
