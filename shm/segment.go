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
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"github.com/PeterSpiegler/SharedMemory/internal/platform"
)

const (
	segmentMagic   = uint64(0x53484D52494E4731) // "SHMRING1"
	segmentVersion = uint32(1)

	// segmentHeaderSize is the collaborator header, padded to a cache line.
	segmentHeaderSize = 64

	segmentFilePrefix = "shmem_"
)

// segmentHeader sits at offset 0 of every segment file.
type segmentHeader struct {
	magic     uint64   // 0x00
	version   uint32   // 0x08
	_         uint32   // 0x0C padding
	totalSize uint64   // 0x10
	ownerPID  uint32   // 0x18
	ready     uint32   // 0x1C: owner finished one-time initialization
	reserved  [32]byte // 0x20-0x3F
}

// segment is a named, fixed-size shared memory region mapped into this
// process. It owns creation/opening/removal of the backing file; everything
// above it only does offset arithmetic into mem.
type segment struct {
	name  string
	path  string
	file  *os.File
	mem   []byte
	owner bool
}

// segmentPath places segments on /dev/shm when available, otherwise in the
// temp directory.
func segmentPath(name string) string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", segmentFilePrefix+name)
	}
	return filepath.Join(os.TempDir(), segmentFilePrefix+name)
}

func createSegment(name string, size uint64) (*segment, error) {
	path := segmentPath(name)
	if pathExists(path) {
		return nil, fmt.Errorf("%w: %s", ErrSegmentExists, path)
	}
	if !canCreateOnDevShm(size, path) {
		return nil, fmt.Errorf("%w: need %d bytes", ErrNoSpaceOnDevShm, size)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create segment %s: %w", path, err)
	}
	cleanup := func() {
		_ = file.Close()
		_ = os.Remove(path)
	}

	if err := file.Truncate(int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("resize segment %s: %w", path, err)
	}
	mem, err := platform.Map(int(file.Fd()), int(size))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("map segment %s: %w", path, err)
	}

	s := &segment{name: name, path: path, file: file, mem: mem, owner: true}
	hdr := s.header()
	hdr.magic = segmentMagic
	atomic.StoreUint32(&hdr.version, segmentVersion)
	atomic.StoreUint64(&hdr.totalSize, size)
	atomic.StoreUint32(&hdr.ownerPID, uint32(os.Getpid()))
	internalLogger.infof("created segment %s size %d", path, size)
	return s, nil
}

func openSegment(name string) (*segment, error) {
	path := segmentPath(name)
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat segment %s: %w", path, err)
	}
	size := info.Size()
	if size < segmentHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("%w: file only %d bytes", ErrSegmentInvalid, size)
	}
	mem, err := platform.Map(int(file.Fd()), int(size))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("map segment %s: %w", path, err)
	}

	s := &segment{name: name, path: path, file: file, mem: mem, owner: false}
	hdr := s.header()
	if hdr.magic != segmentMagic {
		_ = s.close()
		return nil, fmt.Errorf("%w: bad magic", ErrSegmentInvalid)
	}
	if v := atomic.LoadUint32(&hdr.version); v != segmentVersion {
		_ = s.close()
		return nil, fmt.Errorf("%w: version %d, want %d", ErrSegmentInvalid, v, segmentVersion)
	}
	if ts := atomic.LoadUint64(&hdr.totalSize); ts != uint64(size) {
		_ = s.close()
		return nil, fmt.Errorf("%w: header size %d, file size %d", ErrSegmentInvalid, ts, size)
	}
	if atomic.LoadUint32(&hdr.ready) == 0 {
		_ = s.close()
		return nil, fmt.Errorf("%w: owner has not finished initialization", ErrSegmentInvalid)
	}
	return s, nil
}

func (s *segment) header() *segmentHeader {
	return (*segmentHeader)(unsafe.Pointer(&s.mem[0]))
}

func (s *segment) base() unsafe.Pointer {
	return unsafe.Pointer(&s.mem[0])
}

// setReady publishes the segment for openers. Called once by the owner after
// the layout above the collaborator header is initialized.
func (s *segment) setReady() {
	atomic.StoreUint32(&s.header().ready, 1)
}

// writeAt copies p into the segment at the given byte offset.
func (s *segment) writeAt(off uint64, p []byte) (int, error) {
	if off > uint64(len(s.mem)) {
		return 0, fmt.Errorf("%w: offset %d beyond segment", ErrIndexOutOfRange, off)
	}
	return copy(s.mem[off:], p), nil
}

// readAt copies from the segment at the given byte offset into p.
func (s *segment) readAt(off uint64, p []byte) (int, error) {
	if off > uint64(len(s.mem)) {
		return 0, fmt.Errorf("%w: offset %d beyond segment", ErrIndexOutOfRange, off)
	}
	return copy(p, s.mem[off:]), nil
}

// close unmaps the region and closes the file. The backing file stays on
// disk until removeSegment; the records inside live as long as the file.
func (s *segment) close() error {
	var firstErr error
	if s.mem != nil {
		if err := platform.Unmap(s.mem); err != nil && firstErr == nil {
			firstErr = err
		}
		s.mem = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	return firstErr
}

func removeSegmentFile(name string) error {
	err := os.Remove(segmentPath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether a segment with the given name is present on this
// machine.
func Exists(name string) bool {
	return pathExists(segmentPath(name))
}
