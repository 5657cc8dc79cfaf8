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
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// canCreateOnDevShm reports whether a segment of the given size fits on
// /dev/shm. Paths outside /dev/shm (and non-linux targets) always pass; the
// filesystem will fail the write if space runs out.
func canCreateOnDevShm(size uint64, path string) bool {
	if runtime.GOOS != "linux" || !strings.HasPrefix(path, "/dev/shm") {
		return true
	}
	stat, err := disk.Usage("/dev/shm")
	if err != nil {
		internalLogger.warnf("stat /dev/shm failed: %v", err)
		return true
	}
	return stat.Free >= size
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
