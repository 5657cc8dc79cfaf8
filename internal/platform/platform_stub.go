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

//go:build !linux

package platform

import "time"

func Map(fd int, size int) ([]byte, error) {
	return nil, ErrNotSupported
}

func Unmap(mem []byte) error {
	return nil
}

func FutexWait(addr *uint32, val uint32, timeout time.Duration) error {
	return ErrNotSupported
}

func FutexWake(addr *uint32, n int) (int, error) {
	return 0, ErrNotSupported
}
