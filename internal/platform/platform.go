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

// Package platform wraps the memory mapping and wake-up syscalls the buffer
// needs. Real implementations exist for linux; other targets get stubs that
// fail at runtime.
package platform

import "errors"

var (
	// ErrTimedOut is returned by FutexWait when the timeout elapses before
	// the watched word changes.
	ErrTimedOut = errors.New("platform: wait timed out")

	// ErrNotSupported is returned on targets without an implementation.
	ErrNotSupported = errors.New("platform: shared memory not supported on this target")
)
