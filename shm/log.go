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
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	levelNoPrint
)

var levelName = []string{"Debug", "Info", "Warn", "Error"}

type logger struct {
	out       io.Writer
	callDepth int
}

var (
	internalLogger = &logger{out: os.Stdout, callDepth: 3}
	logLevel       = LevelWarn
)

func init() {
	if v := os.Getenv("SHMEM_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n <= levelNoPrint {
			logLevel = n
		}
	}
}

// SetLogLevel changes the internal logger's level. The default is Warn; the
// process env `SHMEM_LOG_LEVEL` can also set it.
func SetLogLevel(l int) {
	if l <= levelNoPrint {
		logLevel = l
	}
}

func (l *logger) debugf(format string, a ...interface{}) { l.printf(LevelDebug, format, a...) }

func (l *logger) infof(format string, a ...interface{}) { l.printf(LevelInfo, format, a...) }

func (l *logger) warnf(format string, a ...interface{}) { l.printf(LevelWarn, format, a...) }

func (l *logger) errorf(format string, a ...interface{}) { l.printf(LevelError, format, a...) }

func (l *logger) printf(level int, format string, a ...interface{}) {
	if level < logLevel {
		return
	}
	prefix := levelName[level] + " " +
		time.Now().Format("2006-01-02 15:04:05.999999") + " " +
		l.location() + " "
	if _, err := fmt.Fprintf(l.out, prefix+format+"\n", a...); err != nil {
		fmt.Fprintf(os.Stderr, "shm logger write failed: %v\n", err)
	}
}

func (l *logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		return "???:0"
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
