/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */


package errors

import (
	"path"
	"runtime"
	"strings"
)

// currPkg is the import path of this package, used to skip internal
// frames while capturing the caller location.
const currPkg = "zeroipc/errors"

func getFrame() runtime.Frame {
	// Skip runtime.Callers, getFrame and the constructor frames.
	pc := make([]uintptr, 16)
	num := runtime.Callers(3, pc)

	if num < 1 {
		return runtime.Frame{}
	}

	frames := runtime.CallersFrames(pc[:num])

	for {
		frame, more := frames.Next()

		if !strings.Contains(frame.Function, currPkg+".") {
			return cleanFrame(frame)
		}

		if !more {
			return cleanFrame(frame)
		}
	}
}

func cleanFrame(f runtime.Frame) runtime.Frame {
	// Keep only the trailing path elements so traces stay stable
	// between build environments.
	if f.File != "" {
		f.File = path.Join(path.Base(path.Dir(f.File)), path.Base(f.File))
	}

	return f
}
