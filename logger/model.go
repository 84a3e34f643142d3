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


package logger

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	libatm "github.com/sabouaram/zeroipc/atomic"
	loglvl "github.com/sabouaram/zeroipc/logger/level"
)

type lgr struct {
	m sync.Mutex
	o string                  // origin
	l *atomic.Uint32          // minimal level
	h libatm.Value[HookFunc]  // host sink
	b *logrus.Logger
}

func newLogger(origin string, lvl loglvl.Level) Logger {
	l := &lgr{
		o: origin,
		l: new(atomic.Uint32),
		h: libatm.NewValue[HookFunc](),
		b: logrus.New(),
	}

	l.b.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	l.SetLevel(lvl)

	return l
}

func (l *lgr) SetLevel(lvl loglvl.Level) {
	l.l.Store(uint32(lvl.Uint8()))
	if lvl != loglvl.NilLevel {
		l.b.SetLevel(lvl.Logrus())
	}
}

func (l *lgr) GetLevel() loglvl.Level {
	return loglvl.Level(l.l.Load())
}

func (l *lgr) SetHook(fct HookFunc) {
	if fct == nil {
		fct = func(loglvl.Level, string, string) {}
	}

	l.h.Store(fct)
}

func (l *lgr) Clone(origin string) Logger {
	c := &lgr{
		o: origin,
		l: l.l,
		h: l.h,
		b: l.b,
	}

	return c
}

func (l *lgr) write(lvl loglvl.Level, message string, args ...interface{}) {
	cur := l.GetLevel()

	if cur == loglvl.NilLevel || lvl > cur {
		return
	}

	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}

	if h := l.h.Load(); h != nil {
		h(lvl, l.o, message)
	}

	l.m.Lock()
	defer l.m.Unlock()

	e := l.b.WithField("origin", l.o)

	switch lvl {
	case loglvl.PanicLevel:
		e.Panic(message)
	case loglvl.FatalLevel:
		e.Fatal(message)
	case loglvl.ErrorLevel:
		e.Error(message)
	case loglvl.WarnLevel:
		e.Warn(message)
	case loglvl.InfoLevel:
		e.Info(message)
	case loglvl.DebugLevel:
		e.Debug(message)
	case loglvl.TraceLevel:
		e.Trace(message)
	}
}

func (l *lgr) Trace(message string, args ...interface{}) {
	l.write(loglvl.TraceLevel, message, args...)
}

func (l *lgr) Debug(message string, args ...interface{}) {
	l.write(loglvl.DebugLevel, message, args...)
}

func (l *lgr) Info(message string, args ...interface{}) {
	l.write(loglvl.InfoLevel, message, args...)
}

func (l *lgr) Warning(message string, args ...interface{}) {
	l.write(loglvl.WarnLevel, message, args...)
}

func (l *lgr) Error(message string, args ...interface{}) {
	l.write(loglvl.ErrorLevel, message, args...)
}

func (l *lgr) Fatal(message string, args ...interface{}) {
	l.write(loglvl.FatalLevel, message, args...)
}

func (l *lgr) LogError(err error) bool {
	if err == nil {
		return false
	}

	l.Error(err.Error())
	return true
}
