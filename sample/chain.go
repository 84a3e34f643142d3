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


package sample

import (
	"sync"

	liberr "github.com/sabouaram/zeroipc/errors"
	libshm "github.com/sabouaram/zeroipc/shm"
	libsiz "github.com/sabouaram/zeroipc/size"
)

// OpenFunc resolves the pool of one generation, creating the backing
// segment when create is true. The producer side creates, consumer
// sides only attach.
type OpenFunc func(generation uint32, maxElems uint64, create bool) (Pool, liberr.Error)

// Chain manages the generations of a growable payload segment. The
// producer loans from the newest generation and grows it when a slice
// loan exceeds the current element capacity; consumers resolve older
// generations on demand while in-flight samples still reference them.
type Chain struct {
	m        sync.Mutex
	open     OpenFunc
	strategy libshm.Strategy
	chunk    libsiz.Size
	elemSize uint64
	cur      uint32
	maxElems uint64
	gens     map[uint32]Pool
}

// NewChain builds a chain rooted at the given generation-zero pool.
func NewChain(root Pool, open OpenFunc, strategy libshm.Strategy, chunk libsiz.Size) *Chain {
	return &Chain{
		open:     open,
		strategy: strategy,
		chunk:    chunk,
		elemSize: root.Layout().ElemSize,
		cur:      root.Generation(),
		maxElems: root.Layout().MaxElems,
		gens:     map[uint32]Pool{root.Generation(): root},
	}
}

// Current returns the newest generation pool.
func (c *Chain) Current() Pool {
	c.m.Lock()
	defer c.m.Unlock()

	return c.gens[c.cur]
}

// MaxElems returns the element capacity of the newest generation.
func (c *Chain) MaxElems() uint64 {
	c.m.Lock()
	defer c.m.Unlock()

	return c.maxElems
}

// Resolve returns the pool of the given generation, attaching it on
// first use. Consumer side.
func (c *Chain) Resolve(generation uint32) (Pool, liberr.Error) {
	c.m.Lock()
	defer c.m.Unlock()

	if p, ok := c.gens[generation]; ok {
		return p, nil
	}

	p, err := c.open(generation, 0, false)
	if err != nil {
		return nil, err
	}

	c.gens[generation] = p
	return p, nil
}

// LoanElems loans a slot able to carry n payload elements, growing the
// chain when needed and allowed by the strategy.
func (c *Chain) LoanElems(n uint64) (Pool, Slot, liberr.Error) {
	c.m.Lock()
	defer c.m.Unlock()

	if n <= c.maxElems {
		p := c.gens[c.cur]

		s, err := p.Loan()
		if err != nil {
			return nil, Slot{}, err
		}

		return p, s, nil
	}

	need := libsiz.Size(n * c.elemSize)
	have := libsiz.Size(c.maxElems * c.elemSize)

	next, ok := libshm.NextSize(c.strategy, have, need, c.chunk)
	if !ok {
		return nil, Slot{}, ErrorExceedsMaxLoanSize.Error(nil)
	}

	gen := c.cur + 1

	p, err := c.open(gen, next.Uint64()/c.elemSize, true)
	if err != nil {
		return nil, Slot{}, err
	}

	c.cur = gen
	c.maxElems = p.Layout().MaxElems
	c.gens[gen] = p

	s, err := p.Loan()
	if err != nil {
		return nil, Slot{}, err
	}

	return p, s, nil
}

// Close closes every generation.
func (c *Chain) Close() error {
	c.m.Lock()
	defer c.m.Unlock()

	var last error

	for g, p := range c.gens {
		if e := p.Close(); e != nil {
			last = e
		}
		delete(c.gens, g)
	}

	return last
}
