/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package pipe provides a bounded, in-memory byte pipe for handing a response
body from the goroutine that receives it to the goroutine that consumes it.

Unlike io.Pipe, a Pipe buffers up to its capacity so the producer is not
forced into lock step with the consumer, and it carries a set-once error
slot: once an error is recorded, readers drain whatever is still buffered
and then observe the error on their next read.
*/
package pipe // import "github.com/sonatype/wagon-ahc/pkg/pipe"

import (
	"io"
	"sync"
)

// DefaultSize is the capacity used when New is called with a size <= 0.
const DefaultSize = 128 * 1024

// Pipe is a single-producer, single-consumer byte ring buffer.
type Pipe struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf   []byte
	start int
	count int

	err     error
	wclosed bool
	rclosed bool
}

// New allocates a pipe holding at most size bytes.
func New(size int) *Pipe {
	if size <= 0 {
		size = DefaultSize
	}
	p := &Pipe{buf: make([]byte, size)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Cap returns the capacity of the pipe.
func (p *Pipe) Cap() int {
	return len(p.buf)
}

// Buffered returns the number of bytes written but not yet read.
func (p *Pipe) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Write copies b into the pipe, blocking while the pipe is full. It returns
// early with an error when the pipe failed, was closed for writing, or the
// reader went away.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	written := 0
	for len(b) > 0 {
		for p.count == len(p.buf) && p.err == nil && !p.rclosed && !p.wclosed {
			p.cond.Wait()
		}
		switch {
		case p.err != nil:
			return written, p.err
		case p.rclosed, p.wclosed:
			return written, io.ErrClosedPipe
		}

		end := (p.start + p.count) % len(p.buf)
		free := len(p.buf) - p.count
		chunk := len(p.buf) - end
		if chunk > free {
			chunk = free
		}
		n := copy(p.buf[end:end+chunk], b)
		p.count += n
		written += n
		b = b[n:]
		p.cond.Broadcast()
	}
	return written, nil
}

// Read reads up to len(b) bytes, blocking while the pipe is empty and the
// writer is still active. Buffered bytes are always returned before a
// recorded error or io.EOF.
func (p *Pipe) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.count == 0 && p.err == nil && !p.wclosed && !p.rclosed {
		p.cond.Wait()
	}
	if p.rclosed {
		return 0, io.ErrClosedPipe
	}
	if p.count == 0 {
		if p.err != nil {
			return 0, p.err
		}
		return 0, io.EOF
	}

	n := 0
	for n < len(b) && p.count > 0 {
		chunk := len(p.buf) - p.start
		if chunk > p.count {
			chunk = p.count
		}
		c := copy(b[n:], p.buf[p.start:p.start+chunk])
		n += c
		p.start = (p.start + c) % len(p.buf)
		p.count -= c
	}
	if p.count == 0 {
		p.start = 0
	}
	p.cond.Broadcast()
	return n, nil
}

// CloseWithError records err in the error slot and closes the write side.
// Only the first error is kept. A nil err is the same as Close.
func (p *Pipe) CloseWithError(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil && p.err == nil {
		p.err = err
	}
	p.wclosed = true
	p.cond.Broadcast()
	return nil
}

// Close signals end of stream to the reader.
func (p *Pipe) Close() error {
	return p.CloseWithError(nil)
}

// CloseRead abandons the read side. Pending and future writes fail with
// io.ErrClosedPipe and buffered bytes are discarded.
func (p *Pipe) CloseRead() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rclosed = true
	p.count = 0
	p.start = 0
	p.cond.Broadcast()
	return nil
}

// Err returns the recorded error, if any.
func (p *Pipe) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Reader returns the read half of the pipe. Closing it abandons the pipe.
func (p *Pipe) Reader() io.ReadCloser {
	return reader{p}
}

type reader struct{ p *Pipe }

func (r reader) Read(b []byte) (int, error) { return r.p.Read(b) }
func (r reader) Close() error               { return r.p.CloseRead() }
