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

package wagon

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/sonatype/wagon-ahc/internal/logging"
	"github.com/sonatype/wagon-ahc/pkg/engine"
	"github.com/sonatype/wagon-ahc/pkg/pipe"
	"github.com/sonatype/wagon-ahc/pkg/transfer"
)

// gate is a one-shot latch.
type gate struct {
	once sync.Once
	ch   chan struct{}
}

func newGate() *gate { return &gate{ch: make(chan struct{})} }

// release runs f and opens the gate, unless it is already open.
func (g *gate) release(f func()) {
	g.once.Do(func() {
		if f != nil {
			f()
		}
		close(g.ch)
	})
}

func (g *gate) await(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// getExchange bridges the engine callbacks of one GET to the caller. Every
// field except the pipe is written before the gate opens and read after.
type getExchange struct {
	url  string
	gate *gate
	pipe *pipe.Pipe

	status  int
	header  http.Header
	failure error
}

func newGetExchange(url string, pipeSize int) *getExchange {
	return &getExchange{
		url:    url,
		gate:   newGate(),
		pipe:   pipe.New(pipeSize),
		status: transfer.NoStatus,
		header: http.Header{},
	}
}

func (x *getExchange) OnStatus(code int) engine.State {
	x.status = code
	return engine.Continue
}

func (x *getExchange) OnHeaders(h http.Header) engine.State {
	ok := x.status == http.StatusOK
	x.gate.release(func() { x.header = h })
	if !ok {
		// Nothing but a 200 exposes a body.
		return engine.Abort
	}
	return engine.Continue
}

func (x *getExchange) OnBodyPart(b []byte) engine.State {
	if _, err := x.pipe.Write(b); err != nil {
		return engine.Abort
	}
	return engine.Continue
}

func (x *getExchange) OnCompleted() {
	x.pipe.Close()
	x.gate.release(nil)
}

func (x *getExchange) OnError(err error) {
	x.pipe.CloseWithError(err)
	x.gate.release(func() { x.failure = err })
}

func parseContentLength(h http.Header) (int64, error) {
	v := strings.TrimSpace(h.Get("Content-Length"))
	if v == "" {
		return -1, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1, errors.Errorf("invalid Content-Length %q", v)
	}
	return n, nil
}

func parseLastModified(h http.Header) (time.Time, error) {
	v := h.Get("Last-Modified")
	if v == "" {
		return time.Time{}, nil
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid Last-Modified %q", v)
	}
	return t, nil
}

// metadata reads the length and modification time from h. Malformed
// values are reported as debug events and treated as unknown.
func (w *Wagon) metadata(dir transfer.Direction, resource, url string, h http.Header) (int64, time.Time) {
	n, err := parseContentLength(h)
	if err != nil {
		w.fire(transfer.Event{Type: transfer.Debug, Direction: dir, Resource: resource, URL: url, Message: err.Error()})
	}
	t, err := parseLastModified(h)
	if err != nil {
		w.fire(transfer.Event{Type: transfer.Debug, Direction: dir, Resource: resource, URL: url, Message: err.Error()})
	}
	return n, t
}

// FetchResult is the outcome of a download.
type FetchResult struct {
	// Outcome is Success or NotModified.
	Outcome transfer.Outcome
	// Body streams the resource. It is nil unless Outcome is Success and
	// must be closed by the caller.
	Body io.ReadCloser
	// ContentLength is the declared length, -1 when unknown.
	ContentLength int64
	// LastModified is zero when unknown.
	LastModified time.Time
}

// Fetch downloads resource. When ifModifiedSince is set and the resource
// has not changed, the result has Outcome NotModified and no body.
//
// ctx governs the whole exchange, reads from the returned body included.
// Failures before the body starts are returned here; later failures are
// returned by Body.Read as TransferFailed errors.
func (w *Wagon) Fetch(ctx context.Context, resource string, ifModifiedSince time.Time) (*FetchResult, error) {
	u, err := w.resolve(resource)
	if err != nil {
		return nil, err
	}
	ctx = w.exchangeContext(ctx, http.MethodGet, u)
	w.fire(transfer.Event{Type: transfer.Initiated, Direction: transfer.Get, Resource: resource, URL: u})

	header := w.conn.Header()
	if !ifModifiedSince.IsZero() {
		header.Set("If-Modified-Since", ifModifiedSince.UTC().Format(http.TimeFormat))
	}

	x := newGetExchange(u, w.pipeSize)
	w.engine.Execute(ctx, &engine.Request{Method: http.MethodGet, URL: u, Header: header}, x)

	if err := x.gate.await(ctx); err != nil {
		x.pipe.CloseRead()
		return nil, w.failed(transfer.Get, resource, u, transfer.Fail(u, err, "transfer failed"))
	}
	if x.failure != nil {
		x.pipe.CloseRead()
		return nil, w.failed(transfer.Get, resource, u, transfer.Fail(u, x.failure, "transfer failed"))
	}

	logging.G(ctx).WithField("status", x.status).Debug("response received")
	w.fire(transfer.Event{Type: transfer.Debug, Direction: transfer.Get, Resource: resource, URL: u,
		Message: u + " - Status code: " + strconv.Itoa(x.status)})

	outcome, err := transfer.Check(transfer.Get, u, x.status)
	if err != nil {
		x.pipe.CloseRead()
		w.refused(err)
		if transfer.IsTransferFailed(err) {
			return nil, w.failed(transfer.Get, resource, u, err)
		}
		return nil, err
	}
	if outcome == transfer.NotModified {
		x.pipe.CloseRead()
		w.fire(transfer.Event{Type: transfer.Completed, Direction: transfer.Get, Resource: resource, URL: u, Outcome: outcome})
		return &FetchResult{Outcome: outcome, ContentLength: -1}, nil
	}

	length, modified := w.metadata(transfer.Get, resource, u, x.header)
	w.fire(transfer.Event{Type: transfer.Started, Direction: transfer.Get, Resource: resource, URL: u, Total: length})
	return &FetchResult{
		Outcome: outcome,
		Body: &fetchBody{
			w:        w,
			resource: resource,
			url:      u,
			total:    length,
			raw:      x.pipe.Reader(),
			gzipped:  strings.EqualFold(strings.TrimSpace(x.header.Get("Content-Encoding")), "gzip"),
		},
		ContentLength: length,
		LastModified:  modified,
	}, nil
}

func (w *Wagon) failed(dir transfer.Direction, resource, url string, err error) error {
	w.fire(transfer.Event{Type: transfer.Failed, Direction: dir, Resource: resource, URL: url, Err: err})
	return err
}

var errAbandoned = errors.New("body closed before the end of the download")

// fetchBody is the caller's view of a download. gzip content is decoded
// here, on the reading goroutine.
type fetchBody struct {
	w        *Wagon
	resource string
	url      string
	total    int64
	raw      io.ReadCloser
	gzipped  bool

	r         io.Reader
	zr        *gzip.Reader
	finished  bool
	closeOnce sync.Once
}

func (b *fetchBody) Read(p []byte) (int, error) {
	if b.r == nil {
		if !b.gzipped {
			b.r = b.raw
		} else {
			zr, err := gzip.NewReader(b.raw)
			if err != nil {
				return 0, b.fail(err)
			}
			b.zr, b.r = zr, zr
		}
	}
	n, err := b.r.Read(p)
	if n > 0 {
		b.w.fire(transfer.Event{Type: transfer.Progress, Direction: transfer.Get, Resource: b.resource, URL: b.url, Bytes: n, Total: b.total})
	}
	switch {
	case err == io.EOF:
		if !b.finished {
			b.finished = true
			b.w.fire(transfer.Event{Type: transfer.Completed, Direction: transfer.Get, Resource: b.resource, URL: b.url, Outcome: transfer.Success})
		}
		return n, io.EOF
	case err != nil:
		return n, b.fail(err)
	}
	return n, nil
}

func (b *fetchBody) fail(err error) error {
	terr := transfer.Fail(b.url, err, "transfer failed")
	if !b.finished {
		b.finished = true
		b.w.fire(transfer.Event{Type: transfer.Failed, Direction: transfer.Get, Resource: b.resource, URL: b.url, Err: terr})
	}
	return terr
}

// Close abandons the download. The engine stops at its next body part.
// Closing before the end of the body reports the transfer as failed.
func (b *fetchBody) Close() error {
	b.closeOnce.Do(func() {
		if !b.finished {
			b.fail(errAbandoned)
		}
		if b.zr != nil {
			b.zr.Close()
		}
		b.raw.Close()
	})
	return nil
}
