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
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/sonatype/wagon-ahc/internal/logging"
	"github.com/sonatype/wagon-ahc/pkg/engine"
	"github.com/sonatype/wagon-ahc/pkg/transfer"
)

// minUploadBuffer is the smallest buffer a buffered upload starts with.
const minUploadBuffer = 4 * 1024

// ErrAlreadySent is returned by a buffered upload after Send.
var ErrAlreadySent = errors.New("request already sent")

// put sends body with the PUT classification table.
func (w *Wagon) put(ctx context.Context, resource, u string, body func() (io.ReadCloser, error), length int64) error {
	ctx = w.exchangeContext(ctx, http.MethodPut, u)
	w.fire(transfer.Event{Type: transfer.Started, Direction: transfer.Put, Resource: resource, URL: u, Total: length})

	resp, err := w.engine.Do(ctx, &engine.Request{
		Method:        http.MethodPut,
		URL:           u,
		Header:        w.conn.Header(),
		Body:          body,
		ContentLength: length,
	})
	if err != nil {
		return w.failed(transfer.Put, resource, u, transfer.Fail(u, err, "transfer failed"))
	}
	logging.G(ctx).WithField("status", resp.StatusCode).Debug("response received")
	w.fire(transfer.Event{Type: transfer.Debug, Direction: transfer.Put, Resource: resource, URL: u,
		Message: u + " - Status code: " + strconv.Itoa(resp.StatusCode)})

	outcome, err := transfer.Check(transfer.Put, u, resp.StatusCode)
	if err != nil {
		w.refused(err)
		if transfer.IsTransferFailed(err) {
			return w.failed(transfer.Put, resource, u, err)
		}
		return err
	}
	w.fire(transfer.Event{Type: transfer.Completed, Direction: transfer.Put, Resource: resource, URL: u, Outcome: outcome})
	return nil
}

// Store streams src to resource. The engine pulls the content in chunks of
// at most ProgressChunkSize and a Progress event is fired for each.
func (w *Wagon) Store(ctx context.Context, resource string, src Source) error {
	u, err := w.resolve(resource)
	if err != nil {
		return err
	}
	if src.Open == nil {
		return errors.New("source has no content")
	}
	w.fire(transfer.Event{Type: transfer.Initiated, Direction: transfer.Put, Resource: resource, URL: u, Total: src.Length})

	body := func() (io.ReadCloser, error) {
		rc, err := src.Open()
		if err != nil {
			return nil, err
		}
		return &progressReader{rc: rc, report: func(n int) {
			w.fire(transfer.Event{Type: transfer.Progress, Direction: transfer.Put, Resource: resource, URL: u, Bytes: n, Total: src.Length})
		}}, nil
	}
	return w.put(ctx, resource, u, body, src.Length)
}

// StoreFile uploads the file at path to resource.
func (w *Wagon) StoreFile(ctx context.Context, resource, path string) error {
	src, err := FileSource(path)
	if err != nil {
		return errors.Wrapf(err, "cannot upload %s", path)
	}
	return w.Store(ctx, resource, src)
}

// StoreFromStream uploads contentLength bytes read from r to resource.
// contentLength may be -1 when unknown.
func (w *Wagon) StoreFromStream(ctx context.Context, resource string, r io.Reader, contentLength int64, lastModified time.Time) error {
	return w.Store(ctx, resource, StreamSource(r, contentLength, lastModified))
}

// Upload is a buffered upload: writes accumulate in memory and nothing is
// sent until Send. An Upload is single-use.
type Upload struct {
	w        *Wagon
	resource string
	url      string

	mu      sync.Mutex
	buf     *bytebufferpool.ByteBuffer
	sent    bool
	readers sync.WaitGroup
}

// NewUpload starts a buffered upload of resource. length is a sizing hint,
// -1 when unknown.
func (w *Wagon) NewUpload(resource string, length int64) (*Upload, error) {
	u, err := w.resolve(resource)
	if err != nil {
		return nil, err
	}
	size := int64(minUploadBuffer)
	if length > size {
		size = length
	}
	buf := bytebufferpool.Get()
	if int64(cap(buf.B)) < size {
		buf.B = make([]byte, 0, size)
	}
	w.fire(transfer.Event{Type: transfer.Initiated, Direction: transfer.Put, Resource: resource, URL: u, Total: length})
	return &Upload{w: w, resource: resource, url: u, buf: buf}, nil
}

// Write implements io.Writer.
func (up *Upload) Write(p []byte) (int, error) {
	up.mu.Lock()
	defer up.mu.Unlock()
	if up.sent {
		return 0, ErrAlreadySent
	}
	return up.buf.Write(p)
}

// Len returns the number of buffered bytes.
func (up *Upload) Len() int {
	up.mu.Lock()
	defer up.mu.Unlock()
	if up.buf == nil {
		return 0
	}
	return up.buf.Len()
}

// Send issues the PUT and waits for the response. A second call returns
// ErrAlreadySent.
func (up *Upload) Send(ctx context.Context) error {
	up.mu.Lock()
	if up.sent {
		up.mu.Unlock()
		return ErrAlreadySent
	}
	up.sent = true
	data := up.buf.B
	up.mu.Unlock()

	body := func() (io.ReadCloser, error) {
		up.readers.Add(1)
		return &bufferReader{Reader: bytes.NewReader(data), done: up.readers.Done}, nil
	}
	err := up.w.put(ctx, up.resource, up.url, body, int64(len(data)))

	// The transport may close the body after the response arrived.
	up.readers.Wait()
	up.release()
	return err
}

// Close discards an upload that was never sent.
func (up *Upload) Close() error {
	up.mu.Lock()
	defer up.mu.Unlock()
	if !up.sent {
		up.sent = true
		up.releaseLocked()
	}
	return nil
}

func (up *Upload) release() {
	up.mu.Lock()
	defer up.mu.Unlock()
	up.releaseLocked()
}

func (up *Upload) releaseLocked() {
	if up.buf != nil {
		bytebufferpool.Put(up.buf)
		up.buf = nil
	}
}

type bufferReader struct {
	*bytes.Reader
	once sync.Once
	done func()
}

func (b *bufferReader) Close() error {
	b.once.Do(b.done)
	return nil
}
