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

package engine

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/sonatype/wagon-ahc/internal/logging"
)

// HTTPEngine runs exchanges on a net/http transport, one goroutine per
// exchange.
type HTTPEngine struct {
	cfg       Config
	transport *http.Transport
	client    *http.Client
}

// NewHTTPEngine builds an engine with its own connection pool.
func NewHTTPEngine(cfg Config) *HTTPEngine {
	dialer := &net.Dialer{
		Timeout:   cfg.Timeouts.Connect,
		KeepAlive: 30 * time.Second,
	}
	tr := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			c, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return withReadIdle(c, cfg.Timeouts.ReadIdle), nil
		},
		TLSClientConfig:     cfg.TLS,
		TLSHandshakeTimeout: cfg.Timeouts.Connect,
		// Content-Encoding is left to the caller.
		DisableCompression:  true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.Proxy != nil {
		tr.Proxy = http.ProxyURL(cfg.Proxy.URL())
	}

	e := &HTTPEngine{cfg: cfg, transport: tr}
	e.client = &http.Client{
		Transport: &authTransport{cfg: cfg, base: tr},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > cfg.MaxRedirects {
				return http.ErrUseLastResponse
			}
			logging.G(req.Context()).WithField("location", req.URL.String()).Debug("following redirect")
			return nil
		},
	}
	return e
}

func (e *HTTPEngine) newRequest(ctx context.Context, req *Request) (*http.Request, error) {
	var body io.ReadCloser
	if req.Body != nil {
		var err error
		if body, err = req.Body(); err != nil {
			return nil, errors.Wrap(err, "opening request body")
		}
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		if body != nil {
			body.Close()
		}
		return nil, err
	}
	for k, v := range req.Header {
		hreq.Header[k] = append([]string(nil), v...)
	}
	if req.Body != nil {
		hreq.ContentLength = req.ContentLength
		hreq.GetBody = req.Body
		if req.ContentLength == 0 {
			body.Close()
			hreq.Body = http.NoBody
		}
	}
	return hreq, nil
}

func (e *HTTPEngine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeouts.Request > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeouts.Request)
	}
	return context.WithCancel(ctx)
}

// Execute implements Engine.
func (e *HTTPEngine) Execute(ctx context.Context, req *Request, h Handler) {
	go func() {
		ctx, cancel := e.withTimeout(ctx)
		defer cancel()

		hreq, err := e.newRequest(ctx, req)
		if err != nil {
			h.OnError(err)
			return
		}
		resp, err := e.client.Do(hreq)
		if err != nil {
			h.OnError(err)
			return
		}
		defer resp.Body.Close()

		if h.OnStatus(resp.StatusCode) == Abort || h.OnHeaders(resp.Header) == Abort {
			h.OnCompleted()
			return
		}
		if err := deliver(resp.Body, h); err != nil {
			h.OnError(err)
			return
		}
		h.OnCompleted()
	}()
}

// deliver copies r to h in chunks of at most ChunkSize. It returns nil when
// r is exhausted or the handler aborted.
func deliver(r io.Reader, h Handler) error {
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 && h.OnBodyPart(buf[:n]) == Abort {
			return nil
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Do implements Engine.
func (e *HTTPEngine) Do(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	hreq, err := e.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	// Drain a little so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return &Response{StatusCode: resp.StatusCode, Status: resp.Status, Header: resp.Header}, nil
}

// Close implements Engine.
func (e *HTTPEngine) Close() error {
	e.transport.CloseIdleConnections()
	return nil
}
