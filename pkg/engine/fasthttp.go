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
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"

	"github.com/sonatype/wagon-ahc/internal/logging"
	"github.com/sonatype/wagon-ahc/pkg/connection"
)

// FastEngine runs exchanges on a fasthttp client with streamed response
// bodies. Redirects and authentication challenges are handled here since
// fasthttp leaves them to the caller. Cancellation is observed before each
// request and between body chunks.
type FastEngine struct {
	cfg    Config
	client *fasthttp.Client
}

// NewFastEngine builds a fasthttp engine. NTLM realms are not supported.
func NewFastEngine(cfg Config) (*FastEngine, error) {
	if cfg.Realm != nil && cfg.Realm.Scheme == connection.SchemeNTLM {
		return nil, errors.New("the fasthttp engine does not support NTLM authentication")
	}

	dial := fasthttp.Dial
	if cfg.Timeouts.Connect > 0 {
		dial = func(addr string) (net.Conn, error) {
			return fasthttp.DialTimeout(addr, cfg.Timeouts.Connect)
		}
	}
	switch {
	case cfg.Proxy != nil && cfg.Proxy.Username != "":
		dial = connectDial(cfg.Proxy.Address(), cfg.Proxy.Username, cfg.Proxy.Password, cfg.Timeouts.Connect)
	case cfg.Proxy != nil:
		dial = fasthttpproxy.FasthttpHTTPDialerTimeout(cfg.Proxy.Address(), cfg.Timeouts.Connect)
	}

	client := &fasthttp.Client{
		NoDefaultUserAgentHeader: true,
		Dial: func(addr string) (net.Conn, error) {
			c, err := dial(addr)
			if err != nil {
				return nil, err
			}
			return withReadIdle(c, cfg.Timeouts.ReadIdle), nil
		},
		TLSConfig:                 cfg.TLS,
		StreamResponseBody:        true,
		DisablePathNormalizing:    true,
		MaxIdemponentCallAttempts: 1,
	}
	return &FastEngine{cfg: cfg, client: client}, nil
}

// connectDial tunnels through an HTTP proxy that wants credentials.
// fasthttpproxy sends the percent-encoded userinfo as the credentials, which
// breaks passwords holding reserved characters such as '@' or ':'.
func connectDial(proxyAddr, username, password string, timeout time.Duration) fasthttp.DialFunc {
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	return func(addr string) (net.Conn, error) {
		var (
			conn net.Conn
			err  error
		)
		if timeout > 0 {
			conn, err = fasthttp.DialTimeout(proxyAddr, timeout)
		} else {
			conn, err = fasthttp.Dial(proxyAddr)
		}
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
				conn.Close()
				return nil, err
			}
		}

		req := "CONNECT " + addr + " HTTP/1.1\r\nHost: " + addr + "\r\nProxy-Authorization: " + auth + "\r\n\r\n"
		if _, err := io.WriteString(conn, req); err != nil {
			conn.Close()
			return nil, err
		}
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseResponse(resp)
		resp.SkipBody = true
		if err := resp.Read(bufio.NewReaderSize(conn, 1024)); err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "reading CONNECT response from %s", proxyAddr)
		}
		if code := resp.StatusCode(); code != http.StatusOK {
			conn.Close()
			return nil, errors.Errorf("proxy %s refused CONNECT to %s (status code %d)", proxyAddr, addr, code)
		}
		if err := conn.SetDeadline(time.Time{}); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func (e *FastEngine) prepare(req *fasthttp.Request, r *Request, target *url.URL, challenged bool) error {
	req.SetRequestURI(target.String())
	req.Header.SetMethod(r.Method)
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if e.cfg.sendCredentials(target) && (e.cfg.Realm.Preemptive || challenged) && len(req.Header.Peek("Authorization")) == 0 {
		cred, err := e.cfg.Realm.BasicCredentials()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", cred)
	}
	if r.Body != nil {
		body, err := r.Body()
		if err != nil {
			return errors.Wrap(err, "opening request body")
		}
		req.SetBodyStream(body, int(r.ContentLength))
	}
	return nil
}

// roundTrip performs r, following redirects and answering a Basic
// challenge once. The caller owns the returned response.
func (e *FastEngine) roundTrip(ctx context.Context, r *Request) (*fasthttp.Response, error) {
	target, err := url.Parse(r.URL)
	if err != nil {
		return nil, err
	}
	cur := *r
	challenged := false
	for redirects := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		if err := e.prepare(req, &cur, target, challenged); err != nil {
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
			return nil, err
		}
		resp.SkipBody = cur.Method == http.MethodHead
		err := e.client.Do(req, resp)
		fasthttp.ReleaseRequest(req)
		if err != nil {
			fasthttp.ReleaseResponse(resp)
			return nil, err
		}

		code := resp.StatusCode()
		switch {
		case code == http.StatusUnauthorized && !challenged && e.cfg.sendCredentials(target) &&
			!e.cfg.Realm.Preemptive && basicChallenge(responseHeader(resp)):
			challenged = true
			e.release(resp)
			continue
		case isRedirect(code) && redirects < e.cfg.MaxRedirects:
			loc := string(resp.Header.Peek("Location"))
			if loc == "" {
				return resp, nil
			}
			next, err := target.Parse(loc)
			if err != nil {
				return resp, nil
			}
			e.release(resp)
			logging.G(ctx).WithField("location", next.String()).Debug("following redirect")
			target = next
			redirects++
			if code == http.StatusSeeOther && cur.Method != http.MethodHead {
				cur.Method = http.MethodGet
				cur.Body = nil
				cur.ContentLength = 0
			}
			continue
		}
		return resp, nil
	}
}

func (e *FastEngine) release(resp *fasthttp.Response) {
	_ = resp.CloseBodyStream()
	fasthttp.ReleaseResponse(resp)
}

func responseHeader(resp *fasthttp.Response) http.Header {
	h := http.Header{}
	resp.Header.VisitAll(func(k, v []byte) {
		h.Add(string(k), string(v))
	})
	return h
}

// bodyReader returns the response body, streamed when possible.
func bodyReader(ctx context.Context, resp *fasthttp.Response) io.Reader {
	if s := resp.BodyStream(); s != nil {
		return &ctxReader{ctx: ctx, r: s}
	}
	return bytes.NewReader(resp.Body())
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}

func (e *FastEngine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeouts.Request > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeouts.Request)
	}
	return context.WithCancel(ctx)
}

// Execute implements Engine.
func (e *FastEngine) Execute(ctx context.Context, req *Request, h Handler) {
	go func() {
		ctx, cancel := e.withTimeout(ctx)
		defer cancel()

		resp, err := e.roundTrip(ctx, req)
		if err != nil {
			h.OnError(err)
			return
		}
		defer e.release(resp)

		if h.OnStatus(resp.StatusCode()) == Abort || h.OnHeaders(responseHeader(resp)) == Abort {
			h.OnCompleted()
			return
		}
		if err := deliver(bodyReader(ctx, resp), h); err != nil {
			h.OnError(err)
			return
		}
		h.OnCompleted()
	}()
}

// Do implements Engine.
func (e *FastEngine) Do(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	resp, err := e.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	defer e.release(resp)
	_, _ = io.Copy(io.Discard, io.LimitReader(bodyReader(ctx, resp), 64*1024))

	code := resp.StatusCode()
	return &Response{
		StatusCode: code,
		Status:     strconv.Itoa(code) + " " + http.StatusText(code),
		Header:     responseHeader(resp),
	}, nil
}

// Close implements Engine.
func (e *FastEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
