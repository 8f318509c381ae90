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
Package engine provides the asynchronous HTTP engines a session runs its
exchanges on.

An engine drives one goroutine per Execute call and reports the response
through a Handler: OnStatus, then OnHeaders, then zero or more OnBodyPart
calls in order, and finally exactly one of OnCompleted or OnError. A
callback returning Abort stops the exchange; the engine then releases the
connection and calls OnCompleted.
*/
package engine // import "github.com/sonatype/wagon-ahc/pkg/engine"

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/sonatype/wagon-ahc/pkg/connection"
)

// ChunkSize is the largest body part handed to OnBodyPart.
const ChunkSize = 16 * 1024

// State is returned by handler callbacks.
type State int

const (
	Continue State = iota
	Abort
)

// Handler receives the response of an asynchronous exchange. Callbacks
// run on the engine goroutine, never concurrently.
type Handler interface {
	OnStatus(code int) State
	OnHeaders(h http.Header) State
	// OnBodyPart receives the next body bytes. b is only valid during the
	// call.
	OnBodyPart(b []byte) State
	OnCompleted()
	OnError(err error)
}

// Request describes one exchange.
type Request struct {
	Method string
	URL    string
	Header http.Header
	// Body opens a fresh copy of the request body. It is called again when
	// the request has to be replayed, e.g. after an authentication
	// challenge. Nil means no body.
	Body func() (io.ReadCloser, error)
	// ContentLength is the body length, -1 when unknown.
	ContentLength int64
}

// Response is the status line and headers of a synchronous exchange.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
}

// Engine executes HTTP exchanges.
type Engine interface {
	// Execute starts req and returns immediately. h is called from
	// another goroutine.
	Execute(ctx context.Context, req *Request, h Handler)
	// Do performs req and waits for the response. The body is discarded.
	Do(ctx context.Context, req *Request) (*Response, error)
	// Close releases pooled connections.
	Close() error
}

// Config carries everything an engine takes from a connection context.
type Config struct {
	Timeouts     connection.Timeouts
	MaxRedirects int
	Proxy        *connection.Proxy
	Realm        *connection.Realm
	TLS          *tls.Config
	// Origin is the scheme and host credentials are scoped to.
	Origin             *url.URL
	PassCredentialsAll bool
}

// ConfigFrom derives an engine configuration from c.
func ConfigFrom(c *connection.Context) Config {
	repo := c.Repository()
	origin, _ := url.Parse(repo.URL)
	return Config{
		Timeouts:           c.Timeouts(),
		MaxRedirects:       c.MaxRedirects(),
		Proxy:              c.Proxy(),
		Realm:              c.Realm(),
		TLS:                c.TLSConfig(),
		Origin:             origin,
		PassCredentialsAll: c.PassCredentialsAll(),
	}
}

// Engine kinds accepted by New.
const (
	KindHTTP     = "http"
	KindFastHTTP = "fasthttp"
)

// ErrAborted is reported when an exchange is stopped by its handler.
var ErrAborted = errors.New("exchange aborted")

// New returns the engine registered under kind. The empty kind selects
// the net/http engine.
func New(kind string, cfg Config) (Engine, error) {
	switch strings.ToLower(kind) {
	case "", KindHTTP:
		return NewHTTPEngine(cfg), nil
	case KindFastHTTP:
		return NewFastEngine(cfg)
	default:
		return nil, errors.Errorf("unknown engine %q", kind)
	}
}

// sendCredentials reports whether the realm may be attached to a request
// for u.
func (c Config) sendCredentials(u *url.URL) bool {
	if c.Realm == nil {
		return false
	}
	if c.PassCredentialsAll || c.Origin == nil {
		return true
	}
	return strings.EqualFold(u.Scheme, c.Origin.Scheme) && strings.EqualFold(u.Host, c.Origin.Host)
}

// basicChallenge reports whether h asks for Basic credentials.
func basicChallenge(h http.Header) bool {
	for _, v := range h.Values("WWW-Authenticate") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), "basic") {
			return true
		}
	}
	return false
}
