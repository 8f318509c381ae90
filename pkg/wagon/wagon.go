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
Package wagon transfers artifacts to and from a remote repository over
HTTP(S).

A Wagon is a session bound to one repository. Its operations block the
calling goroutine while the exchange itself runs on the engine's
goroutines:

	w, err := wagon.Open("https://repo.example/releases", auth, proxies)
	if err != nil {
		return err
	}
	defer w.Close()

	res, err := w.Fetch(ctx, "org/foo/1.0/foo-1.0.jar", time.Time{})
*/
package wagon // import "github.com/sonatype/wagon-ahc/pkg/wagon"

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sonatype/wagon-ahc/internal/logging"
	"github.com/sonatype/wagon-ahc/pkg/connection"
	"github.com/sonatype/wagon-ahc/pkg/engine"
	"github.com/sonatype/wagon-ahc/pkg/pipe"
	"github.com/sonatype/wagon-ahc/pkg/transfer"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("wagon: session is closed")

type options struct {
	engineKind string
	engine     engine.Engine
	connOpts   []connection.Option
	listeners  transfer.Listeners
	log        logrus.FieldLogger
	pipeSize   int
}

// Option configures a Wagon.
type Option func(*options)

// WithEngineKind selects the engine by name, see engine.New.
func WithEngineKind(kind string) Option {
	return func(o *options) {
		o.engineKind = kind
	}
}

// WithEngine runs the session on e instead of building one. The session
// closes e when it is closed.
func WithEngine(e engine.Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithConnectionOptions passes options through to connection.Configure.
func WithConnectionOptions(opts ...connection.Option) Option {
	return func(o *options) {
		o.connOpts = append(o.connOpts, opts...)
	}
}

// WithHeaders adds headers sent on every request.
func WithHeaders(h http.Header) Option {
	return WithConnectionOptions(connection.WithHeaders(h))
}

// WithListener registers a transfer listener. Listeners that implement
// io.Closer are closed with the session.
func WithListener(l transfer.Listener) Option {
	return func(o *options) {
		o.listeners = append(o.listeners, l)
	}
}

// WithLogger logs requests and transfer events to l.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithPipeSize sets the download buffer capacity.
func WithPipeSize(n int) Option {
	return func(o *options) {
		o.pipeSize = n
	}
}

// Wagon is a transfer session bound to one repository.
type Wagon struct {
	conn      *connection.Context
	engine    engine.Engine
	listeners transfer.Listeners
	log       logrus.FieldLogger
	pipeSize  int

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open configures a session for repositoryURL. auth and proxies may be nil.
func Open(repositoryURL string, auth *connection.AuthInfo, proxies connection.ProxyLookup, opts ...Option) (*Wagon, error) {
	o := options{
		log:      logging.Discard(),
		pipeSize: pipe.DefaultSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	w := &Wagon{
		listeners: o.listeners,
		log:       o.log,
		pipeSize:  o.pipeSize,
	}
	w.listeners = append(w.listeners, transfer.LogListener{Log: o.log})
	w.fire(transfer.Event{Type: transfer.SessionOpening, URL: repositoryURL})

	conn, err := connection.Configure(repositoryURL, auth, proxies, o.connOpts...)
	if err != nil {
		return nil, err
	}
	w.conn = conn

	w.engine = o.engine
	if w.engine == nil {
		if w.engine, err = engine.New(o.engineKind, engine.ConfigFrom(conn)); err != nil {
			return nil, errors.Wrap(err, "creating engine")
		}
	}

	w.fire(transfer.Event{Type: transfer.SessionOpened, URL: conn.Repository().URL})
	return w, nil
}

// Connection returns the session's connection context.
func (w *Wagon) Connection() *connection.Context { return w.conn }

func (w *Wagon) fire(e transfer.Event) {
	w.listeners.TransferEvent(e)
}

// exchangeContext tags ctx with a logger for one exchange.
func (w *Wagon) exchangeContext(ctx context.Context, method, url string) context.Context {
	entry := w.log.WithFields(logrus.Fields{
		"exchange": uuid.NewString(),
		"method":   method,
		"url":      url,
	})
	return logging.WithLogger(ctx, entry)
}

func (w *Wagon) resolve(resource string) (string, error) {
	if w.closed.Load() {
		return "", transfer.Fail(resource, ErrClosed, "session closed")
	}
	return w.conn.BuildURL(resource)
}

// refused reports an authorization failure to listeners.
func (w *Wagon) refused(err error) {
	if transfer.IsAuthDenied(err) {
		w.fire(transfer.Event{Type: transfer.SessionConnectionRefused, URL: w.conn.Repository().URL, Err: err})
	}
}

// Resource describes a remote resource.
type Resource struct {
	Name string
	URL  string
	// ContentLength is -1 when unknown.
	ContentLength int64
	// LastModified is zero when unknown.
	LastModified time.Time
}

func (w *Wagon) head(ctx context.Context, resource string) (*Resource, error) {
	u, err := w.resolve(resource)
	if err != nil {
		return nil, err
	}
	ctx = w.exchangeContext(ctx, http.MethodHead, u)

	resp, err := w.engine.Do(ctx, &engine.Request{
		Method: http.MethodHead,
		URL:    u,
		Header: w.conn.Header(),
	})
	if err != nil {
		return nil, transfer.Fail(u, err, "transfer failed")
	}
	logging.G(ctx).WithField("status", resp.StatusCode).Debug("response received")
	w.fire(transfer.Event{Type: transfer.Debug, Direction: transfer.Head, Resource: resource, URL: u,
		Message: u + " - Status code: " + resp.Status})

	if _, err := transfer.Check(transfer.Head, u, resp.StatusCode); err != nil {
		w.refused(err)
		return nil, err
	}
	length, modified := w.metadata(transfer.Head, resource, u, resp.Header)
	return &Resource{
		Name:          resource,
		URL:           u,
		ContentLength: length,
		LastModified:  modified,
	}, nil
}

// Exists reports whether resource is present in the repository. A missing
// resource is not an error.
func (w *Wagon) Exists(ctx context.Context, resource string) (bool, error) {
	if _, err := w.head(ctx, resource); err != nil {
		if transfer.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stat returns the metadata of resource. A missing resource is a NotFound
// error.
func (w *Wagon) Stat(ctx context.Context, resource string) (*Resource, error) {
	return w.head(ctx, resource)
}

// Close releases the engine and closes listeners that are io.Closers. It
// is safe to call more than once; later calls return the first result.
func (w *Wagon) Close() error {
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		repoURL := w.conn.Repository().URL
		w.fire(transfer.Event{Type: transfer.SessionDisconnecting, URL: repoURL})

		var result *multierror.Error
		if err := w.engine.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "closing engine"))
		}
		w.fire(transfer.Event{Type: transfer.SessionDisconnected, URL: repoURL})
		for _, l := range w.listeners {
			if c, ok := l.(io.Closer); ok {
				if err := c.Close(); err != nil {
					result = multierror.Append(result, err)
				}
			}
		}
		w.closeErr = result.ErrorOrNil()
	})
	return w.closeErr
}
