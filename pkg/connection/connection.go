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
Package connection turns repository coordinates, credentials and proxy
settings into the immutable Context a session talks to the engine with.
*/
package connection // import "github.com/sonatype/wagon-ahc/pkg/connection"

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/sonatype/wagon-ahc/internal/version"
	"github.com/sonatype/wagon-ahc/pkg/transfer"
	"github.com/sonatype/wagon-ahc/pkg/urlutil"
)

const (
	DefaultMaxRedirects    = 5
	DefaultConnectTimeout  = 60 * time.Second
	DefaultReadIdleTimeout = 60 * time.Second
)

// Timeouts bound an exchange. A zero value disables the bound.
type Timeouts struct {
	Connect  time.Duration
	ReadIdle time.Duration
	// Request bounds the whole exchange, body included.
	Request time.Duration
}

// options collects the settings applied by Option functions.
type options struct {
	aliases            urlutil.Aliases
	maxRedirects       int
	timeouts           Timeouts
	header             http.Header
	useCache           bool
	userAgent          string
	tlsConfig          *tls.Config
	preemptive         bool
	encoding           string
	passCredentialsAll bool
}

// Option configures a Context.
type Option func(*options)

// WithAliases replaces the protocol alias table.
func WithAliases(a urlutil.Aliases) Option {
	return func(o *options) {
		o.aliases = a
	}
}

// WithMaxRedirects sets how many redirects are followed. Zero disables
// redirect following.
func WithMaxRedirects(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxRedirects = n
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeouts.Connect = d
	}
}

func WithReadIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeouts.ReadIdle = d
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeouts.Request = d
	}
}

// WithHeaders adds headers sent on every request. They take precedence
// over the defaults, User-Agent included.
func WithHeaders(h http.Header) Option {
	return func(o *options) {
		for k, v := range h {
			o.header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
	}
}

// WithUseCache stops the cache-defeating headers from being sent.
func WithUseCache(useCache bool) Option {
	return func(o *options) {
		o.useCache = useCache
	}
}

func WithUserAgent(userAgent string) Option {
	return func(o *options) {
		o.userAgent = userAgent
	}
}

func WithTLSClientConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// WithPreemptiveAuth controls whether credentials are sent before the
// server asks for them.
func WithPreemptiveAuth(preemptive bool) Option {
	return func(o *options) {
		o.preemptive = preemptive
	}
}

// WithCredentialEncoding sets the charset of Basic credentials.
func WithCredentialEncoding(enc string) Option {
	return func(o *options) {
		o.encoding = enc
	}
}

// WithPassCredentialsAll sends credentials to every host, redirect
// targets included.
func WithPassCredentialsAll(pass bool) Option {
	return func(o *options) {
		o.passCredentialsAll = pass
	}
}

// Context is the immutable connection configuration of a session.
type Context struct {
	repository         *urlutil.Repository
	aliases            urlutil.Aliases
	realm              *Realm
	proxy              *Proxy
	timeouts           Timeouts
	maxRedirects       int
	header             http.Header
	tlsConfig          *tls.Config
	passCredentialsAll bool
}

// Configure builds the Context for repositoryURL. auth and proxies may be
// nil.
func Configure(repositoryURL string, auth *AuthInfo, proxies ProxyLookup, opts ...Option) (*Context, error) {
	o := options{
		aliases:      urlutil.DefaultAliases,
		maxRedirects: DefaultMaxRedirects,
		timeouts: Timeouts{
			Connect:  DefaultConnectTimeout,
			ReadIdle: DefaultReadIdleTimeout,
		},
		header:     http.Header{},
		userAgent:  version.GetUserAgent(),
		preemptive: true,
		encoding:   DefaultEncoding,
	}
	for _, opt := range opts {
		opt(&o)
	}

	repo, err := o.aliases.ParseRepository(repositoryURL)
	if err != nil {
		return nil, transfer.InvalidURL(repositoryURL, err)
	}

	c := &Context{
		repository:         repo,
		aliases:            o.aliases,
		timeouts:           o.timeouts,
		maxRedirects:       o.maxRedirects,
		tlsConfig:          o.tlsConfig,
		passCredentialsAll: o.passCredentialsAll,
	}

	if auth != nil && auth.Username != "" {
		c.realm = &Realm{
			Principal:  auth.Username,
			Secret:     auth.Password,
			Preemptive: o.preemptive,
			Encoding:   o.encoding,
			Scheme:     SchemeBasic,
		}
	}

	if proxies != nil {
		info := proxies.ProxyFor(repo.Scheme, repo.Host)
		if info == nil && repo.Scheme == "https" {
			info = proxies.ProxyFor("http", repo.Host)
		}
		if info != nil && info.Host != "" && !info.Bypass(repo.Host) {
			c.proxy = &Proxy{Host: info.Host, Port: info.Port}
			if info.Username != "" && info.Password != "" {
				c.proxy.Username = info.Username
				c.proxy.Password = info.Password
			}
			if info.NTLMDomain != "" && info.NTLMHost != "" {
				c.realm = ntlmRealm(c.realm, info, o)
			}
		}
	}

	c.header = defaultHeaders(o)
	return c, nil
}

// ntlmRealm switches realm to NTLM. Without repository credentials the
// proxy credentials authenticate.
func ntlmRealm(realm *Realm, info *ProxyInfo, o options) *Realm {
	if realm == nil {
		realm = &Realm{
			Principal:  info.Username,
			Secret:     info.Password,
			Preemptive: o.preemptive,
			Encoding:   o.encoding,
		}
	}
	realm.Scheme = SchemeNTLM
	realm.NTLMDomain = info.NTLMDomain
	realm.NTLMHost = info.NTLMHost
	return realm
}

func defaultHeaders(o options) http.Header {
	h := http.Header{}
	if !o.useCache {
		h.Set("Cache-control", "no-cache")
		h.Set("Cache-store", "no-store")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
	}
	h.Set("Accept-Encoding", "gzip")
	if o.userAgent != "" {
		h.Set("User-Agent", o.userAgent)
	}
	for k, v := range o.header {
		h[k] = append([]string(nil), v...)
	}
	return h
}

// Repository returns the parsed repository.
func (c *Context) Repository() urlutil.Repository { return *c.repository }

// BuildURL resolves resource against the repository.
func (c *Context) BuildURL(resource string) (string, error) {
	u, err := c.aliases.BuildURL(c.repository.URL, resource)
	if err != nil {
		return "", transfer.InvalidURL(c.repository.URL+"/"+resource, err)
	}
	return u, nil
}

// Realm returns a copy of the realm, or nil.
func (c *Context) Realm() *Realm {
	if c.realm == nil {
		return nil
	}
	r := *c.realm
	return &r
}

// Proxy returns a copy of the proxy, or nil.
func (c *Context) Proxy() *Proxy {
	if c.proxy == nil {
		return nil
	}
	p := *c.proxy
	return &p
}

func (c *Context) Timeouts() Timeouts { return c.timeouts }

func (c *Context) MaxRedirects() int { return c.maxRedirects }

// FollowRedirects reports whether redirects are followed at all.
func (c *Context) FollowRedirects() bool { return c.maxRedirects > 0 }

// Header returns a copy of the headers sent on every request.
func (c *Context) Header() http.Header { return c.header.Clone() }

// TLSConfig returns a copy of the TLS client configuration, or nil.
func (c *Context) TLSConfig() *tls.Config {
	if c.tlsConfig == nil {
		return nil
	}
	return c.tlsConfig.Clone()
}

func (c *Context) PassCredentialsAll() bool { return c.passCredentialsAll }
