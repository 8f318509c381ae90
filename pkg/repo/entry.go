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

package repo

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/sonatype/wagon-ahc/internal/tlsutil"
	"github.com/sonatype/wagon-ahc/pkg/connection"
	"github.com/sonatype/wagon-ahc/pkg/urlutil"
)

// Entry represents a collection of parameters for a repository.
type Entry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// ChallengeAuth holds credentials back until the repository answers
	// with a challenge. By default they go with the first request.
	ChallengeAuth         bool              `json:"challengeAuth,omitempty"`
	PassCredentialsAll    bool              `json:"pass_credentials_all,omitempty"`
	CredentialEncoding    string            `json:"credentialEncoding,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	CertFile              string            `json:"certFile,omitempty"`
	KeyFile               string            `json:"keyFile,omitempty"`
	CAFile                string            `json:"caFile,omitempty"`
	InsecureSkipTLSverify bool              `json:"insecure_skip_tls_verify,omitempty"`
	// TLSServerName overrides the host name certificates are checked
	// against, for repositories reached through an address the
	// certificate does not name.
	TLSServerName string `json:"tlsServerName,omitempty"`
	// MaxRedirects overrides the session default when set. Zero disables
	// redirect following.
	MaxRedirects *int `json:"maxRedirects,omitempty"`
}

// Validate checks the entry on its own.
func (e *Entry) Validate() error {
	if e.Name == "" {
		return errors.New("repository name is required")
	}
	if strings.Contains(e.Name, "/") {
		return errors.Errorf("repository name (%s) contains '/', please specify a different name without '/'", e.Name)
	}
	if _, err := urlutil.ParseRepository(e.URL); err != nil {
		return errors.Wrapf(err, "repository %s", e.Name)
	}
	if (e.CertFile == "") != (e.KeyFile == "") {
		return errors.Errorf("repository %s: certFile and keyFile must be set together", e.Name)
	}
	if e.MaxRedirects != nil && *e.MaxRedirects < 0 {
		return errors.Errorf("repository %s: maxRedirects must not be negative", e.Name)
	}
	if err := connection.CheckEncoding(e.CredentialEncoding); err != nil {
		return errors.Wrapf(err, "repository %s", e.Name)
	}
	return nil
}

// Equal reports whether two entries carry the same configuration.
func (e *Entry) Equal(o *Entry) bool {
	return reflect.DeepEqual(e, o)
}

// AuthInfo returns the entry's credentials, or nil when none are set.
func (e *Entry) AuthInfo() *connection.AuthInfo {
	if e.Username == "" {
		return nil
	}
	return &connection.AuthInfo{Username: e.Username, Password: e.Password}
}

// Options translates the entry into connection options. TLS files are read
// here, so a bad path fails before any request is made.
func (e *Entry) Options() ([]connection.Option, error) {
	var opts []connection.Option
	if e.ChallengeAuth {
		opts = append(opts, connection.WithPreemptiveAuth(false))
	}
	if e.PassCredentialsAll {
		opts = append(opts, connection.WithPassCredentialsAll(true))
	}
	if e.MaxRedirects != nil {
		opts = append(opts, connection.WithMaxRedirects(*e.MaxRedirects))
	}
	if e.CredentialEncoding != "" {
		opts = append(opts, connection.WithCredentialEncoding(e.CredentialEncoding))
	}
	if len(e.Headers) > 0 {
		h := http.Header{}
		for k, v := range e.Headers {
			h.Set(k, v)
		}
		opts = append(opts, connection.WithHeaders(h))
	}
	if e.CertFile != "" || e.CAFile != "" || e.InsecureSkipTLSverify || e.TLSServerName != "" {
		cfg, err := tlsutil.NewTLSConfig(
			tlsutil.WithInsecureSkipVerify(e.InsecureSkipTLSverify),
			tlsutil.WithCertKeyPairFiles(e.CertFile, e.KeyFile),
			tlsutil.WithCAFile(e.CAFile),
			tlsutil.WithServerName(e.TLSServerName),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "repository %s", e.Name)
		}
		opts = append(opts, connection.WithTLSClientConfig(cfg))
	}
	return opts, nil
}

// ProxyEntry is a proxy declared in the repositories file.
type ProxyEntry struct {
	// Protocol limits the proxy to http or https repositories. Empty means
	// both.
	Protocol      string   `json:"protocol,omitempty"`
	Host          string   `json:"host"`
	Port          int      `json:"port,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	NTLMDomain    string   `json:"ntlmDomain,omitempty"`
	NTLMHost      string   `json:"ntlmHost,omitempty"`
	NonProxyHosts []string `json:"nonProxyHosts,omitempty"`
}

// Validate checks the proxy entry.
func (p *ProxyEntry) Validate() error {
	if p.Host == "" {
		return errors.New("proxy host is required")
	}
	switch strings.ToLower(p.Protocol) {
	case "", "http", "https":
	default:
		return errors.Errorf("proxy %s: unsupported protocol %q", p.Host, p.Protocol)
	}
	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("proxy %s: port %d out of range", p.Host, p.Port)
	}
	return nil
}

// ProxyInfo converts the entry for connection.Configure.
func (p *ProxyEntry) ProxyInfo() *connection.ProxyInfo {
	port := p.Port
	if port == 0 {
		port = 80
	}
	return &connection.ProxyInfo{
		Protocol:      strings.ToLower(p.Protocol),
		Host:          p.Host,
		Port:          port,
		Username:      p.Username,
		Password:      p.Password,
		NTLMDomain:    p.NTLMDomain,
		NTLMHost:      p.NTLMHost,
		NonProxyHosts: append([]string(nil), p.NonProxyHosts...),
	}
}
