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

// Package tlsutil builds client TLS configurations for repository
// connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// settings collects what the options ask for before the config is built.
type settings struct {
	insecure   bool
	serverName string
	cert, key  []byte
	ca         []byte
}

// Option adjusts a client TLS configuration. It fails when a file it
// names cannot be read.
type Option func(*settings) error

// WithInsecureSkipVerify selects the loose configuration: any certificate
// and host name are accepted.
func WithInsecureSkipVerify(insecure bool) Option {
	return func(s *settings) error {
		s.insecure = insecure
		return nil
	}
}

// WithServerName checks the repository certificate against name instead
// of the host in the URL.
func WithServerName(name string) Option {
	return func(s *settings) error {
		s.serverName = name
		return nil
	}
}

// WithCertKeyPairFiles presents the client certificate in certFile.
func WithCertKeyPairFiles(certFile, keyFile string) Option {
	return func(s *settings) (err error) {
		if certFile == "" && keyFile == "" {
			return nil
		}
		if s.cert, err = readPEM("client certificate", certFile); err != nil {
			return err
		}
		s.key, err = readPEM("client key", keyFile)
		return err
	}
}

// WithCAFile trusts the certificates in caFile instead of the system roots.
func WithCAFile(caFile string) Option {
	return func(s *settings) (err error) {
		if caFile == "" {
			return nil
		}
		s.ca, err = readPEM("CA bundle", caFile)
		return err
	}
}

func readPEM(what, path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	return b, errors.Wrapf(err, "reading %s %q", what, path)
}

// NewTLSConfig builds a client TLS configuration. Without options the
// result verifies peers against the system roots. Every failing option is
// reported, not only the first.
func NewTLSConfig(opts ...Option) (*tls.Config, error) {
	var s settings
	var errs *multierror.Error
	for _, opt := range opts {
		errs = multierror.Append(errs, opt(&s))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		InsecureSkipVerify: s.insecure, // #nosec G402
		ServerName:         s.serverName,
		MinVersion:         tls.VersionTLS12,
	}
	if len(s.cert) > 0 && len(s.key) > 0 {
		pair, err := tls.X509KeyPair(s.cert, s.key)
		if err != nil {
			return nil, errors.Wrap(err, "loading client key pair")
		}
		cfg.Certificates = []tls.Certificate{pair}
	}
	if len(s.ca) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(s.ca) {
			return nil, errors.New("CA bundle holds no PEM certificates")
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
