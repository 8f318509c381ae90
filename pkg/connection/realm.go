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

package connection

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/htmlindex"
)

// AuthScheme is the authentication scheme of a realm.
type AuthScheme int

const (
	SchemeBasic AuthScheme = iota
	SchemeNTLM
)

func (s AuthScheme) String() string {
	if s == SchemeNTLM {
		return "NTLM"
	}
	return "Basic"
}

// DefaultEncoding is the charset credentials are encoded with.
const DefaultEncoding = "UTF-8"

// AuthInfo carries repository credentials.
type AuthInfo struct {
	Username string
	Password string
}

// Realm is the authentication realm of a session.
type Realm struct {
	Principal  string
	Secret     string
	Preemptive bool
	Encoding   string
	Scheme     AuthScheme
	NTLMDomain string
	NTLMHost   string
}

// BasicCredentials returns the value of a Basic Authorization header with
// the principal and secret encoded in the realm's charset.
func (r *Realm) BasicCredentials() (string, error) {
	raw := r.Principal + ":" + r.Secret
	enc := r.Encoding
	if enc == "" || strings.EqualFold(enc, DefaultEncoding) {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw)), nil
	}
	e, err := htmlindex.Get(enc)
	if err != nil {
		return "", errors.Wrapf(err, "unsupported credential encoding %q", enc)
	}
	b, err := e.NewEncoder().Bytes([]byte(raw))
	if err != nil {
		return "", errors.Wrapf(err, "credentials cannot be encoded as %s", enc)
	}
	return "Basic " + base64.StdEncoding.EncodeToString(b), nil
}

// CheckEncoding reports whether enc names a charset credentials can be
// encoded with.
func CheckEncoding(enc string) error {
	if enc == "" || strings.EqualFold(enc, DefaultEncoding) {
		return nil
	}
	if _, err := htmlindex.Get(enc); err != nil {
		return errors.Wrapf(err, "unsupported credential encoding %q", enc)
	}
	return nil
}

// NTLMUser returns the user name in DOMAIN\principal form.
func (r *Realm) NTLMUser() string {
	if r.NTLMDomain == "" {
		return r.Principal
	}
	return r.NTLMDomain + `\` + r.Principal
}
