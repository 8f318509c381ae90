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
	"io"
	"net/http"

	"github.com/Azure/go-ntlmssp"

	"github.com/sonatype/wagon-ahc/pkg/connection"
)

// authTransport attaches the realm to requests bound for the repository
// origin.
type authTransport struct {
	cfg  Config
	base http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.cfg.sendCredentials(req.URL) || req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}
	realm := t.cfg.Realm
	req = req.Clone(req.Context())

	if realm.Scheme == connection.SchemeNTLM {
		req.SetBasicAuth(realm.NTLMUser(), realm.Secret)
		return ntlmssp.Negotiator{RoundTripper: t.base}.RoundTrip(req)
	}

	cred, err := realm.BasicCredentials()
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	if realm.Preemptive {
		req.Header.Set("Authorization", cred)
		return t.base.RoundTrip(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || !basicChallenge(resp.Header) {
		return resp, err
	}
	hasBody := req.Body != nil && req.Body != http.NoBody
	if hasBody && req.GetBody == nil {
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if hasBody {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	retry.Header.Set("Authorization", cred)
	return t.base.RoundTrip(retry)
}
