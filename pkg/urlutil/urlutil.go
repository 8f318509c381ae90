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

package urlutil // import "github.com/sonatype/wagon-ahc/pkg/urlutil"

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Aliases maps repository protocol names to the HTTP scheme that serves them.
type Aliases map[string]string

// DefaultAliases maps the WebDAV-style protocol names used in repository
// definitions onto plain http and https.
var DefaultAliases = Aliases{
	"http":      "http",
	"https":     "https",
	"dav":       "http",
	"davs":      "https",
	"dav:http":  "http",
	"dav:https": "https",
	"dav+http":  "http",
	"dav+https": "https",
}

// Normalize returns the scheme protocol maps to, or protocol itself when it
// is not an alias.
func (a Aliases) Normalize(protocol string) string {
	if s, ok := a[strings.ToLower(protocol)]; ok {
		return s
	}
	return protocol
}

// Protocol returns everything before the first ":/" of rawURL. Unlike
// url.Parse it keeps compound protocols such as "dav:http" intact.
func Protocol(rawURL string) string {
	idx := strings.Index(rawURL, ":/")
	if idx < 0 {
		return ""
	}
	return rawURL[:idx]
}

// BuildURL joins a repository base URL and a resource path using
// DefaultAliases.
func BuildURL(repositoryURL, resource string) (string, error) {
	return DefaultAliases.BuildURL(repositoryURL, resource)
}

// BuildURL joins repositoryURL and resource with exactly one separator,
// normalizes the protocol and percent-encodes the path segments.
func (a Aliases) BuildURL(repositoryURL, resource string) (string, error) {
	idx := strings.Index(repositoryURL, "://")
	if idx < 0 {
		return "", errors.Errorf("missing protocol in repository URL %q", repositoryURL)
	}
	scheme := a.Normalize(repositoryURL[:idx])

	rest := repositoryURL[idx+3:]
	authority, path := rest, "/"
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		authority, path = rest[:slash], rest[slash:]
	}
	if authority == "" {
		return "", errors.Errorf("missing host in repository URL %q", repositoryURL)
	}

	// Keep escapes already present in the base path and encode the rest.
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = (&url.URL{Path: unescaped, RawPath: path}).EscapedPath()
	} else {
		path = (&url.URL{Path: path}).EscapedPath()
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	var segments []string
	for _, s := range strings.Split(resource, "/") {
		if s == "" {
			continue
		}
		segments = append(segments, url.PathEscape(s))
	}

	full := scheme + "://" + authority + path + strings.Join(segments, "/")
	if _, err := url.Parse(full); err != nil {
		return "", errors.Wrapf(err, "invalid URL for resource %q", resource)
	}
	return full, nil
}

// Repository is a parsed repository base URL.
type Repository struct {
	// URL is the base URL with its protocol normalized.
	URL string
	// Protocol is the protocol as written in the definition, e.g. "dav:https".
	Protocol string
	// Scheme is the normalized scheme, http or https.
	Scheme string
	// Host is the host name without port.
	Host string
	// Port is the explicit port, or empty.
	Port string
}

// ParseRepository parses and normalizes a repository base URL.
func ParseRepository(rawURL string) (*Repository, error) {
	return DefaultAliases.ParseRepository(rawURL)
}

// ParseRepository parses and normalizes a repository base URL.
func (a Aliases) ParseRepository(rawURL string) (*Repository, error) {
	protocol := Protocol(rawURL)
	if protocol == "" {
		return nil, errors.Errorf("missing protocol in repository URL %q", rawURL)
	}
	scheme := a.Normalize(protocol)
	if scheme != "http" && scheme != "https" {
		return nil, errors.Errorf("unsupported protocol %q in repository URL %q", protocol, rawURL)
	}
	normalized := scheme + strings.TrimPrefix(rawURL, protocol)
	u, err := url.Parse(normalized)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid repository URL %q", rawURL)
	}
	if u.Hostname() == "" {
		return nil, errors.Errorf("missing host in repository URL %q", rawURL)
	}
	return &Repository{
		URL:      strings.TrimSuffix(u.String(), "/"),
		Protocol: protocol,
		Scheme:   scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
	}, nil
}
