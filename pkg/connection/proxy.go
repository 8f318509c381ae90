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
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/net/http/httpproxy"
)

// ProxyInfo describes a proxy as configured by the user.
type ProxyInfo struct {
	// Protocol is the repository protocol the proxy serves, http or https.
	Protocol   string
	Host       string
	Port       int
	Username   string
	Password   string
	NTLMDomain string
	NTLMHost   string
	// NonProxyHosts holds host patterns, such as "*.corp.example", that
	// bypass the proxy.
	NonProxyHosts []string
}

// Bypass reports whether host matches one of the non-proxy host patterns.
func (p *ProxyInfo) Bypass(host string) bool {
	host = strings.ToLower(host)
	for _, pattern := range p.NonProxyHosts {
		for _, alt := range strings.Split(pattern, "|") {
			alt = strings.ToLower(strings.TrimSpace(alt))
			if alt == "" {
				continue
			}
			g, err := glob.Compile(alt)
			if err != nil {
				continue
			}
			if g.Match(host) {
				return true
			}
		}
	}
	return false
}

// ProxyLookup finds the proxy for a repository protocol and host.
type ProxyLookup interface {
	ProxyFor(protocol, host string) *ProxyInfo
}

// ProxyLookupFunc adapts a function to a ProxyLookup.
type ProxyLookupFunc func(protocol, host string) *ProxyInfo

// ProxyFor implements ProxyLookup.
func (f ProxyLookupFunc) ProxyFor(protocol, host string) *ProxyInfo {
	return f(protocol, host)
}

// NoProxy never returns a proxy.
var NoProxy ProxyLookup = ProxyLookupFunc(func(string, string) *ProxyInfo { return nil })

// EnvProxyLookup resolves proxies from HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
type EnvProxyLookup struct {
	cfg *httpproxy.Config
}

// NewEnvProxyLookup reads the proxy environment once.
func NewEnvProxyLookup() *EnvProxyLookup {
	return &EnvProxyLookup{cfg: httpproxy.FromEnvironment()}
}

// ProxyFor implements ProxyLookup.
func (e *EnvProxyLookup) ProxyFor(protocol, host string) *ProxyInfo {
	if e == nil || e.cfg == nil {
		return nil
	}
	u, err := e.cfg.ProxyFunc()(&url.URL{Scheme: protocol, Host: host})
	if err != nil || u == nil {
		return nil
	}
	return proxyInfoFromURL(protocol, u)
}

func proxyInfoFromURL(protocol string, u *url.URL) *ProxyInfo {
	p := &ProxyInfo{Protocol: protocol, Host: u.Hostname()}
	if port, err := strconv.Atoi(u.Port()); err == nil {
		p.Port = port
	} else if u.Scheme == "https" {
		p.Port = 443
	} else {
		p.Port = 80
	}
	if u.User != nil {
		p.Username = u.User.Username()
		p.Password, _ = u.User.Password()
	}
	return p
}

// Proxy is the proxy a session was configured with.
type Proxy struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Address returns host:port.
func (p *Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// URL returns the proxy as an http URL, with credentials when present.
func (p *Proxy) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Address()}
	if p.Username != "" && p.Password != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}
