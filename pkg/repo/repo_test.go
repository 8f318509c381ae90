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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonatype/wagon-ahc/pkg/connection"
)

func TestRepoFile(t *testing.T) {
	rf := NewFile()
	rf.Add(
		&Entry{
			Name: "releases",
			URL:  "https://repo.example/releases",
		},
		&Entry{
			Name: "snapshots",
			URL:  "dav:https://repo.example/snapshots",
		},
	)

	if len(rf.Repositories) != 2 {
		t.Fatal("Expected 2 repositories")
	}
	if rf.Has("nosuchrepo") {
		t.Error("Found nonexistent repo")
	}
	if !rf.Has("snapshots") {
		t.Error("snapshots repo is missing")
	}

	rf.Update(&Entry{Name: "releases", URL: "https://mirror.example/releases"})
	if got := rf.Get("releases").URL; got != "https://mirror.example/releases" {
		t.Errorf("Expected updated URL, got %q", got)
	}
	rf.Update(&Entry{Name: "thirdparty", URL: "http://repo.example/3rd"})
	if len(rf.Repositories) != 3 {
		t.Errorf("Expected update to add a missing entry, got %d entries", len(rf.Repositories))
	}

	if !rf.Remove("snapshots") {
		t.Error("Expected snapshots to be removed")
	}
	if rf.Remove("snapshots") {
		t.Error("Expected a second remove to report nothing removed")
	}
	assert.NoError(t, rf.Validate())
}

func TestWriteAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "repositories.yaml")
	redirects := 2

	rf := NewFile()
	rf.Add(&Entry{
		Name:          "releases",
		URL:           "https://repo.example/releases",
		Username:      "deployer",
		Password:      "secret",
		ChallengeAuth: true,
		Headers:       map[string]string{"X-Trace": "on"},
		MaxRedirects:  &redirects,
	})
	rf.Proxies = []*ProxyEntry{{
		Protocol:      "http",
		Host:          "proxy.corp",
		Port:          3128,
		NonProxyHosts: []string{"*.corp|localhost"},
	}}
	require.NoError(t, rf.WriteFile(path, 0600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, APIVersionV1, loaded.APIVersion)
	require.Len(t, loaded.Repositories, 1)
	assert.True(t, rf.Get("releases").Equal(loaded.Get("releases")))
	require.Len(t, loaded.Proxies, 1)
	assert.Equal(t, 3128, loaded.Proxies[0].Port)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestLoadFileCollectsAllProblems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repositories.yaml")
	data := `apiVersion: v1
repositories:
- name: a/b
  url: https://repo.example
- name: ok
  url: ftp://repo.example
- name: ok
  url: https://repo.example
proxies:
- protocol: socks
  host: proxy.corp
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	_, err := LoadFile(path)
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 4)
	assert.True(t, strings.Contains(err.Error(), "duplicate name"))
}

func TestEntryValidate(t *testing.T) {
	neg := -1
	tests := []struct {
		name  string
		entry Entry
		ok    bool
	}{
		{"valid", Entry{Name: "r", URL: "http://repo.example"}, true},
		{"no name", Entry{URL: "http://repo.example"}, false},
		{"bad url", Entry{Name: "r", URL: "repo.example"}, false},
		{"half key pair", Entry{Name: "r", URL: "http://repo.example", CertFile: "c.pem"}, false},
		{"negative redirects", Entry{Name: "r", URL: "http://repo.example", MaxRedirects: &neg}, false},
		{"latin1 credentials", Entry{Name: "r", URL: "http://repo.example", CredentialEncoding: "ISO-8859-1"}, true},
		{"unknown charset", Entry{Name: "r", URL: "http://repo.example", CredentialEncoding: "klingon"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEntryConnection(t *testing.T) {
	redirects := 0
	e := &Entry{
		Name:               "releases",
		URL:                "https://repo.example/releases",
		Username:           "deployer",
		Password:           "secret",
		ChallengeAuth:      true,
		CredentialEncoding: "ISO-8859-1",
		Headers:            map[string]string{"X-Trace": "on"},
		MaxRedirects:       &redirects,
		TLSServerName:      "repo.internal",
	}
	opts, err := e.Options()
	require.NoError(t, err)

	ctx, err := connection.Configure(e.URL, e.AuthInfo(), connection.NoProxy, opts...)
	require.NoError(t, err)
	assert.False(t, ctx.FollowRedirects())
	assert.Equal(t, "on", ctx.Header().Get("X-Trace"))
	require.NotNil(t, ctx.Realm())
	assert.False(t, ctx.Realm().Preemptive)
	assert.Equal(t, "deployer", ctx.Realm().Principal)
	assert.Equal(t, "ISO-8859-1", ctx.Realm().Encoding)
	require.NotNil(t, ctx.TLSConfig())
	assert.Equal(t, "repo.internal", ctx.TLSConfig().ServerName)

	assert.Nil(t, (&Entry{Name: "anon", URL: e.URL}).AuthInfo())

	_, err = (&Entry{Name: "tls", URL: e.URL, CAFile: "/does/not/exist.pem"}).Options()
	assert.Error(t, err)
}

func TestFileProxyFor(t *testing.T) {
	rf := NewFile()
	rf.Proxies = []*ProxyEntry{
		{Protocol: "https", Host: "secure.proxy", Port: 8443},
		{Host: "any.proxy"},
	}

	p := rf.ProxyFor("https", "repo.example")
	require.NotNil(t, p)
	assert.Equal(t, "secure.proxy", p.Host)
	assert.Equal(t, 8443, p.Port)

	p = rf.ProxyFor("http", "repo.example")
	require.NotNil(t, p)
	assert.Equal(t, "any.proxy", p.Host)
	assert.Equal(t, 80, p.Port)
	assert.Equal(t, "http", p.Protocol)

	var lookup connection.ProxyLookup = NewFile()
	assert.Nil(t, lookup.ProxyFor("http", "repo.example"))
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, "/home/u/repositories.lock", LockPath("/home/u/repositories.yaml"))
	assert.Equal(t, "/home/u/repos.lock", LockPath("/home/u/repos"))
}
