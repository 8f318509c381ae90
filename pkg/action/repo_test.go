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

package action

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonatype/wagon-ahc/pkg/repo"
)

func TestRepoAdd(t *testing.T) {
	repoFile := filepath.Join(t.TempDir(), "config", "repositories.yaml")
	o := &RepoAddOptions{
		Name:         "releases",
		URL:          "https://repo.example/releases",
		MaxRedirects: -1,
		RepoFile:     repoFile,
	}

	out := &bytes.Buffer{}
	require.NoError(t, o.Run(out))
	assert.Contains(t, out.String(), `"releases" has been added to your repositories`)

	f, err := repo.LoadFile(repoFile)
	require.NoError(t, err)
	require.True(t, f.Has("releases"))
	assert.Nil(t, f.Get("releases").MaxRedirects)

	// Same configuration again is a no-op.
	out.Reset()
	require.NoError(t, o.Run(out))
	assert.Contains(t, out.String(), "already exists with the same configuration")

	// A different configuration needs --force-update.
	o.URL = "https://mirror.example/releases"
	assert.ErrorContains(t, o.Run(out), "already exists")
	o.ForceUpdate = true
	require.NoError(t, o.Run(out))
	f, err = repo.LoadFile(repoFile)
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/releases", f.Get("releases").URL)
}

func TestRepoAddPasswordFromStdin(t *testing.T) {
	repoFile := filepath.Join(t.TempDir(), "repositories.yaml")
	o := &RepoAddOptions{
		Name:                 "internal",
		URL:                  "https://repo.example/internal",
		Username:             "deployer",
		PasswordFromStdinOpt: true,
		MaxRedirects:         2,
		In:                   strings.NewReader("s3cret\r\n"),
		RepoFile:             repoFile,
	}
	require.NoError(t, o.Run(&bytes.Buffer{}))

	f, err := repo.LoadFile(repoFile)
	require.NoError(t, err)
	e := f.Get("internal")
	require.NotNil(t, e)
	assert.Equal(t, "s3cret", e.Password)
	require.NotNil(t, e.MaxRedirects)
	assert.Equal(t, 2, *e.MaxRedirects)

	info, err := os.Stat(repoFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRepoAddInvalid(t *testing.T) {
	repoFile := filepath.Join(t.TempDir(), "repositories.yaml")
	tests := []RepoAddOptions{
		{Name: "a/b", URL: "https://repo.example", RepoFile: repoFile, MaxRedirects: -1},
		{Name: "ftp", URL: "ftp://repo.example", RepoFile: repoFile, MaxRedirects: -1},
		{Name: "tls", URL: "https://repo.example", CaFile: "/does/not/exist.pem", RepoFile: repoFile, MaxRedirects: -1},
	}
	for _, o := range tests {
		o := o
		t.Run(o.Name, func(t *testing.T) {
			assert.Error(t, o.Run(&bytes.Buffer{}))
		})
	}
	_, err := os.Stat(repoFile)
	assert.True(t, os.IsNotExist(err))
}

func TestRepoAddConcurrent(t *testing.T) {
	repoFile := filepath.Join(t.TempDir(), "repositories.yaml")

	var wg sync.WaitGroup
	names := []string{"a", "b", "c", "d"}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			o := &RepoAddOptions{Name: name, URL: "https://repo.example/" + name, RepoFile: repoFile, MaxRedirects: -1}
			assert.NoError(t, o.Run(&bytes.Buffer{}))
		}(name)
	}
	wg.Wait()

	f, err := repo.LoadFile(repoFile)
	require.NoError(t, err)
	for _, name := range names {
		assert.True(t, f.Has(name), "missing %s", name)
	}
}

func TestRepoRemoveAndList(t *testing.T) {
	repoFile := filepath.Join(t.TempDir(), "repositories.yaml")

	_, err := RepoList(repoFile)
	assert.ErrorContains(t, err, "no repositories to show")

	for _, name := range []string{"releases", "snapshots"} {
		o := &RepoAddOptions{Name: name, URL: "https://repo.example/" + name, RepoFile: repoFile, MaxRedirects: -1}
		require.NoError(t, o.Run(&bytes.Buffer{}))
	}

	entries, err := RepoList(repoFile)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	out := &bytes.Buffer{}
	rm := &RepoRemoveOptions{Names: []string{"snapshots"}, RepoFile: repoFile}
	require.NoError(t, rm.Run(out))
	assert.Contains(t, out.String(), `"snapshots" has been removed from your repositories`)

	entries, err = RepoList(repoFile)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "releases", entries[0].Name)

	assert.ErrorContains(t, rm.Run(out), `no repo named "snapshots" found`)
}
