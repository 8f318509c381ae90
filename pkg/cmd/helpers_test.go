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

package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/sonatype/wagon-ahc/pkg/action"
	"github.com/sonatype/wagon-ahc/pkg/cli"
)

func executeActionCommandC(cmd string) (*cobra.Command, string, error) {
	return executeActionCommandStdinC("", cmd)
}

func executeActionCommandStdinC(stdin, cmd string) (*cobra.Command, string, error) {
	args, err := shellwords.Parse(cmd)
	if err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)

	settings = cli.New()
	actionConfig := action.NewConfiguration(settings)
	root, err := newRootCmdWithConfig(actionConfig, buf, args)
	if err != nil {
		return nil, "", err
	}

	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	c, err := root.ExecuteC()
	return c, buf.String(), err
}

// testEnv points the repositories file into a temporary directory.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WAGON_REPOSITORY_CONFIG", filepath.Join(dir, "repositories.yaml"))
	t.Setenv("WAGON_METRICS_TEXTFILE", "")
	t.Setenv("WAGON_DEBUG", "")
	return dir
}

// memRepo is an in-memory repository.
type memRepo struct {
	mu    sync.Mutex
	files map[string][]byte
}

var lastModified = time.Date(2023, 7, 14, 9, 30, 0, 0, time.UTC)

func newMemRepo(t *testing.T, files map[string]string) (*memRepo, string) {
	t.Helper()
	m := &memRepo{files: map[string][]byte{}}
	for k, v := range files {
		m.files[k] = []byte(v)
	}
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return m, srv.URL
}

func (m *memRepo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(r.Body); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		m.files[name] = buf.Bytes()
		w.WriteHeader(http.StatusCreated)
	default:
		data, ok := m.files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, name, lastModified, bytes.NewReader(data))
	}
}

func (m *memRepo) get(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.files[name])
}
