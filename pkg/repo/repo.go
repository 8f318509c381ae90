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

// Package repo reads and writes the repositories file, which names the
// repositories and proxies a wagon session can use.
package repo // import "github.com/sonatype/wagon-ahc/pkg/repo"

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/sonatype/wagon-ahc/pkg/connection"
)

// APIVersionV1 is the version of the repositories file format.
const APIVersionV1 = "v1"

// File represents the repositories.yaml file
type File struct {
	APIVersion   string        `json:"apiVersion"`
	Generated    time.Time     `json:"generated"`
	Repositories []*Entry      `json:"repositories"`
	Proxies      []*ProxyEntry `json:"proxies,omitempty"`
}

// NewFile generates an empty repositories file.
//
// Generated and APIVersion are automatically set.
func NewFile() *File {
	return &File{
		APIVersion:   APIVersionV1,
		Generated:    time.Now(),
		Repositories: []*Entry{},
	}
}

// LoadFile takes a file at the given path and returns a File object.
//
// A missing file yields an error that satisfies os.IsNotExist through
// errors.Cause.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't load repositories file (%s)", path)
	}

	r := NewFile()
	if err := yaml.Unmarshal(b, r); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if r.APIVersion == "" {
		r.APIVersion = APIVersionV1
	}
	return r, r.Validate()
}

// Validate checks every entry and returns all problems at once.
func (r *File) Validate() error {
	var result error
	seen := map[string]bool{}
	for i, e := range r.Repositories {
		if e == nil {
			result = multierror.Append(result, errors.Errorf("repositories[%d]: empty entry", i))
			continue
		}
		if seen[e.Name] {
			result = multierror.Append(result, errors.Errorf("repositories[%d]: duplicate name %q", i, e.Name))
		}
		seen[e.Name] = true
		if err := e.Validate(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "repositories[%d]", i))
		}
	}
	for i, p := range r.Proxies {
		if p == nil {
			result = multierror.Append(result, errors.Errorf("proxies[%d]: empty entry", i))
			continue
		}
		if err := p.Validate(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "proxies[%d]", i))
		}
	}
	return result
}

// Add adds one or more repo entries to a repo file.
func (r *File) Add(re ...*Entry) {
	r.Repositories = append(r.Repositories, re...)
}

// Update attempts to replace one or more repo entries in a repo file. If an
// entry with the same name doesn't exist in the repo file it will add it.
func (r *File) Update(re ...*Entry) {
	for _, target := range re {
		r.update(target)
	}
}

func (r *File) update(e *Entry) {
	for j, repo := range r.Repositories {
		if repo != nil && repo.Name == e.Name {
			r.Repositories[j] = e
			return
		}
	}
	r.Add(e)
}

// Has returns true if the given name is already a repository name.
func (r *File) Has(name string) bool {
	return r.Get(name) != nil
}

// Get returns the entry with the given name, or nil.
func (r *File) Get(name string) *Entry {
	for _, entry := range r.Repositories {
		if entry != nil && entry.Name == name {
			return entry
		}
	}
	return nil
}

// Remove removes the entry from the list of repositories.
func (r *File) Remove(name string) bool {
	cp := []*Entry{}
	found := false
	for _, rf := range r.Repositories {
		if rf == nil {
			continue
		}
		if rf.Name == name {
			found = true
			continue
		}
		cp = append(cp, rf)
	}
	r.Repositories = cp
	return found
}

// ProxyFor implements connection.ProxyLookup. The first proxy whose protocol
// matches wins; a proxy without a protocol serves every protocol.
func (r *File) ProxyFor(protocol, host string) *connection.ProxyInfo {
	for _, p := range r.Proxies {
		if p == nil {
			continue
		}
		if p.Protocol == "" || strings.EqualFold(p.Protocol, protocol) {
			info := p.ProxyInfo()
			info.Protocol = protocol
			return info
		}
	}
	return nil
}

// WriteFile writes a repositories file to the given path.
func (r *File) WriteFile(path string, perm os.FileMode) error {
	if r.APIVersion == "" {
		r.APIVersion = APIVersionV1
	}
	r.Generated = time.Now()
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

// LockPath returns the lock file guarding path: the same name with a .lock
// extension.
func LockPath(path string) string {
	ext := filepath.Ext(path)
	if len(ext) > 0 && len(ext) < len(path) {
		return strings.TrimSuffix(path, ext) + ".lock"
	}
	return path + ".lock"
}
