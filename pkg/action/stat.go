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
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/sonatype/wagon-ahc/pkg/connection"
	"github.com/sonatype/wagon-ahc/pkg/wagon"
)

// Exists is the action for checking whether resources are present.
type Exists struct {
	cfg  *Configuration
	Auth *connection.AuthInfo
}

// NewExists creates a new Exists object with the given configuration.
func NewExists(cfg *Configuration) *Exists {
	return &Exists{cfg: cfg}
}

// Run reports, per resource, whether it exists in target.
func (e *Exists) Run(ctx context.Context, target string, resources ...string) (found []bool, err error) {
	w, err := e.cfg.Open(target, e.Auth)
	if err != nil {
		return nil, err
	}
	defer closeSession(w, &err)

	found = make([]bool, len(resources))
	for i, resource := range resources {
		if found[i], err = w.Exists(ctx, resource); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// Stat is the action for reading resource metadata.
type Stat struct {
	cfg  *Configuration
	Auth *connection.AuthInfo
}

// NewStat creates a new Stat object with the given configuration.
func NewStat(cfg *Configuration) *Stat {
	return &Stat{cfg: cfg}
}

// Run returns the metadata of every resource. A missing resource fails the
// whole run.
func (s *Stat) Run(ctx context.Context, target string, resources ...string) (res []*wagon.Resource, err error) {
	w, err := s.cfg.Open(target, s.Auth)
	if err != nil {
		return nil, err
	}
	defer closeSession(w, &err)

	for _, resource := range resources {
		r, err := w.Stat(ctx, resource)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

func closeSession(w *wagon.Wagon, err *error) {
	if cerr := w.Close(); cerr != nil {
		*err = multierror.Append(*err, cerr).ErrorOrNil()
	}
}
