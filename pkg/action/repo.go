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
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/sonatype/wagon-ahc/pkg/repo"
)

// RepoRemoveOptions removes entries from the repositories file.
type RepoRemoveOptions struct {
	Names    []string
	RepoFile string
}

func (o *RepoRemoveOptions) Run(out io.Writer) error {
	return withRepoFileLock(o.RepoFile, func() error {
		r, err := repo.LoadFile(o.RepoFile)
		if err != nil {
			if os.IsNotExist(errors.Cause(err)) {
				return errors.New("no repositories configured")
			}
			return err
		}

		for _, name := range o.Names {
			if !r.Remove(name) {
				return errors.Errorf("no repo named %q found", name)
			}
		}
		if err := r.WriteFile(o.RepoFile, 0600); err != nil {
			return err
		}
		for _, name := range o.Names {
			fmt.Fprintf(out, "%q has been removed from your repositories\n", name)
		}
		return nil
	})
}

// RepoList returns the configured repositories.
func RepoList(repoFile string) ([]*repo.Entry, error) {
	f, err := repo.LoadFile(repoFile)
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, err
	}
	if f == nil || len(f.Repositories) == 0 {
		return nil, errors.New("no repositories to show")
	}
	return f.Repositories, nil
}
