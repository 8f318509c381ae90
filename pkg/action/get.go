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
	"io"
	"os"
	"path/filepath"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sonatype/wagon-ahc/pkg/connection"
	"github.com/sonatype/wagon-ahc/pkg/transfer"
	"github.com/sonatype/wagon-ahc/pkg/wagon"
)

// Get is the action for downloading resources into a local directory.
type Get struct {
	cfg *Configuration

	// DestDir receives the resources under their repository-relative paths.
	DestDir string
	// Parallel is the number of concurrent downloads.
	Parallel int
	// Newer asks the repository to skip resources whose local copy is at
	// least as recent.
	Newer bool
	Auth  *connection.AuthInfo
}

// GetResult reports one downloaded resource.
type GetResult struct {
	Resource string
	Path     string
	Outcome  transfer.Outcome
	// Size is the number of bytes written, -1 when nothing was written.
	Size int64
}

// NewGet creates a new Get object with the given configuration.
func NewGet(cfg *Configuration) *Get {
	return &Get{cfg: cfg, DestDir: ".", Parallel: 1}
}

// Run downloads resources from target. Results keep the order of resources;
// the first failure cancels the downloads still running.
func (g *Get) Run(ctx context.Context, target string, resources []string) ([]*GetResult, error) {
	w, err := g.cfg.Open(target, g.Auth)
	if err != nil {
		return nil, err
	}

	results := make([]*GetResult, len(resources))
	eg, ctx := errgroup.WithContext(ctx)
	if g.Parallel > 0 {
		eg.SetLimit(g.Parallel)
	} else {
		eg.SetLimit(1)
	}
	for i, resource := range resources {
		i, resource := i, resource
		eg.Go(func() error {
			res, err := g.fetch(ctx, w, resource)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	var result error
	if err := eg.Wait(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := w.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if result != nil {
		return nil, result
	}
	return results, nil
}

func (g *Get) fetch(ctx context.Context, w *wagon.Wagon, resource string) (*GetResult, error) {
	dest, err := securejoin.SecureJoin(g.DestDir, filepath.FromSlash(resource))
	if err != nil {
		return nil, errors.Wrapf(err, "resolving local path for %s", resource)
	}

	var since time.Time
	if g.Newer {
		if fi, err := os.Stat(dest); err == nil {
			since = fi.ModTime()
		}
	}

	res, err := w.Fetch(ctx, resource, since)
	if err != nil {
		return nil, err
	}
	if res.Outcome == transfer.NotModified {
		return &GetResult{Resource: resource, Path: dest, Outcome: res.Outcome, Size: -1}, nil
	}
	defer res.Body.Close()

	n, err := writeAtomic(dest, res.Body)
	if err != nil {
		return nil, err
	}
	if !res.LastModified.IsZero() {
		if err := os.Chtimes(dest, res.LastModified, res.LastModified); err != nil {
			return nil, err
		}
	}
	return &GetResult{Resource: resource, Path: dest, Outcome: res.Outcome, Size: n}, nil
}

// writeAtomic copies r to a temporary file next to dest and renames it into
// place, so a failed download never leaves a partial file at dest.
func writeAtomic(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}
