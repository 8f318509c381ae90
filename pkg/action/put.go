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
	"time"

	"github.com/sonatype/wagon-ahc/pkg/connection"
	"github.com/sonatype/wagon-ahc/pkg/wagon"
)

// Stdin is the path that makes Put read from its reader.
const Stdin = "-"

// Put is the action for uploading a file to a repository.
type Put struct {
	cfg *Configuration

	// Buffered collects the content in memory and sends it in one request.
	Buffered bool
	Auth     *connection.AuthInfo
	// In is read when the path is Stdin.
	In io.Reader
}

// NewPut creates a new Put object with the given configuration.
func NewPut(cfg *Configuration) *Put {
	return &Put{cfg: cfg, In: os.Stdin}
}

// Run stores the file at path as resource in target.
func (p *Put) Run(ctx context.Context, target, resource, path string) (err error) {
	w, err := p.cfg.Open(target, p.Auth)
	if err != nil {
		return err
	}
	defer closeSession(w, &err)

	if p.Buffered {
		return p.buffered(ctx, w, resource, path)
	}
	if path == Stdin {
		return w.StoreFromStream(ctx, resource, p.In, -1, time.Time{})
	}
	return w.StoreFile(ctx, resource, path)
}

func (p *Put) buffered(ctx context.Context, w *wagon.Wagon, resource, path string) error {
	r := p.In
	length := int64(-1)
	if path != Stdin {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if fi, err := f.Stat(); err == nil {
			length = fi.Size()
		}
		r = f
	}

	up, err := w.NewUpload(resource, length)
	if err != nil {
		return err
	}
	defer up.Close()
	if _, err := io.Copy(up, r); err != nil {
		return err
	}
	return up.Send(ctx)
}
