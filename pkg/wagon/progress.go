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

package wagon

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sonatype/wagon-ahc/pkg/engine"
)

// ProgressChunkSize is the largest chunk an upload hands to the engine.
// One Progress event is fired per chunk.
const ProgressChunkSize = engine.ChunkSize

// Source is the body of an upload.
type Source struct {
	// Open returns a fresh reader over the content. It is called again if
	// the request has to be replayed.
	Open func() (io.ReadCloser, error)
	// Length is the content length, -1 when unknown.
	Length int64
	// LastModified is informational and may be zero.
	LastModified time.Time
}

// FileSource uploads the file at path.
func FileSource(path string) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Source{}, err
	}
	if fi.IsDir() {
		return Source{}, errors.Errorf("%s is a directory", path)
	}
	return Source{
		Open:         func() (io.ReadCloser, error) { return os.Open(path) },
		Length:       fi.Size(),
		LastModified: fi.ModTime(),
	}, nil
}

// StreamSource uploads r. A stream can only be read once, so a request
// that has to be replayed fails.
func StreamSource(r io.Reader, length int64, lastModified time.Time) Source {
	var once sync.Once
	return Source{
		Open: func() (io.ReadCloser, error) {
			opened := false
			once.Do(func() { opened = true })
			if !opened {
				return nil, errors.New("stream source cannot be replayed")
			}
			if rc, ok := r.(io.ReadCloser); ok {
				return rc, nil
			}
			return io.NopCloser(r), nil
		},
		Length:       length,
		LastModified: lastModified,
	}
}

// progressReader caps each read at ProgressChunkSize and reports it
// before the engine sees the bytes.
type progressReader struct {
	rc     io.ReadCloser
	report func(n int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	if len(b) > ProgressChunkSize {
		b = b[:ProgressChunkSize]
	}
	n, err := p.rc.Read(b)
	if n > 0 {
		p.report(n)
	}
	return n, err
}

func (p *progressReader) Close() error {
	return p.rc.Close()
}
