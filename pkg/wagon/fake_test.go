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
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/sonatype/wagon-ahc/pkg/engine"
	"github.com/sonatype/wagon-ahc/pkg/transfer"
)

// fakeEngine drives handler callbacks from a script.
type fakeEngine struct {
	exec   func(h engine.Handler)
	do     func(req *engine.Request) (*engine.Response, error)
	closes int32

	mu       sync.Mutex
	requests []*engine.Request
}

func (f *fakeEngine) Execute(_ context.Context, req *engine.Request, h engine.Handler) {
	f.record(req)
	go f.exec(h)
}

func (f *fakeEngine) Do(_ context.Context, req *engine.Request) (*engine.Response, error) {
	f.record(req)
	return f.do(req)
}

func (f *fakeEngine) Close() error {
	atomic.AddInt32(&f.closes, 1)
	return nil
}

func (f *fakeEngine) record(req *engine.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeEngine) lastRequest() *engine.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func statusResponse(code int) func(*engine.Request) (*engine.Response, error) {
	return func(*engine.Request) (*engine.Response, error) {
		return &engine.Response{StatusCode: code, Status: http.StatusText(code), Header: http.Header{}}, nil
	}
}

// eventLog records transfer events.
type eventLog struct {
	mu     sync.Mutex
	events []transfer.Event
	closed int
}

func (l *eventLog) TransferEvent(e transfer.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed++
	return nil
}

func (l *eventLog) types() []transfer.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []transfer.EventType
	for _, e := range l.events {
		if e.Type != transfer.Progress && e.Type != transfer.Debug {
			out = append(out, e.Type)
		}
	}
	return out
}

func (l *eventLog) progress(dir transfer.Direction) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []int
	for _, e := range l.events {
		if e.Type == transfer.Progress && e.Direction == dir {
			out = append(out, e.Bytes)
		}
	}
	return out
}

func (l *eventLog) debug() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		if e.Type == transfer.Debug {
			out = append(out, e.Message)
		}
	}
	return out
}

func (l *eventLog) has(t transfer.EventType) bool {
	for _, got := range l.types() {
		if got == t {
			return true
		}
	}
	return false
}
