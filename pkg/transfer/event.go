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

package transfer

import (
	"time"

	"github.com/sirupsen/logrus"
)

// EventType describes what happened during a session or a transfer.
type EventType int

const (
	Initiated EventType = iota
	Started
	Progress
	Completed
	Failed
	Debug

	SessionOpening
	SessionOpened
	SessionConnectionRefused
	SessionDisconnecting
	SessionDisconnected
)

var eventNames = map[EventType]string{
	Initiated:                "initiated",
	Started:                  "started",
	Progress:                 "progress",
	Completed:                "completed",
	Failed:                   "error",
	Debug:                    "debug",
	SessionOpening:           "session-opening",
	SessionOpened:            "session-opened",
	SessionConnectionRefused: "session-connection-refused",
	SessionDisconnecting:     "session-disconnecting",
	SessionDisconnected:      "session-disconnected",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return "unknown"
}

// Event is a notification emitted while a session is open. Progress events
// are emitted synchronously on the goroutine performing the I/O.
type Event struct {
	Type      EventType
	Direction Direction
	// Resource is the repository-relative resource name.
	Resource string
	// URL is the absolute URL of the exchange, if any.
	URL string
	// Bytes is the number of bytes moved by a Progress event.
	Bytes int
	// Total is the declared size of the resource, -1 when unknown.
	Total     int64
	Outcome   Outcome
	Err       error
	Message   string
	Timestamp time.Time
}

// Listener receives events. Implementations must not block.
type Listener interface {
	TransferEvent(Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(Event)

// TransferEvent implements Listener.
func (f ListenerFunc) TransferEvent(e Event) { f(e) }

// Listeners fans an event out to several listeners. A listener that panics
// is skipped; the transfer never observes the failure.
type Listeners []Listener

// TransferEvent implements Listener.
func (ls Listeners) TransferEvent(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	for _, l := range ls {
		if l == nil {
			continue
		}
		notify(l, e)
	}
}

func notify(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("event", e.Type.String()).Warnf("transfer listener panicked: %v", r)
		}
	}()
	l.TransferEvent(e)
}

// LogListener writes events to a logrus logger. Progress events are not
// logged.
type LogListener struct {
	Log logrus.FieldLogger
}

// TransferEvent implements Listener.
func (l LogListener) TransferEvent(e Event) {
	if l.Log == nil || e.Type == Progress {
		return
	}
	entry := l.Log.WithFields(logrus.Fields{
		"event":     e.Type.String(),
		"direction": e.Direction.String(),
	})
	if e.Resource != "" {
		entry = entry.WithField("resource", e.Resource)
	}
	if e.URL != "" {
		entry = entry.WithField("url", e.URL)
	}
	switch e.Type {
	case Failed:
		entry.WithError(e.Err).Error("transfer failed")
	case SessionConnectionRefused:
		entry.Warn("connection refused by repository")
	case Completed:
		entry.WithField("outcome", e.Outcome.String()).Info("transfer completed")
	case Debug:
		entry.Debug(e.Message)
	default:
		entry.Debug(e.Message)
	}
}
