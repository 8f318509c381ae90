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
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies a class of transfer error.
type Kind string

const (
	KindAuthDenied     Kind = "auth-denied"
	KindNotFound       Kind = "not-found"
	KindTransferFailed Kind = "transfer-failed"
	KindInvalidURL     Kind = "invalid-url"
)

// Error is returned by every wagon operation that fails. The original
// transport error, when there is one, is preserved in Err.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.URL)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status code %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Fail wraps err as a TransferFailed error for url.
func Fail(url string, err error, format string, args ...interface{}) error {
	return &Error{Kind: KindTransferFailed, URL: url, Msg: fmt.Sprintf(format, args...), Err: err}
}

// InvalidURL wraps err as an InvalidURL error.
func InvalidURL(url string, err error) error {
	return &Error{Kind: KindInvalidURL, URL: url, Msg: "invalid URL", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or the empty
// kind if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusCodeOf returns the status code carried by err, or NoStatus.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.StatusCode > 0 {
		return e.StatusCode
	}
	return NoStatus
}

func IsNotFound(err error) bool       { return KindOf(err) == KindNotFound }
func IsAuthDenied(err error) bool     { return KindOf(err) == KindAuthDenied }
func IsTransferFailed(err error) bool { return KindOf(err) == KindTransferFailed }
func IsInvalidURL(err error) bool     { return KindOf(err) == KindInvalidURL }
