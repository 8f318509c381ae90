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

package transfer // import "github.com/sonatype/wagon-ahc/pkg/transfer"

import "net/http"

// Direction is the kind of request an exchange performs.
type Direction int

const (
	// Get downloads a resource.
	Get Direction = iota
	// Put uploads a resource.
	Put
	// Head checks whether a resource exists.
	Head
)

func (d Direction) String() string {
	switch d {
	case Get:
		return "GET"
	case Put:
		return "PUT"
	case Head:
		return "HEAD"
	}
	return "UNKNOWN"
}

// Method returns the HTTP method used for the direction.
func (d Direction) Method() string {
	switch d {
	case Put:
		return http.MethodPut
	case Head:
		return http.MethodHead
	}
	return http.MethodGet
}

// Outcome is the semantic result of a response status code.
type Outcome int

const (
	// Success means the transfer completed.
	Success Outcome = iota
	// NotModified means the remote copy is unchanged since the supplied
	// timestamp. It is not an error.
	NotModified
	// NotFound means the resource does not exist.
	NotFound
	// AuthDenied means the repository refused the credentials.
	AuthDenied
	// ProxyAuthRequired means the proxy refused the credentials.
	ProxyAuthRequired
	// TransferFailed covers every other status and missing responses.
	TransferFailed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotModified:
		return "not-modified"
	case NotFound:
		return "not-found"
	case AuthDenied:
		return "auth-denied"
	case ProxyAuthRequired:
		return "proxy-auth-required"
	}
	return "transfer-failed"
}

// NoStatus is the status code of an exchange that never received a response.
const NoStatus = -1

// Classify maps a status code to an outcome for the given direction.
//
// Classify is a pure function: it has no side effects and never retries.
func Classify(dir Direction, code int) Outcome {
	switch code {
	case http.StatusOK:
		return Success
	case http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		if dir == Put {
			return Success
		}
		return TransferFailed
	case http.StatusNotModified:
		switch dir {
		case Get:
			return NotModified
		case Head:
			return Success
		}
		return TransferFailed
	case http.StatusUnauthorized, http.StatusForbidden:
		return AuthDenied
	case http.StatusProxyAuthRequired:
		return ProxyAuthRequired
	case http.StatusNotFound:
		return NotFound
	}
	return TransferFailed
}

// Check classifies code and returns the matching error, or nil when the
// outcome is Success or NotModified.
func Check(dir Direction, url string, code int) (Outcome, error) {
	outcome := Classify(dir, code)
	switch outcome {
	case Success, NotModified:
		return outcome, nil
	case NotFound:
		return outcome, &Error{Kind: KindNotFound, URL: url, StatusCode: code, Msg: "resource does not exist"}
	case AuthDenied:
		msg := "access denied"
		if code == http.StatusUnauthorized {
			msg = "not authorized"
		}
		return outcome, &Error{Kind: KindAuthDenied, URL: url, StatusCode: code, Msg: msg}
	case ProxyAuthRequired:
		return outcome, &Error{Kind: KindAuthDenied, URL: url, StatusCode: code, Msg: "not authorized by proxy"}
	}
	if code <= 0 {
		return outcome, &Error{Kind: KindTransferFailed, URL: url, StatusCode: code, Msg: "no response received"}
	}
	return outcome, &Error{Kind: KindTransferFailed, URL: url, StatusCode: code, Msg: "unexpected status code"}
}
