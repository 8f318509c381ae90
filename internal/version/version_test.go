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

package version

import "testing"

func TestGetUserAgent(t *testing.T) {
	defer func(v, m string) { version, metadata = v, m }(version, metadata)

	version, metadata = "v1.2.3", ""
	if ua := GetUserAgent(); ua != "wagon-ahc/1.2.3" {
		t.Errorf("Expected wagon-ahc/1.2.3, got %q", ua)
	}

	metadata = "dirty"
	if ua := GetUserAgent(); ua != "wagon-ahc/1.2.3+dirty" {
		t.Errorf("Expected build metadata in user agent, got %q", ua)
	}
}

func TestGetStripsGoVersionInTests(t *testing.T) {
	if v := Get(); v.GoVersion != "" {
		t.Errorf("Expected empty go version during tests, got %q", v.GoVersion)
	}
}

func TestGetPrefersLinkedCommit(t *testing.T) {
	defer func(c, s string) { gitCommit, gitTreeState = c, s }(gitCommit, gitTreeState)

	gitCommit, gitTreeState = "0123456789abcdef", "clean"
	v := Get()
	if v.GitCommit != "0123456789abcdef" || v.GitTreeState != "clean" {
		t.Errorf("Expected linked commit and tree state, got %+v", v)
	}
}
