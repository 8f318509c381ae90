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

package version // import "github.com/sonatype/wagon-ahc/internal/version"

import (
	"flag"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/sonatype/wagon-ahc/internal/version.gitCommit=...".
var (
	version      = "v1.0"
	metadata     = ""
	gitCommit    = ""
	gitTreeState = ""
)

// BuildInfo describes the compile time information.
type BuildInfo struct {
	Version      string `json:"version,omitempty"`
	GitCommit    string `json:"git_commit,omitempty"`
	GitTreeState string `json:"git_tree_state,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
}

// GetVersion returns the semver string, with build metadata when present.
func GetVersion() string {
	if metadata == "" {
		return version
	}
	return version + "+" + metadata
}

// GetUserAgent returns the User-Agent sent on every request unless the
// caller overrides it.
func GetUserAgent() string {
	return "wagon-ahc/" + strings.TrimPrefix(GetVersion(), "v")
}

// Get returns build info. Commit and tree state fall back to the VCS
// stamp the go command embeds when they were not set at link time.
func Get() BuildInfo {
	v := BuildInfo{
		Version:      GetVersion(),
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		GoVersion:    runtime.Version(),
	}
	if v.GitCommit == "" {
		v.GitCommit, v.GitTreeState = vcsStamp()
	}

	// strip out GoVersion during a test run for consistent test output
	if flag.Lookup("test.v") != nil {
		v.GoVersion = ""
	}
	return v
}

func vcsStamp() (commit, treeState string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.modified":
			treeState = "clean"
			if s.Value == "true" {
				treeState = "dirty"
			}
		}
	}
	if commit == "" {
		treeState = ""
	}
	return commit, treeState
}
