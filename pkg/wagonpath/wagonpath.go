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

// Package wagonpath locates wagon's configuration files following the XDG
// base directory layout.
package wagonpath // import "github.com/sonatype/wagon-ahc/pkg/wagonpath"

import (
	"os"
	"path/filepath"
)

const (
	// ConfigHomeEnvVar overrides the configuration directory.
	ConfigHomeEnvVar = "WAGON_CONFIG_HOME"

	xdgConfigHomeEnvVar = "XDG_CONFIG_HOME"

	appName = "wagon"
)

// ConfigPath returns the path where wagon stores configuration.
//
// The lookup order is $WAGON_CONFIG_HOME, then $XDG_CONFIG_HOME/wagon, then
// $HOME/.config/wagon.
func ConfigPath(elem ...string) string {
	if base := os.Getenv(ConfigHomeEnvVar); base != "" {
		return filepath.Join(base, filepath.Join(elem...))
	}
	base := os.Getenv(xdgConfigHomeEnvVar)
	if base == "" {
		base = filepath.Join(homeDir(), ".config")
	}
	return filepath.Join(base, appName, filepath.Join(elem...))
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}
