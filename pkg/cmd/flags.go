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

package cmd

import (
	"github.com/spf13/pflag"

	"github.com/sonatype/wagon-ahc/pkg/connection"
)

type authOptions struct {
	username string
	password string
}

func addAuthFlags(f *pflag.FlagSet, o *authOptions) {
	f.StringVar(&o.username, "username", "", "repository username, overrides the repositories file")
	f.StringVar(&o.password, "password", "", "repository password")
}

// authInfo returns nil without a username so the repositories file applies.
func (o *authOptions) authInfo() *connection.AuthInfo {
	if o.username == "" {
		return nil
	}
	return &connection.AuthInfo{Username: o.username, Password: o.password}
}
