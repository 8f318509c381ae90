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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sonatype/wagon-ahc/pkg/action"
	"github.com/sonatype/wagon-ahc/pkg/cli/require"
	"github.com/sonatype/wagon-ahc/pkg/transfer"
)

const getDesc = `
Download one or more resources from a repository.

Each resource is written under --dest-dir at its repository-relative path;
paths never escape that directory. With --newer, resources whose local copy
is at least as recent as the remote one are left alone.

    $ wagon get https://repo.example/releases org/foo/1.0/foo-1.0.jar org/foo/1.0/foo-1.0.pom
`

func newGetCmd(cfg *action.Configuration, out io.Writer) *cobra.Command {
	client := action.NewGet(cfg)
	auth := &authOptions{}

	cmd := &cobra.Command{
		Use:   "get REPOSITORY RESOURCE [RESOURCE...]",
		Short: "download resources from a repository",
		Long:  getDesc,
		Args:  require.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client.Auth = auth.authInfo()
			results, err := client.Run(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Outcome == transfer.NotModified {
					fmt.Fprintf(out, "%s is up to date\n", r.Path)
					continue
				}
				fmt.Fprintf(out, "Downloaded %s (%d bytes)\n", r.Path, r.Size)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&client.DestDir, "dest-dir", "d", ".", "directory receiving the resources")
	f.IntVarP(&client.Parallel, "parallel", "p", 1, "number of concurrent downloads")
	f.BoolVar(&client.Newer, "newer", false, "only download resources that changed since the local copy was written")
	addAuthFlags(f, auth)

	return cmd
}
