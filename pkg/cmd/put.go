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
)

const putDesc = `
Upload a file to a repository as RESOURCE.

Use - as FILE to read the content from standard input. By default the file
is streamed; --buffered collects it in memory first and sends it in one
request.
`

func newPutCmd(cfg *action.Configuration, out io.Writer) *cobra.Command {
	client := action.NewPut(cfg)
	auth := &authOptions{}

	cmd := &cobra.Command{
		Use:   "put REPOSITORY FILE RESOURCE",
		Short: "upload a file to a repository",
		Long:  putDesc,
		Args:  require.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client.Auth = auth.authInfo()
			client.In = cmd.InOrStdin()
			if err := client.Run(cmd.Context(), args[0], args[2], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Uploaded %s\n", args[2])
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&client.Buffered, "buffered", false, "buffer the content in memory and send it in one request")
	addAuthFlags(f, auth)

	return cmd
}
