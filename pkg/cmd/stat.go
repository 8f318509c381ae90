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
	"net/http"

	"github.com/gosuri/uitable"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sonatype/wagon-ahc/pkg/action"
	"github.com/sonatype/wagon-ahc/pkg/cli/require"
)

// errMissing makes the command exit non-zero when a resource is absent.
var errMissing = errors.New("one or more resources do not exist")

func newExistsCmd(cfg *action.Configuration, out io.Writer) *cobra.Command {
	client := action.NewExists(cfg)
	auth := &authOptions{}

	cmd := &cobra.Command{
		Use:   "exists REPOSITORY RESOURCE [RESOURCE...]",
		Short: "check whether resources exist in a repository",
		Args:  require.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client.Auth = auth.authInfo()
			found, err := client.Run(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}
			missing := false
			for i, ok := range found {
				fmt.Fprintf(out, "%s\t%t\n", args[i+1], ok)
				missing = missing || !ok
			}
			if missing {
				return errMissing
			}
			return nil
		},
	}
	addAuthFlags(cmd.Flags(), auth)
	return cmd
}

func newStatCmd(cfg *action.Configuration, out io.Writer) *cobra.Command {
	client := action.NewStat(cfg)
	auth := &authOptions{}

	cmd := &cobra.Command{
		Use:   "stat REPOSITORY RESOURCE [RESOURCE...]",
		Short: "show the size and modification time of resources",
		Args:  require.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client.Auth = auth.authInfo()
			res, err := client.Run(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("RESOURCE", "SIZE", "LAST MODIFIED")
			for _, r := range res {
				size, modified := "unknown", "unknown"
				if r.ContentLength >= 0 {
					size = fmt.Sprint(r.ContentLength)
				}
				if !r.LastModified.IsZero() {
					modified = r.LastModified.UTC().Format(http.TimeFormat)
				}
				table.AddRow(r.Name, size, modified)
			}
			fmt.Fprintln(out, table)
			return nil
		},
	}
	addAuthFlags(cmd.Flags(), auth)
	return cmd
}
