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
	"strings"

	"github.com/gosuri/uitable"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sonatype/wagon-ahc/pkg/action"
	"github.com/sonatype/wagon-ahc/pkg/cli/require"
)

var repoDesc = `
This command consists of multiple subcommands to interact with the
repositories file.

It can be used to add, remove and list repositories.
`

func newRepoCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo add|remove|list [ARGS]",
		Short: "add, list or remove repositories",
		Long:  repoDesc,
		Args:  require.NoArgs,
	}

	cmd.AddCommand(newRepoAddCmd(out))
	cmd.AddCommand(newRepoListCmd(out))
	cmd.AddCommand(newRepoRemoveCmd(out))

	return cmd
}

func newRepoAddCmd(out io.Writer) *cobra.Command {
	o := &action.RepoAddOptions{}
	var headers []string

	cmd := &cobra.Command{
		Use:   "add [NAME] [URL]",
		Short: "add a repository",
		Args:  require.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Name = args[0]
			o.URL = args[1]
			o.RepoFile = settings.RepositoryConfig
			o.In = cmd.InOrStdin()

			h, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			o.Headers = h
			return o.Run(out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.Username, "username", "", "repository username")
	f.StringVar(&o.Password, "password", "", "repository password")
	f.BoolVarP(&o.PasswordFromStdinOpt, "password-stdin", "", false, "read repository password from stdin")
	f.BoolVar(&o.ForceUpdate, "force-update", false, "replace (overwrite) the repo if it already exists")
	f.BoolVar(&o.ChallengeAuth, "challenge-auth", false, "send credentials only after the repository asks for them")
	f.BoolVar(&o.PassCredentialsAll, "pass-credentials", false, "pass credentials to all domains")
	f.StringVar(&o.CredentialEncoding, "credential-encoding", "", "charset of the credentials, such as ISO-8859-1 (default: the global setting)")
	f.IntVar(&o.MaxRedirects, "max-redirects", -1, "redirects to follow for this repository (default: the global setting)")
	f.StringArrayVar(&headers, "header", nil, "header sent with every request, as NAME=VALUE (can specify multiple)")
	f.StringVar(&o.CertFile, "cert-file", "", "identify HTTPS client using this SSL certificate file")
	f.StringVar(&o.KeyFile, "key-file", "", "identify HTTPS client using this SSL key file")
	f.StringVar(&o.CaFile, "ca-file", "", "verify certificates of HTTPS-enabled servers using this CA bundle")
	f.BoolVar(&o.InsecureSkipTLSverify, "insecure-skip-tls-verify", false, "skip tls certificate checks for the repository")
	f.StringVar(&o.TLSServerName, "tls-server-name", "", "host name the repository certificate is verified against")

	return cmd
}

func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	h := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.Errorf("invalid header %q, expected NAME=VALUE", pair)
		}
		h[strings.TrimSpace(name)] = value
	}
	return h, nil
}

func newRepoListCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "list repositories",
		Args:    require.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			entries, err := action.RepoList(settings.RepositoryConfig)
			if err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("NAME", "URL", "USERNAME")
			for _, re := range entries {
				table.AddRow(re.Name, re.URL, re.Username)
			}
			fmt.Fprintln(out, table)
			return nil
		},
	}
}

func newRepoRemoveCmd(out io.Writer) *cobra.Command {
	o := &action.RepoRemoveOptions{}
	return &cobra.Command{
		Use:     "remove [REPO1 [REPO2 ...]]",
		Aliases: []string{"rm"},
		Short:   "remove one or more repositories",
		Args:    require.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			o.RepoFile = settings.RepositoryConfig
			o.Names = args
			return o.Run(out)
		},
	}
}
