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
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/sonatype/wagon-ahc/internal/version"
	"github.com/sonatype/wagon-ahc/pkg/cli/require"
)

const versionDesc = `
Show the version for wagon.

--short prints the version with an abbreviated commit. --template formats
the build information with a Go template; .Version, .GitCommit,
.GitTreeState and .GoVersion are available:

    $ wagon version --template='{{.Version}}'

--output json or --output yaml prints the same fields as a document.
`

type versionOptions struct {
	short    bool
	template string
	output   string
}

func newVersionCmd(out io.Writer) *cobra.Command {
	o := &versionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "print the wagon version information",
		Long:  versionDesc,
		Args:  require.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return o.run(out)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.short, "short", false, "print the version number")
	f.StringVar(&o.template, "template", "", "template for version string format")
	f.StringVarP(&o.output, "output", "o", "", "print the build information as json or yaml")

	return cmd
}

func (o *versionOptions) run(out io.Writer) error {
	info := version.Get()
	switch {
	case o.template != "":
		tt, err := template.New("_").Parse(o.template)
		if err != nil {
			return err
		}
		return tt.Execute(out, info)
	case o.output == "json":
		b, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
	case o.output == "yaml":
		b, err := yaml.Marshal(info)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(b))
	case o.output != "":
		return errors.Errorf("invalid output format %q, expected json or yaml", o.output)
	case o.short:
		fmt.Fprintln(out, shortVersion(info))
	default:
		fmt.Fprintf(out, "%#v\n", info)
	}
	return nil
}

func shortVersion(info version.BuildInfo) string {
	if len(info.GitCommit) >= 7 {
		return fmt.Sprintf("%s+g%s", info.Version, info.GitCommit[:7])
	}
	return info.Version
}
