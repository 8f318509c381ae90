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

package cmd // import "github.com/sonatype/wagon-ahc/pkg/cmd"

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sonatype/wagon-ahc/internal/logging"
	"github.com/sonatype/wagon-ahc/pkg/action"
	"github.com/sonatype/wagon-ahc/pkg/cli"
	"github.com/sonatype/wagon-ahc/pkg/metrics"
)

var globalUsage = `Move artifacts to and from Maven-style repositories over HTTP(S).

Common actions for wagon:

- wagon get:       download resources into a local directory
- wagon put:       upload a file as a resource
- wagon exists:    check whether resources are present
- wagon repo add:  remember a repository under a name

A REPOSITORY argument is either a URL (http, https, dav, davs, dav:http,
dav+https, ...) or the name of an entry in the repositories file.

Environment variables:

| Name                            | Description                                                        |
|---------------------------------|--------------------------------------------------------------------|
| $WAGON_CONFIG_HOME              | set an alternative location for storing wagon configuration.       |
| $WAGON_DEBUG                    | indicate whether or not wagon is running in Debug mode             |
| $WAGON_REPOSITORY_CONFIG        | set the path to the repositories file.                             |
| $WAGON_ENGINE                   | set the HTTP engine: http or fasthttp.                             |
| $WAGON_TIMEOUT                  | set the time limit of a whole request (0 means none).              |
| $WAGON_CONNECT_TIMEOUT          | set the time limit for establishing a connection.                  |
| $WAGON_READ_IDLE_TIMEOUT        | set the longest pause allowed between two reads of a response.     |
| $WAGON_MAX_REDIRECTS            | set the number of redirects to follow (0 disables them).           |
| $WAGON_USE_CACHE                | allow caches between wagon and the repository to answer.           |
| $WAGON_CREDENTIAL_ENCODING      | set the charset of Basic credentials (default UTF-8).              |
| $WAGON_CA_FILE                  | set the CA bundle used to verify repositories.                     |
| $WAGON_CERT_FILE                | set the client certificate.                                        |
| $WAGON_KEY_FILE                 | set the client key.                                                |
| $WAGON_INSECURE_SKIP_TLS_VERIFY | skip certificate verification (insecure).                          |
| $WAGON_METRICS_TEXTFILE         | write transfer metrics to this file in Prometheus text format.     |
| $HTTP_PROXY, $HTTPS_PROXY       | proxies used when the repositories file declares none.             |
| $NO_PROXY                       | hosts reached without a proxy.                                     |
`

var settings = cli.New()

// NewRootCmd creates the wagon command tree writing to out.
func NewRootCmd(out io.Writer, args []string) (*cobra.Command, error) {
	actionConfig := action.NewConfiguration(settings)
	actionConfig.SetLogger(logging.NewLogger(os.Stderr, func() bool { return settings.Debug }))
	return newRootCmdWithConfig(actionConfig, out, args)
}

func newRootCmdWithConfig(actionConfig *action.Configuration, out io.Writer, args []string) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:          "wagon",
		Short:        "Transfer artifacts to and from HTTP repositories.",
		Long:         globalUsage,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if settings.MetricsTextfile != "" {
				// Sessions close their io.Closer listeners, which writes the file.
				actionConfig.Listeners = append(actionConfig.Listeners,
					metrics.NewListener(metrics.WithTextfile(settings.MetricsTextfile)))
			}
		},
	}
	actionConfig.Settings = settings

	flags := cmd.PersistentFlags()
	settings.AddFlags(flags)

	// Errors are reported again by cmd.Execute; this pass only makes the
	// flag values visible before the subcommands are built.
	flags.ParseErrorsWhitelist.UnknownFlags = true
	_ = flags.Parse(args)

	cmd.AddCommand(
		newGetCmd(actionConfig, out),
		newPutCmd(actionConfig, out),
		newExistsCmd(actionConfig, out),
		newStatCmd(actionConfig, out),
		newRepoCmd(out),
		newEnvCmd(out),
		newVersionCmd(out),
	)

	return cmd, nil
}
