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

/*
Package cli describes the operating environment for the wagon CLI.

Every setting can come from a WAGON_* environment variable and is
overridden by the matching command line flag.
*/
package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/sonatype/wagon-ahc/internal/tlsutil"
	"github.com/sonatype/wagon-ahc/pkg/connection"
	"github.com/sonatype/wagon-ahc/pkg/engine"
	"github.com/sonatype/wagon-ahc/pkg/wagonpath"
)

// EnvSettings describes all of the environment settings.
type EnvSettings struct {
	// Debug indicates whether or not wagon is running in Debug mode.
	Debug bool
	// RepositoryConfig is the path to the repositories file.
	RepositoryConfig string
	// Engine selects the HTTP engine, "http" or "fasthttp".
	Engine string
	// Timeout bounds a whole request. Zero means no bound.
	Timeout time.Duration
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
	// ReadIdleTimeout bounds the time between two reads of one response.
	ReadIdleTimeout time.Duration
	// MaxRedirects is the number of redirects followed. Zero disables them.
	MaxRedirects int
	// UseCache allows intermediaries to serve cached responses.
	UseCache bool
	// CredentialEncoding is the charset Basic credentials are sent in.
	CredentialEncoding string

	CAFile                string
	CertFile              string
	KeyFile               string
	InsecureSkipTLSVerify bool

	// MetricsTextfile, when set, receives transfer metrics in the
	// Prometheus text format on exit.
	MetricsTextfile string
}

func New() *EnvSettings {
	env := &EnvSettings{
		RepositoryConfig: envOr("WAGON_REPOSITORY_CONFIG", wagonpath.ConfigPath("repositories.yaml")),
		Engine:           envOr("WAGON_ENGINE", engine.KindHTTP),
		CAFile:           os.Getenv("WAGON_CA_FILE"),
		CertFile:         os.Getenv("WAGON_CERT_FILE"),
		KeyFile:          os.Getenv("WAGON_KEY_FILE"),
		MetricsTextfile:  os.Getenv("WAGON_METRICS_TEXTFILE"),

		CredentialEncoding: envOr("WAGON_CREDENTIAL_ENCODING", connection.DefaultEncoding),
	}
	env.Debug, _ = strconv.ParseBool(os.Getenv("WAGON_DEBUG"))
	env.UseCache = envBoolOr("WAGON_USE_CACHE", false)
	env.InsecureSkipTLSVerify = envBoolOr("WAGON_INSECURE_SKIP_TLS_VERIFY", false)
	env.MaxRedirects = envIntOr("WAGON_MAX_REDIRECTS", connection.DefaultMaxRedirects)
	env.Timeout = envDurationOr("WAGON_TIMEOUT", 0)
	env.ConnectTimeout = envDurationOr("WAGON_CONNECT_TIMEOUT", connection.DefaultConnectTimeout)
	env.ReadIdleTimeout = envDurationOr("WAGON_READ_IDLE_TIMEOUT", connection.DefaultReadIdleTimeout)
	return env
}

// AddFlags binds flags to the given flagset.
func (s *EnvSettings) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&s.Debug, "debug", s.Debug, "enable verbose output")
	fs.StringVar(&s.RepositoryConfig, "repository-config", s.RepositoryConfig, "path to the file containing repository names and URLs")
	fs.StringVar(&s.Engine, "engine", s.Engine, "HTTP engine to use: http or fasthttp")
	fs.DurationVar(&s.Timeout, "timeout", s.Timeout, "time to wait for a whole request (0 waits forever)")
	fs.DurationVar(&s.ConnectTimeout, "connect-timeout", s.ConnectTimeout, "time to wait for a connection")
	fs.DurationVar(&s.ReadIdleTimeout, "read-idle-timeout", s.ReadIdleTimeout, "time to wait between two reads of a response")
	fs.IntVar(&s.MaxRedirects, "max-redirects", s.MaxRedirects, "number of redirects to follow (0 disables redirects)")
	fs.BoolVar(&s.UseCache, "use-cache", s.UseCache, "allow caches between wagon and the repository to answer")
	fs.StringVar(&s.CredentialEncoding, "credential-encoding", s.CredentialEncoding, "charset of Basic credentials, such as ISO-8859-1")
	fs.StringVar(&s.CAFile, "ca-file", s.CAFile, "verify certificates of HTTPS-enabled servers using this CA bundle")
	fs.StringVar(&s.CertFile, "cert-file", s.CertFile, "identify HTTPS client using this SSL certificate file")
	fs.StringVar(&s.KeyFile, "key-file", s.KeyFile, "identify HTTPS client using this SSL key file")
	fs.BoolVar(&s.InsecureSkipTLSVerify, "insecure-skip-tls-verify", s.InsecureSkipTLSVerify, "skip tls certificate checks for the repository")
	fs.StringVar(&s.MetricsTextfile, "metrics-textfile", s.MetricsTextfile, "write transfer metrics to this file in Prometheus text format")
}

// ConnectionOptions turns the settings into connection options. Options of
// a repository entry are meant to be applied after these.
func (s *EnvSettings) ConnectionOptions() ([]connection.Option, error) {
	if err := connection.CheckEncoding(s.CredentialEncoding); err != nil {
		return nil, err
	}
	opts := []connection.Option{
		connection.WithMaxRedirects(s.MaxRedirects),
		connection.WithConnectTimeout(s.ConnectTimeout),
		connection.WithReadIdleTimeout(s.ReadIdleTimeout),
		connection.WithRequestTimeout(s.Timeout),
		connection.WithUseCache(s.UseCache),
	}
	if s.CredentialEncoding != "" {
		opts = append(opts, connection.WithCredentialEncoding(s.CredentialEncoding))
	}
	if s.CAFile != "" || s.CertFile != "" || s.KeyFile != "" || s.InsecureSkipTLSVerify {
		cfg, err := tlsutil.NewTLSConfig(
			tlsutil.WithInsecureSkipVerify(s.InsecureSkipTLSVerify),
			tlsutil.WithCertKeyPairFiles(s.CertFile, s.KeyFile),
			tlsutil.WithCAFile(s.CAFile),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, connection.WithTLSClientConfig(cfg))
	}
	return opts, nil
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func envBoolOr(name string, def bool) bool {
	if name == "" {
		return def
	}
	envVal := envOr(name, strconv.FormatBool(def))
	ret, err := strconv.ParseBool(envVal)
	if err != nil {
		return def
	}
	return ret
}

func envIntOr(name string, def int) int {
	if name == "" {
		return def
	}
	envVal := envOr(name, strconv.Itoa(def))
	ret, err := strconv.Atoi(envVal)
	if err != nil {
		return def
	}
	return ret
}

func envDurationOr(name string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Plain numbers are seconds.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// EnvVars returns the effective settings keyed by environment variable.
func (s *EnvSettings) EnvVars() map[string]string {
	return map[string]string{
		"WAGON_DEBUG":                    fmt.Sprint(s.Debug),
		"WAGON_REPOSITORY_CONFIG":        s.RepositoryConfig,
		"WAGON_ENGINE":                   s.Engine,
		"WAGON_TIMEOUT":                  s.Timeout.String(),
		"WAGON_CONNECT_TIMEOUT":          s.ConnectTimeout.String(),
		"WAGON_READ_IDLE_TIMEOUT":        s.ReadIdleTimeout.String(),
		"WAGON_MAX_REDIRECTS":            strconv.Itoa(s.MaxRedirects),
		"WAGON_USE_CACHE":                fmt.Sprint(s.UseCache),
		"WAGON_CREDENTIAL_ENCODING":      s.CredentialEncoding,
		"WAGON_CA_FILE":                  s.CAFile,
		"WAGON_CERT_FILE":                s.CertFile,
		"WAGON_KEY_FILE":                 s.KeyFile,
		"WAGON_INSECURE_SKIP_TLS_VERIFY": fmt.Sprint(s.InsecureSkipTLSVerify),
		"WAGON_METRICS_TEXTFILE":         s.MetricsTextfile,
	}
}
