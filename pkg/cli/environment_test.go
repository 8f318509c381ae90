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

package cli

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/sonatype/wagon-ahc/pkg/connection"
	"github.com/sonatype/wagon-ahc/pkg/engine"
)

func TestEnvSettings(t *testing.T) {
	tests := []struct {
		name string

		// input
		args    string
		envvars map[string]string

		// expected values
		debug        bool
		engine       string
		timeout      time.Duration
		maxRedirects int
		useCache     bool
		repoConfig   string
		insecure     bool
	}{
		{
			name:         "defaults",
			engine:       engine.KindHTTP,
			maxRedirects: connection.DefaultMaxRedirects,
		},
		{
			name:         "with flags set",
			args:         "--debug --engine=fasthttp --timeout=30s --max-redirects=2 --use-cache --repository-config=/tmp/r.yaml --insecure-skip-tls-verify",
			debug:        true,
			engine:       engine.KindFastHTTP,
			timeout:      30 * time.Second,
			maxRedirects: 2,
			useCache:     true,
			repoConfig:   "/tmp/r.yaml",
			insecure:     true,
		},
		{
			name:         "with envvars set",
			envvars:      map[string]string{"WAGON_DEBUG": "1", "WAGON_ENGINE": "fasthttp", "WAGON_TIMEOUT": "45", "WAGON_MAX_REDIRECTS": "0", "WAGON_USE_CACHE": "true", "WAGON_REPOSITORY_CONFIG": "/etc/wagon.yaml", "WAGON_INSECURE_SKIP_TLS_VERIFY": "true"},
			debug:        true,
			engine:       engine.KindFastHTTP,
			timeout:      45 * time.Second,
			maxRedirects: 0,
			useCache:     true,
			repoConfig:   "/etc/wagon.yaml",
			insecure:     true,
		},
		{
			name:         "with flags and envvars set",
			args:         "--engine=http --timeout=1m --max-redirects=7",
			envvars:      map[string]string{"WAGON_DEBUG": "1", "WAGON_ENGINE": "fasthttp", "WAGON_TIMEOUT": "45s", "WAGON_MAX_REDIRECTS": "bogus"},
			debug:        true,
			engine:       engine.KindHTTP,
			timeout:      time.Minute,
			maxRedirects: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer resetEnv()()

			for k, v := range tt.envvars {
				os.Setenv(k, v)
			}

			flags := pflag.NewFlagSet("testing", pflag.ContinueOnError)

			settings := New()
			settings.AddFlags(flags)
			if tt.args != "" {
				if err := flags.Parse(strings.Split(tt.args, " ")); err != nil {
					t.Fatal(err)
				}
			}

			if settings.Debug != tt.debug {
				t.Errorf("expected debug %t, got %t", tt.debug, settings.Debug)
			}
			if settings.Engine != tt.engine {
				t.Errorf("expected engine %q, got %q", tt.engine, settings.Engine)
			}
			if settings.Timeout != tt.timeout {
				t.Errorf("expected timeout %s, got %s", tt.timeout, settings.Timeout)
			}
			if settings.MaxRedirects != tt.maxRedirects {
				t.Errorf("expected max redirects %d, got %d", tt.maxRedirects, settings.MaxRedirects)
			}
			if settings.UseCache != tt.useCache {
				t.Errorf("expected use cache %t, got %t", tt.useCache, settings.UseCache)
			}
			if tt.repoConfig != "" && settings.RepositoryConfig != tt.repoConfig {
				t.Errorf("expected repository config %q, got %q", tt.repoConfig, settings.RepositoryConfig)
			}
			if settings.InsecureSkipTLSVerify != tt.insecure {
				t.Errorf("expected insecure %t, got %t", tt.insecure, settings.InsecureSkipTLSVerify)
			}
		})
	}
}

func TestConnectionOptions(t *testing.T) {
	defer resetEnv()()

	settings := New()
	settings.MaxRedirects = 1
	settings.Timeout = 10 * time.Second
	settings.InsecureSkipTLSVerify = true

	opts, err := settings.ConnectionOptions()
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := connection.Configure("https://repo.example/releases", nil, connection.NoProxy, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if ctx.MaxRedirects() != 1 {
		t.Errorf("expected 1 redirect, got %d", ctx.MaxRedirects())
	}
	if ctx.Timeouts().Request != 10*time.Second {
		t.Errorf("expected a 10s request timeout, got %s", ctx.Timeouts().Request)
	}
	if ctx.TLSConfig() == nil || !ctx.TLSConfig().InsecureSkipVerify {
		t.Error("expected an insecure TLS config")
	}

	settings.CAFile = "/does/not/exist.pem"
	if _, err := settings.ConnectionOptions(); err == nil {
		t.Error("expected an error for a missing CA file")
	}
}

func TestCredentialEncoding(t *testing.T) {
	defer resetEnv()()

	os.Setenv("WAGON_CREDENTIAL_ENCODING", "ISO-8859-1")
	settings := New()
	opts, err := settings.ConnectionOptions()
	if err != nil {
		t.Fatal(err)
	}
	auth := &connection.AuthInfo{Username: "j\u00fcrgen", Password: "p\u00e4ss"}
	ctx, err := connection.Configure("https://repo.example/releases", auth, connection.NoProxy, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if got := ctx.Realm().Encoding; got != "ISO-8859-1" {
		t.Errorf("expected ISO-8859-1 credentials, got %q", got)
	}

	settings.CredentialEncoding = "klingon"
	if _, err := settings.ConnectionOptions(); err == nil {
		t.Error("expected an error for an unknown charset")
	}
}

func TestEnvOrBool(t *testing.T) {
	const envName = "TEST_ENV_OR_BOOL"
	tests := []struct {
		name     string
		env      string
		val      string
		def      bool
		expected bool
	}{
		{
			name:     "unset with default false",
			def:      false,
			expected: false,
		},
		{
			name:     "unset with default true",
			def:      true,
			expected: true,
		},
		{
			name:     "blank env with default true",
			env:      envName,
			def:      true,
			expected: true,
		},
		{
			name:     "env true with default false",
			env:      envName,
			val:      "true",
			def:      false,
			expected: true,
		},
		{
			name:     "env false with default true",
			env:      envName,
			val:      "false",
			def:      true,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv(tt.env, tt.val)
			}
			actual := envBoolOr(tt.env, tt.def)
			if actual != tt.expected {
				t.Errorf("expected result %t, got %t", tt.expected, actual)
			}
		})
	}
}

func TestEnvDurationOr(t *testing.T) {
	const envName = "TEST_ENV_DURATION_OR"
	t.Setenv(envName, "90s")
	if d := envDurationOr(envName, time.Second); d != 90*time.Second {
		t.Errorf("expected 90s, got %s", d)
	}
	t.Setenv(envName, "12")
	if d := envDurationOr(envName, time.Second); d != 12*time.Second {
		t.Errorf("expected 12s, got %s", d)
	}
	t.Setenv(envName, "soon")
	if d := envDurationOr(envName, time.Second); d != time.Second {
		t.Errorf("expected the default, got %s", d)
	}
}

func resetEnv() func() {
	origEnv := os.Environ()

	// ensure any local envvars do not hose us
	for e := range New().EnvVars() {
		os.Unsetenv(e)
	}

	return func() {
		for e := range New().EnvVars() {
			os.Unsetenv(e)
		}
		for _, pair := range origEnv {
			kv := strings.SplitN(pair, "=", 2)
			os.Setenv(kv[0], kv[1])
		}
	}
}
