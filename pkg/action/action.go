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

// Package action implements the operations behind the wagon commands.
package action

import (
	"os"

	"github.com/pkg/errors"

	"github.com/sonatype/wagon-ahc/internal/logging"
	"github.com/sonatype/wagon-ahc/pkg/cli"
	"github.com/sonatype/wagon-ahc/pkg/connection"
	"github.com/sonatype/wagon-ahc/pkg/repo"
	"github.com/sonatype/wagon-ahc/pkg/transfer"
	"github.com/sonatype/wagon-ahc/pkg/urlutil"
	"github.com/sonatype/wagon-ahc/pkg/wagon"
)

// Configuration injects the dependencies that all actions share.
type Configuration struct {
	// Settings describes the environment: repositories file, engine,
	// timeouts and TLS.
	Settings *cli.EnvSettings

	// Listeners receive the events of every session opened by an action.
	Listeners []transfer.Listener

	// WagonOptions are applied last to every session.
	WagonOptions []wagon.Option

	logging.LogHolder
}

// NewConfiguration returns a Configuration for settings. A nil settings
// reads the environment.
func NewConfiguration(settings *cli.EnvSettings) *Configuration {
	if settings == nil {
		settings = cli.New()
	}
	return &Configuration{Settings: settings}
}

// repositories loads the repositories file. A missing file is an empty one.
func (cfg *Configuration) repositories() (*repo.File, error) {
	f, err := repo.LoadFile(cfg.Settings.RepositoryConfig)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return repo.NewFile(), nil
		}
		return nil, err
	}
	return f, nil
}

// proxyChain asks each lookup in turn.
type proxyChain []connection.ProxyLookup

func (c proxyChain) ProxyFor(protocol, host string) *connection.ProxyInfo {
	for _, l := range c {
		if p := l.ProxyFor(protocol, host); p != nil {
			return p
		}
	}
	return nil
}

// Open starts a session with target, either a repository URL or the name of
// an entry in the repositories file. auth, when set, replaces the entry's
// credentials.
//
// Proxies come from the repositories file first and from the environment
// second.
func (cfg *Configuration) Open(target string, auth *connection.AuthInfo) (*wagon.Wagon, error) {
	f, err := cfg.repositories()
	if err != nil {
		return nil, err
	}

	connOpts, err := cfg.Settings.ConnectionOptions()
	if err != nil {
		return nil, err
	}

	repoURL := target
	if urlutil.Protocol(target) == "" {
		entry := f.Get(target)
		if entry == nil {
			return nil, errors.Errorf("no repository named %q, use a URL or add it with 'wagon repo add'", target)
		}
		entryOpts, err := entry.Options()
		if err != nil {
			return nil, err
		}
		connOpts = append(connOpts, entryOpts...)
		repoURL = entry.URL
		if auth == nil {
			auth = entry.AuthInfo()
		}
	}

	opts := []wagon.Option{
		wagon.WithEngineKind(cfg.Settings.Engine),
		wagon.WithConnectionOptions(connOpts...),
		wagon.WithLogger(cfg.Logger()),
	}
	for _, l := range cfg.Listeners {
		opts = append(opts, wagon.WithListener(l))
	}
	opts = append(opts, cfg.WagonOptions...)

	cfg.Logger().WithField("repository", repoURL).Debug("opening session")
	return wagon.Open(repoURL, auth, proxyChain{f, connection.NewEnvProxyLookup()}, opts...)
}
