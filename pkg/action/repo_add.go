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

package action

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/sonatype/wagon-ahc/pkg/repo"
)

// RepoAddOptions adds or updates an entry of the repositories file.
type RepoAddOptions struct {
	Name                 string
	URL                  string
	Username             string
	Password             string
	PasswordFromStdinOpt bool
	PassCredentialsAll   bool
	ChallengeAuth        bool
	CredentialEncoding   string
	ForceUpdate          bool
	// MaxRedirects is stored when not negative.
	MaxRedirects int
	Headers      map[string]string

	CertFile              string
	KeyFile               string
	CaFile                string
	InsecureSkipTLSverify bool
	TLSServerName         string

	RepoFile string

	// In supplies the password with PasswordFromStdinOpt. Defaults to
	// os.Stdin.
	In io.Reader
}

// withRepoFileLock runs fn while holding the lock next to repoFile.
func withRepoFileLock(repoFile string, fn func() error) error {
	// The directory must exist for the lock file.
	err := os.MkdirAll(filepath.Dir(repoFile), os.ModePerm)
	if err != nil && !os.IsExist(err) {
		return err
	}

	fileLock := flock.New(repo.LockPath(repoFile))
	lockCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	locked, err := fileLock.TryLockContext(lockCtx, time.Second)
	if err == nil && locked {
		defer fileLock.Unlock()
	}
	if err != nil {
		return err
	}
	return fn()
}

func loadOrCreate(repoFile string) (*repo.File, error) {
	f, err := repo.LoadFile(repoFile)
	if err != nil && os.IsNotExist(errors.Cause(err)) {
		return repo.NewFile(), nil
	}
	return f, err
}

func (o *RepoAddOptions) Run(out io.Writer) error {
	return withRepoFileLock(o.RepoFile, func() error { return o.run(out) })
}

func (o *RepoAddOptions) run(out io.Writer) error {
	f, err := loadOrCreate(o.RepoFile)
	if err != nil {
		return err
	}

	if o.Username != "" && o.Password == "" {
		if err := o.readPassword(out); err != nil {
			return err
		}
	}

	c := &repo.Entry{
		Name:                  o.Name,
		URL:                   o.URL,
		Username:              o.Username,
		Password:              o.Password,
		PassCredentialsAll:    o.PassCredentialsAll,
		ChallengeAuth:         o.ChallengeAuth,
		CredentialEncoding:    o.CredentialEncoding,
		Headers:               o.Headers,
		CertFile:              o.CertFile,
		KeyFile:               o.KeyFile,
		CAFile:                o.CaFile,
		InsecureSkipTLSverify: o.InsecureSkipTLSverify,
		TLSServerName:         o.TLSServerName,
	}
	if o.MaxRedirects >= 0 {
		n := o.MaxRedirects
		c.MaxRedirects = &n
	}
	if err := c.Validate(); err != nil {
		return err
	}
	// Catches unreadable TLS files now rather than on first use.
	if _, err := c.Options(); err != nil {
		return err
	}

	// If the repo exists do one of two things:
	// 1. If the configuration for the name is the same continue without error
	// 2. When the config is different require --force-update
	if !o.ForceUpdate && f.Has(o.Name) {
		if !c.Equal(f.Get(o.Name)) {
			return errors.Errorf("repository name (%s) already exists, please specify a different name", o.Name)
		}
		fmt.Fprintf(out, "%q already exists with the same configuration, skipping\n", o.Name)
		return nil
	}

	f.Update(c)

	if err := f.WriteFile(o.RepoFile, 0600); err != nil {
		return err
	}
	fmt.Fprintf(out, "%q has been added to your repositories\n", o.Name)
	return nil
}

func (o *RepoAddOptions) readPassword(out io.Writer) error {
	if o.PasswordFromStdinOpt {
		in := o.In
		if in == nil {
			in = os.Stdin
		}
		passwordFromStdin, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		password := strings.TrimSuffix(string(passwordFromStdin), "\n")
		password = strings.TrimSuffix(password, "\r")
		o.Password = password
		return nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("password required: use --password, --password-stdin or a terminal")
	}
	fmt.Fprint(out, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	o.Password = string(password)
	return nil
}
