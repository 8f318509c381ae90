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

// Package require holds positional argument validators for wagon commands.
// Their errors carry the command's usage line.
package require

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func usage(cmd *cobra.Command, format string, args ...interface{}) error {
	args = append([]interface{}{cmd.CommandPath()}, args...)
	args = append(args, cmd.UseLine())
	return errors.Errorf(format+"\n\nUsage:  %s", args...)
}

func plural(n int) string {
	if n == 1 {
		return "argument"
	}
	return "arguments"
}

// NoArgs returns an error if any args are included.
func NoArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usage(cmd, "%q accepts no arguments")
	}
	return nil
}

// ExactArgs returns an error if there are not exactly n args.
func ExactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usage(cmd, "%q requires %d %s", n, plural(n))
		}
		return nil
	}
}

// MaximumNArgs returns an error if there are more than N args.
func MaximumNArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usage(cmd, "%q accepts at most %d %s", n, plural(n))
		}
		return nil
	}
}

// MinimumNArgs returns an error if there is not at least N args.
func MinimumNArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usage(cmd, "%q requires at least %d %s", n, plural(n))
		}
		return nil
	}
}

// RangeArgs returns an error if the number of args is outside [min, max].
func RangeArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < min || len(args) > max {
			return usage(cmd, "%q accepts between %d and %d arguments", min, max)
		}
		return nil
	}
}
