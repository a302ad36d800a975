// Copyright 2026 The zffmount Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd is the mount driver: flag parsing, configuration resolution,
// and the fuse.Mount/unmount lifecycle around the dispatcher in internal/fs
// (SPEC_FULL.md "Mount driver"). It plays the same role gcsfuse's cmd
// package does for its own bucket mount, generalized to zffmount's segment
// files and per-object passwords instead of a bucket name and auth flags.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zff-team/zffmount/cfg"
)

var passwordFlags []string

// Execute runs the zffmount root command, returning any error for main to
// report and translate into a process exit code.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "zffmount <segment...> <mountpoint>",
		Short:         "Mount a Zff forensic container as a read-only FUSE filesystem",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runMount,
	}

	flags := root.Flags()
	if err := cfg.BindFlags(flags); err != nil {
		panic(fmt.Sprintf("cmd: binding flags: %v", err))
	}
	flags.StringArrayVar(&passwordFlags, "password", nil, "object-number=password for a specific encrypted object; repeatable.")

	return root
}

// resolveConfig turns parsed flags and positional arguments into a
// cfg.Config: the last argument is the mount point, everything before it is
// a segment file (SPEC_FULL.md "Mount driver").
func resolveConfig(args []string) (cfg.Config, error) {
	var resolved cfg.Config
	resolved.Segments = args[:len(args)-1]
	resolved.MountPoint = args[len(args)-1]

	resolved.Passwords = make(map[uint64]string)
	for _, raw := range passwordFlags {
		objectNumber, password, err := cfg.ParsePasswordFlag(raw)
		if err != nil {
			return cfg.Config{}, err
		}
		resolved.Passwords[objectNumber] = password
	}

	resolved.PasswordFile = viper.GetString("password-file")
	if resolved.PasswordFile != "" {
		fromFile, err := loadPasswordFile(resolved.PasswordFile)
		if err != nil {
			return cfg.Config{}, err
		}
		for objectNumber, password := range fromFile {
			if _, exists := resolved.Passwords[objectNumber]; !exists {
				resolved.Passwords[objectNumber] = password
			}
		}
	}

	resolved.Logging = cfg.LoggingConfig{
		Format:   viper.GetString("logging.format"),
		Severity: cfg.Severity(viper.GetString("logging.severity")),
		FilePath: viper.GetString("logging.file-path"),
	}
	resolved.ChunkMapPreload = cfg.ChunkMapPreload(viper.GetString("chunkmap-preload"))
	resolved.FuseOptions = viper.GetStringSlice("fuse-options")

	return resolved, nil
}

// loadPasswordFile reads and decodes a --password-file's "passwords:"
// section, the lower-priority source behind explicit --password flags.
func loadPasswordFile(path string) (map[uint64]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading password file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing password file: %w", err)
	}

	return cfg.DecodePasswordFile(raw)
}
