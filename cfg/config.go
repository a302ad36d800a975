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

// Package cfg describes zffmount's mount-time configuration: the segment
// files to open, per-object decryption passwords, logging, and the knobs
// that are passed straight through to the reader facade without the
// dispatcher ever inspecting them.
package cfg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Severity is a logging verbosity level, ordered from quietest to loudest.
type Severity string

const (
	SeverityOff     Severity = "off"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityDebug   Severity = "debug"
	SeverityTrace   Severity = "trace"
)

// Rank orders severities so callers can compare "at least as loud as".
func (s Severity) Rank() int {
	switch s {
	case SeverityTrace:
		return 5
	case SeverityDebug:
		return 4
	case SeverityInfo:
		return 3
	case SeverityWarning:
		return 2
	case SeverityError:
		return 1
	default:
		return 0
	}
}

// ChunkMapPreload selects how the reader facade should preload its chunk
// index. zffmount does not interpret this value; it is forwarded verbatim
// to the reader facade before the projection builder's first call.
type ChunkMapPreload string

const (
	ChunkMapPreloadNone     ChunkMapPreload = "none"
	ChunkMapPreloadInMemory ChunkMapPreload = "in-memory"
	ChunkMapPreloadRedb     ChunkMapPreload = "redb"
)

// LoggingConfig controls the format, verbosity, and destination of the
// internal/logger output.
type LoggingConfig struct {
	Format   string   `yaml:"format" mapstructure:"format"`
	Severity Severity `yaml:"severity" mapstructure:"severity"`
	FilePath string   `yaml:"file-path" mapstructure:"file-path"`
}

// Config is the fully resolved mount-time configuration.
type Config struct {
	// Segment files making up the container, in any order; the reader
	// facade is responsible for ordering them (§8 property P5).
	Segments []string

	// MountPoint is the directory the overlay filesystem is bound to.
	MountPoint string

	// Passwords maps object number to a decryption password. Objects absent
	// from this map that turn out to be encrypted fall back to an
	// interactive prompt (§4.2 step 2).
	Passwords map[uint64]string

	// PasswordFile, if set, is a YAML file of the form
	// `passwords: {"5": "hunter2"}` merged into Passwords at load time.
	PasswordFile string

	Logging LoggingConfig

	ChunkMapPreload ChunkMapPreload

	// FuseOptions holds raw "-o key=value" style mount options forwarded to
	// the kernel mount, e.g. allow_other.
	FuseOptions []string
}

// ParsePasswordFlag parses one repeated --password flag value of the form
// "<object-number>=<password>" into its constituent parts.
func ParsePasswordFlag(raw string) (objectNumber uint64, password string, err error) {
	idx := strings.IndexByte(raw, '=')
	if idx < 0 {
		return 0, "", fmt.Errorf("malformed --password value %q: want object-number=password", raw)
	}

	objectNumber, err = strconv.ParseUint(raw[:idx], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed --password value %q: %w", raw, err)
	}

	return objectNumber, raw[idx+1:], nil
}

// DecodePasswordFile decodes the "passwords" section of a config file
// already unmarshaled into a generic map (as produced by yaml.Unmarshal) into
// a map[uint64]string, tolerating both string and int keys.
func DecodePasswordFile(raw map[string]interface{}) (map[uint64]string, error) {
	untyped, ok := raw["passwords"]
	if !ok {
		return nil, nil
	}

	var stringKeyed map[string]string
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &stringKeyed,
	})
	if err != nil {
		return nil, fmt.Errorf("decoding passwords section: %w", err)
	}
	if err := decoder.Decode(untyped); err != nil {
		return nil, fmt.Errorf("decoding passwords section: %w", err)
	}

	out := make(map[uint64]string, len(stringKeyed))
	for k, v := range stringKeyed {
		n, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("password file object key %q is not a valid object number: %w", k, err)
		}
		out[n] = v
	}

	return out, nil
}

// BindFlags registers zffmount's command-line flags and binds them into
// viper, mirroring the generated cfg.BindFlags of the teacher project.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.StringP("password-file", "", "", "YAML file containing a passwords: {object-number: password} map.")
	if err := viper.BindPFlag("password-file", flagSet.Lookup("password-file")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log output format: text or json.")
	if err := viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(SeverityInfo), "Log severity: off, error, warning, info, debug, trace.")
	if err := viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file; empty logs to stderr.")
	if err := viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.StringP("chunkmap-preload", "", string(ChunkMapPreloadNone), "Chunk-index preload mode passed through to the reader: none, in-memory, or redb.")
	if err := viper.BindPFlag("chunkmap-preload", flagSet.Lookup("chunkmap-preload")); err != nil {
		return err
	}

	flagSet.StringSliceP("option", "o", nil, "Raw FUSE mount option (may be repeated), e.g. -o allow_other.")
	if err := viper.BindPFlag("fuse-options", flagSet.Lookup("option")); err != nil {
		return err
	}

	return nil
}
