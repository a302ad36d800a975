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

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/timeutil"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"
	"golang.org/x/sys/unix"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zff-team/zffmount/cfg"
	"github.com/zff-team/zffmount/internal/fs"
	"github.com/zff-team/zffmount/internal/logger"
	"github.com/zff-team/zffmount/internal/metrics"
	"github.com/zff-team/zffmount/internal/zffio"
)

// filesystemName is both FSName and Subtype of the fuse mount, matching
// original_source/src/lib/constants.rs's FILESYSTEM_NAME.
const filesystemName = "zff-fs"

func runMount(_ *cobra.Command, args []string) error {
	resolved, err := resolveConfig(args)
	if err != nil {
		return err
	}

	if err := logger.Init(resolved.Logging, lumberjack.Logger{MaxSize: 100, MaxBackups: 3}); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	sessionID := uuid.NewString()
	logger.Infof("zffmount: starting session %s over %d segment(s)", sessionID, len(resolved.Segments))
	logOpenFileLimit()

	reader, err := zffio.Open(resolved.Segments)
	if err != nil {
		return fmt.Errorf("opening container: %w", err)
	}

	if err := applyPreloadMode(reader, resolved.ChunkMapPreload); err != nil {
		return fmt.Errorf("chunk map preload: %w", err)
	}

	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())

	maps, counts, err := fs.BuildProjection(reader, resolved.Passwords, promptPassword, uid, gid)
	if err != nil {
		return fmt.Errorf("building projection: %w", err)
	}
	metrics.ObjectsMounted.WithLabelValues("physical").Set(float64(counts.Physical))
	metrics.ObjectsMounted.WithLabelValues("logical").Set(float64(counts.Logical))
	metrics.ObjectsMounted.WithLabelValues("encrypted").Set(float64(counts.Encrypted))

	server, err := fs.NewServer(&fs.ServerConfig{
		Reader: reader,
		Maps:   maps,
		Clock:  timeutil.RealClock(),
		Uid:    uid,
		Gid:    gid,
	})
	if err != nil {
		return fmt.Errorf("fs.NewServer: %w", err)
	}

	mountCfg := &fuse.MountConfig{
		FSName:  filesystemName,
		Subtype: filesystemName,
		Options: parseFuseOptions(resolved.FuseOptions),
	}

	logger.Infof("zffmount: mounting %q at %q", filesystemName, resolved.MountPoint)
	mfs, err := fuse.Mount(resolved.MountPoint, server, mountCfg)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	registerUnmountSignalHandler(resolved.MountPoint)

	if err := mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("MountedFileSystem.Join: %w", err)
	}

	return nil
}

// applyPreloadMode forwards the configured chunk-map preload knob to the
// reader facade before the projection builder's first call (SPEC_FULL.md
// "Chunk-index preload mode passthrough"); zffmount does not interpret the
// value beyond selecting which facade call to make.
func applyPreloadMode(reader zffio.Reader, mode cfg.ChunkMapPreload) error {
	switch mode {
	case cfg.ChunkMapPreloadNone, "":
		return nil
	case cfg.ChunkMapPreloadInMemory:
		if err := reader.SetPreloadChunkMapsModeInMemory(); err != nil {
			return err
		}
	case cfg.ChunkMapPreloadRedb:
		if err := reader.SetPreloadChunkMapsModeRedb(""); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown chunk map preload mode %q", mode)
	}

	if err := reader.PreloadChunkHeaderMapFull(); err != nil {
		return err
	}
	if err := reader.PreloadChunkSameBytesMapFull(); err != nil {
		return err
	}
	return reader.PreloadChunkDeduplicationMapFull()
}

// promptPassword implements the interactive fallback of
// original_source/src/fs/mod.rs's enter_password_dialog: a single bare
// stdin line read, no echo suppression. The example pack carries no
// terminal-echo library, and the spec only calls for "an interactive
// prompt" (§4.2 step 2), not hidden input.
func promptPassword(objectNumber uint64) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for object %d: ", objectNumber)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", scanner.Err()
	}
	return strings.TrimRight(scanner.Text(), "\r\n"), nil
}

// parseFuseOptions turns repeated "-o key=value" / "-o key" strings into
// the map fuse.MountConfig.Options expects.
func parseFuseOptions(raw []string) map[string]string {
	out := make(map[string]string, len(raw))
	for _, o := range raw {
		if idx := strings.IndexByte(o, '='); idx >= 0 {
			out[o[:idx]] = o[idx+1:]
		} else {
			out[o] = ""
		}
	}
	return out
}

// logOpenFileLimit logs the process's open-file descriptor limit, the same
// signal gcsfuse's fs.ChooseTempDirLimitNumFiles reads to size its temp
// directory cache; zffmount has no temp-file cache, so it just surfaces the
// number for diagnostics instead of sizing anything off it.
func logOpenFileLimit() {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		logger.Debugf("zffmount: could not query RLIMIT_NOFILE: %v", err)
		return
	}
	logger.Debugf("zffmount: RLIMIT_NOFILE cur=%d max=%d", rlimit.Cur, rlimit.Max)
}

// registerUnmountSignalHandler calls fuse.Unmount once on the first
// SIGINT/SIGTERM, letting mfs.Join return and the mount driver exit
// cleanly (SPEC_FULL.md "Mount driver").
func registerUnmountSignalHandler(mountPoint string) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for range signalChan {
			logger.Infof("zffmount: received signal, attempting to unmount %q...", mountPoint)
			if err := fuse.Unmount(mountPoint); err != nil {
				logger.Errorf("zffmount: failed to unmount %q: %v", mountPoint, err)
				continue
			}
			logger.Infof("zffmount: successfully unmounted %q", mountPoint)
			return
		}
	}()
}
