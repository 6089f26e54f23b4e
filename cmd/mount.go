// Copyright 2025 Google LLC
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
	"context"
	"fmt"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vffs/vffs/clock"
	"github.com/vffs/vffs/fs"
	"github.com/vffs/vffs/internal/logger"
	"github.com/vffs/vffs/internal/metrics"
	"github.com/vffs/vffs/internal/perms"
)

const mib = 1024 * 1024

// mount builds a VFFS server from cfg, mounts it, and blocks until it is
// unmounted, matching the teacher's mountWithStorageHandle/fuse.Mount
// pattern in shape if not in the bucket/lease machinery it no longer needs.
func mount(ctx context.Context, cfg *Config) error {
	log := logger.New(logger.Config{
		Severity: logger.FromVerbosity(cfg.Verbosity),
		Format:   cfg.LogFormat,
		FilePath: cfg.LogFile,
	})

	uid, gid, err := perms.MyUserAndGroup()
	if err != nil {
		return fmt.Errorf("MyUserAndGroup: %w", err)
	}
	if uid == 0 {
		fmt.Fprintln(os.Stdout, `
WARNING: vffs invoked as root. This will cause all files to be owned by
root. If this is not what you intended, invoke vffs as the user that will
be interacting with the file system.`)
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)
	recorder.SetLimits(uint64(cfg.MemoryLimitMB)*mib, uint64(cfg.MaxFileSizeMB)*mib)

	serverCfg := &fs.ServerConfig{
		MaxMemory:   uint64(cfg.MemoryLimitMB) * mib,
		MaxFileSize: uint64(cfg.MaxFileSizeMB) * mib,
		Clock:       clock.RealClock{},
		Uid:         uid,
		Gid:         gid,
		Metrics:     recorder,
	}

	log.Infof("Creating a new server...")
	server, err := fs.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("fs.NewServer: %w", err)
	}

	log.Infof("Mounting file system at %q...", cfg.MountPoint)
	mountCfg := fuseMountConfig(cfg, log)
	mfs, err := fuse.Mount(cfg.MountPoint, server, mountCfg)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	if err := mfs.Join(ctx); err != nil {
		return fmt.Errorf("MountedFileSystem.Join: %w", err)
	}

	return nil
}

func fuseMountConfig(cfg *Config, log *logger.Logger) *fuse.MountConfig {
	mountCfg := &fuse.MountConfig{
		FSName:     "vffs",
		Subtype:    "vffs",
		VolumeName: "vffs",
	}

	// VFFS to jacobsa/fuse log level mapping, the same scheme the teacher's
	// cmd/mount.go uses for its own severity-ranked loggers.
	if cfg.Verbosity >= 0 {
		mountCfg.ErrorLogger = log.NewLegacyLogger(logger.LevelError, "fuse: ")
	}
	if logger.FromVerbosity(cfg.Verbosity) == logger.LevelTrace {
		mountCfg.DebugLogger = log.NewLegacyLogger(logger.LevelTrace, "fuse_debug: ")
	}

	return mountCfg
}
