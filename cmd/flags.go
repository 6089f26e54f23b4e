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
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved set of knobs the CLI surface (§6) exposes.
// pflag binds the flags, viper resolves each flag to its set or default value,
// and Execute hands the result to fs.ServerConfig and logger.Config.
type Config struct {
	MountPoint    string `mapstructure:"mount-point"`
	MemoryLimitMB int64  `mapstructure:"memory-limit"`
	MaxFileSizeMB int64  `mapstructure:"max-file-size"`
	Verbosity     int    `mapstructure:"verbose"`
	LogFormat     string `mapstructure:"log-format"`
	LogFile       string `mapstructure:"log-file"`
}

const (
	defaultMountPoint    = "/tmp/vffs"
	defaultMaxFileSizeMB = 1
)

// BindFlags registers VFFS's CLI surface on fs and binds each flag into
// viper, mirroring the teacher's cfg.BindFlags/pflag+viper wiring.
func BindFlags(fs *pflag.FlagSet) error {
	fs.String("mount-point", defaultMountPoint, "Filesystem mount location.")
	fs.Int64P("memory-limit", "m", 0, "Total in-memory capacity in MB (required).")
	fs.Int64P("max-file-size", "s", defaultMaxFileSizeMB, "Per-file size cap in MB.")
	fs.CountP("verbose", "v", "Increase log verbosity (repeatable).")
	fs.String("log-format", "text", "Log output format: text or json.")
	fs.String("log-file", "", "Log file path; empty means stderr.")

	for _, name := range []string{"mount-point", "memory-limit", "max-file-size", "verbose", "log-format", "log-file"} {
		if err := viper.BindPFlag(name, fs.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}
