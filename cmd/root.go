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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var bindErr error

var rootCmd = &cobra.Command{
	Use:   "vffs",
	Short: "Mount an in-memory, POSIX-like filesystem over FUSE",
	Long: `VFFS mounts an in-memory userspace filesystem at the given mount
point. All state is volatile: it exists only for the lifetime of the mount
and is constrained by a required total memory budget and a per-file size
cap.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}

		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshaling config: %w", err)
		}

		if err := validateConfig(&cfg); err != nil {
			return err
		}

		return mount(cmd.Context(), &cfg)
	},
}

func validateConfig(cfg *Config) error {
	if cfg.MemoryLimitMB <= 0 {
		return fmt.Errorf("--memory-limit/-m is required and must be positive")
	}
	if cfg.MaxFileSizeMB <= 0 {
		return fmt.Errorf("--max-file-size/-s must be positive")
	}
	if cfg.MountPoint == "" {
		return fmt.Errorf("--mount-point must not be empty")
	}
	return nil
}

// Execute is the CLI entry point, invoked from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	bindErr = BindFlags(rootCmd.Flags())
}
