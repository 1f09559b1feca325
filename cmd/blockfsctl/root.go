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

package main

import (
	"log/slog"
	"os"

	"github.com/oslab-fs/blockfs/blocklog"
	"github.com/oslab-fs/blockfs/cfg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	bindErr error
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "blockfsctl",
	Short: "Drive the indexed-inode file store from the command line",
	Long: `blockfsctl mounts a sector-addressable device image and runs a
single operation against it: format the image, create a file, write to it,
or read one back.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}

		level := slog.LevelInfo
		switch viper.GetString("debug.log-level") {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		blocklog.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml).")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(mkfsCmd, writeCmd, readCmd, statCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		_ = viper.ReadInConfig()
	}
}

func loadConfig() (cfg.Config, error) {
	return cfg.Unmarshal()
}
