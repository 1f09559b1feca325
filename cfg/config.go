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

// Package cfg defines blockfsctl's mount-time configuration and how it
// binds to command-line flags and an optional config file, the way
// gcsfuse's own cfg package wires pflag and viper together.
package cfg

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of knobs blockfsctl accepts, whether from flags
// or a config file. Environment variables are not read.
type Config struct {
	ImagePath string `mapstructure:"image-path"`

	Sectors uint32 `mapstructure:"sectors"`

	FlushInterval time.Duration `mapstructure:"flush-interval"`

	Debug DebugConfig `mapstructure:"debug"`
}

// DebugConfig groups flags useful when diagnosing the cache or index
// rather than normal operation.
type DebugConfig struct {
	LogLevel string `mapstructure:"log-level"`
}

// BindFlags registers blockfsctl's flags on flagSet and binds each one
// into viper under the matching config key, so flags and a config file
// resolve to the same Config.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String("image-path", "blockfs.img", "Path to the backing device image file.")
	if err := viper.BindPFlag("image-path", flagSet.Lookup("image-path")); err != nil {
		return err
	}

	flagSet.Uint32("sectors", 16384, "Number of 512-byte sectors in the device image.")
	if err := viper.BindPFlag("sectors", flagSet.Lookup("sectors")); err != nil {
		return err
	}

	flagSet.Duration("flush-interval", time.Second, "Write-behind flush period.")
	if err := viper.BindPFlag("flush-interval", flagSet.Lookup("flush-interval")); err != nil {
		return err
	}

	flagSet.String("debug.log-level", "info", "Log level: debug, info, warn or error.")
	if err := viper.BindPFlag("debug.log-level", flagSet.Lookup("debug.log-level")); err != nil {
		return err
	}

	return nil
}

// Unmarshal populates a Config from viper's current state, after flags
// have been parsed and BindFlags has run.
func Unmarshal() (Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
