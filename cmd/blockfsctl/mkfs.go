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
	"fmt"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/spf13/cobra"
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs",
	Short: "Create a zeroed device image of the configured size",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}

		dev, err := blockdev.OpenFileBackedDevice(c.ImagePath, blockdev.Sector(c.Sectors))
		if err != nil {
			return err
		}
		defer dev.Close()

		fmt.Printf("created %s: %d sectors (%d bytes)\n", c.ImagePath, c.Sectors, uint64(c.Sectors)*blockdev.SectorSize)
		return nil
	},
}
