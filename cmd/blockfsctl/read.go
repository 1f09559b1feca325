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
	"os"
	"strconv"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/oslab-fs/blockfs/filestore"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <sector>",
	Short: "Read the full contents of the file at the given inode sector to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}

		sectorNum, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("blockfsctl: invalid sector %q: %w", args[0], err)
		}
		sector := blockdev.Sector(sectorNum)

		dev, err := blockdev.OpenFileBackedDevice(c.ImagePath, blockdev.Sector(c.Sectors))
		if err != nil {
			return err
		}
		defer dev.Close()

		store, err := filestore.Mount(filestore.Config{Device: dev, TotalSectors: blockdev.Sector(c.Sectors), FlushInterval: c.FlushInterval})
		if err != nil {
			return err
		}
		defer store.Unmount()

		h, err := store.Open(sector)
		if err != nil {
			return err
		}
		defer h.Close()

		length, err := h.Length()
		if err != nil {
			return err
		}

		buf := make([]byte, length)
		if _, err := h.ReadAt(buf, 0); err != nil {
			return err
		}
		_, err = os.Stdout.Write(buf)
		return err
	},
}
