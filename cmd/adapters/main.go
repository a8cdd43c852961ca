// Copyright 2025 The adapter-transformers Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Command adapters inspects saved adapter and prediction head artifacts.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/formiel/adapter-transformers/internal/adapters"
	"github.com/formiel/adapter-transformers/internal/serialization"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "adapters",
		Short:         "Inspect saved adapter and prediction head artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(inspectCmd(), hashCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func inspectCmd() *cobra.Command {
	var skipChecksum bool

	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Print the configs and tensor listing of a saved artifact",
		Long: `Inspect a saved artifact directory or a single weights archive.

For a directory, every known config sidecar and weights archive inside it
is printed. For a file, the archive header and tensor listing are printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return inspectArchive(cmd, path, skipChecksum)
			}
			return inspectDirectory(cmd, path, skipChecksum)
		},
	}
	cmd.Flags().BoolVar(&skipChecksum, "skip-checksum", false, "skip archive checksum validation")
	return cmd
}

func inspectDirectory(cmd *cobra.Command, dir string, skipChecksum bool) error {
	found := false

	for _, name := range []string{adapters.ConfigName, adapters.HeadConfigName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		found = true
		cmd.Printf("%s:\n", name)
		if err := printConfig(cmd, path); err != nil {
			return err
		}
	}

	for _, name := range []string{adapters.WeightsName, adapters.HeadWeightsName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		found = true
		cmd.Printf("%s:\n", name)
		if err := inspectArchive(cmd, path, skipChecksum); err != nil {
			return err
		}
	}

	if !found {
		return fmt.Errorf("no adapter or head artifacts in %s", dir)
	}
	return nil
}

func printConfig(cmd *cobra.Command, path string) error {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var config adapters.Config
	if err := json.Unmarshal(encoded, &config); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	pretty, err := json.MarshalIndent(config, "  ", "  ")
	if err != nil {
		return err
	}
	cmd.Printf("  %s\n", pretty)
	return nil
}

func inspectArchive(cmd *cobra.Command, path string, skipChecksum bool) error {
	reader, err := serialization.NewReaderWithOptions(path, serialization.ReaderOptions{
		SkipChecksumValidation: skipChecksum,
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	header := reader.Header()
	cmd.Printf("  format version: %d\n", header.FormatVersion)
	cmd.Printf("  library version: %s\n", header.LibraryVersion)
	cmd.Printf("  created at: %s\n", header.CreatedAt)
	for k, v := range header.Metadata {
		cmd.Printf("  metadata %s: %s\n", k, v)
	}
	cmd.Printf("  tensors: %d\n", len(header.Tensors))
	for _, meta := range header.Tensors {
		cmd.Printf("    %-60s %-8s %v (%d bytes)\n", meta.Name, meta.DType, meta.Shape, meta.Size)
	}
	return nil
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <config.json>",
		Short: "Print the deterministic config ID of a saved adapter config",
		Long: `Hash the adapter configuration stored in a config sidecar.

When the file is a full sidecar record its inner "config" object is
hashed; a bare configuration object is hashed as-is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var config adapters.Config
			if err := json.Unmarshal(encoded, &config); err != nil {
				return fmt.Errorf("failed to parse config %s: %w", args[0], err)
			}
			if inner := config.Sub("config"); inner != nil {
				config = inner
			}
			id, err := adapters.ConfigID(config)
			if err != nil {
				return err
			}
			cmd.Println(id)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the adapters tool version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("adapters", version)
		},
	}
}
