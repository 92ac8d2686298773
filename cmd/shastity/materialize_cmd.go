package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/fsutil/native"
	"github.com/scode/shastity/manifest"
	"github.com/scode/shastity/materialize"
	"github.com/scode/shastity/queue"
)

var materializeCmd = &cobra.Command{
	Use:   "materialize <src_uri> <dst_path>",
	Short: "restore a manifest's file tree into a destination directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runMaterialize,
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	srcURI, dstPath := args[0], args[1]
	ctx := context.Background()

	manifestURI, label, dataURI, err := splitComposite(srcURI)
	if err != nil {
		return err
	}

	manifestBackend, err := resolveBackend(ctx, manifestURI)
	if err != nil {
		return err
	}
	dataBackend, err := resolveBackend(ctx, dataURI)
	if err != nil {
		return err
	}

	fs := native.New()
	q := queue.New(func(context.Context) (backend.Backend, error) { return dataBackend, nil }, defaultConcurrency)

	m, err := materialize.New(fs, q, dstPath)
	if err != nil {
		return fmt.Errorf("materialize: %w", err)
	}

	entries, entriesErrc := manifest.Read(ctx, manifestBackend, label)

	if err := m.Run(ctx, entries, entriesErrc); err != nil {
		return fmt.Errorf("materializing %q into %s: %w", label, dstPath, err)
	}

	return nil
}
