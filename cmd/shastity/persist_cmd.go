package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/digest"
	"github.com/scode/shastity/fsutil/native"
	"github.com/scode/shastity/manifest"
	"github.com/scode/shastity/persist"
	"github.com/scode/shastity/queue"
	"github.com/scode/shastity/traversal"
)

var persistCmd = &cobra.Command{
	Use:   "persist <src_path> <dst_uri>",
	Short: "chunk and store a file tree, writing a manifest",
	Args:  cobra.ExactArgs(2),
	RunE:  runPersist,
}

func runPersist(cmd *cobra.Command, args []string) error {
	srcPath, dstURI := args[0], args[1]
	ctx := context.Background()

	manifestURI, label, dataURI, err := splitComposite(dstURI)
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

	traversed, traverseErrc := traversal.Traverse(fs, srcPath)

	p, err := persist.New(fs, q, persist.Options{
		BasePrefix: srcPath,
		BlockSize:  cfg.BlockSize,
		Hasher:     digest.NewHasher(),
		SkipSet:    persist.NewSkipSet(),
	})
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	entries, persistErrc := p.Run(ctx, traversed, traverseErrc)

	var buffered []manifest.Entry
	for e := range entries {
		buffered = append(buffered, e)
	}

	if err := <-persistErrc; err != nil {
		return fmt.Errorf("persisting %s: %w", srcPath, err)
	}

	// Barrier: the manifest must not be written until every block PUT
	// it references has completed, so a failure mid-upload leaves no
	// manifest behind rather than one pointing at missing blocks.
	if err := q.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for block uploads: %w", err)
	}

	manifestEntries := make(chan manifest.Entry, len(buffered))
	for _, e := range buffered {
		manifestEntries <- e
	}
	close(manifestEntries)

	if err := manifest.Write(ctx, manifestBackend, label, manifestEntries); err != nil {
		return fmt.Errorf("writing manifest %q: %w", label, err)
	}

	return nil
}
