package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/digest"
	"github.com/scode/shastity/manifest"
)

var listManifestCmd = &cobra.Command{
	Use:   "list-manifest <uri>",
	Short: "list the manifest names stored at a backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runListManifest,
}

func runListManifest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	b, err := resolveBackend(ctx, args[0])
	if err != nil {
		return err
	}

	names, err := manifest.List(ctx, b)
	if err != nil {
		return fmt.Errorf("listing manifests at %q: %w", args[0], err)
	}

	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

var commonBlocksCmd = &cobra.Command{
	Use:   "common-blocks <uri> <mf...>",
	Short: "print the block digests shared by every given manifest",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCommonBlocks,
}

func runCommonBlocks(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	b, err := resolveBackend(ctx, args[0])
	if err != nil {
		return err
	}

	var sets []map[digest.BlockDigest]struct{}
	for _, name := range args[1:] {
		set, err := digestsOf(ctx, b, name)
		if err != nil {
			return fmt.Errorf("reading manifest %q: %w", name, err)
		}
		sets = append(sets, set)
	}

	common := sets[0]
	for _, set := range sets[1:] {
		for d := range common {
			if _, ok := set[d]; !ok {
				delete(common, d)
			}
		}
	}

	for d := range common {
		fmt.Fprintln(cmd.OutOrStdout(), d.String())
	}
	return nil
}

func digestsOf(ctx context.Context, b backend.Backend, name string) (map[digest.BlockDigest]struct{}, error) {
	entries, errc := manifest.Read(ctx, b, name)
	set := make(map[digest.BlockDigest]struct{})
	for entry := range entries {
		for _, d := range entry.Digests {
			set[d] = struct{}{}
		}
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	return set, nil
}

var getBlockCmd = &cobra.Command{
	Use:   "get-block <uri> <block> [<local>]",
	Short: "fetch a single block by digest, writing it to stdout or a local file",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runGetBlock,
}

func runGetBlock(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	b, err := resolveBackend(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := b.Get(ctx, args[1])
	if err != nil {
		return fmt.Errorf("fetching block %q: %w", args[1], err)
	}

	if len(args) == 3 {
		if err := os.WriteFile(args[2], data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", args[2], err)
		}
		return nil
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
