package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dreary/internal/ledger"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the local blob cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many uploads the cache remembers for the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlobCache(cmd, ctx, func(store *ledger.Store, did string) error {
				n, err := store.BlobCount(cmd.Context(), did)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Account: %s\n", did)
				fmt.Fprintf(out, "Cached blobs: %d\n", n)
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget cached uploads so the next import uploads every file again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlobCache(cmd, ctx, func(store *ledger.Store, did string) error {
				n, err := store.ForgetBlobs(cmd.Context(), did)
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cached blobs to forget")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %d cached blobs\n", n)
				return nil
			})
		},
	}
}

// withBlobCache resolves the configured account and opens the ledger. The
// cache is read even when disabled so stale entries can still be cleared.
func withBlobCache(cmd *cobra.Command, ctx *commandContext, fn func(*ledger.Store, string) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	if !cfg.BlobCache.Enabled {
		fmt.Fprintln(cmd.OutOrStdout(), "Blob cache is disabled (set blob_cache.enabled = true in config.toml)")
	}
	did, err := resolveDID(cmd.Context(), cfg, logger, cfg.Account.Handle)
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store, did)
}
