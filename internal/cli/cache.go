package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ovalmerge/pkg/cache"
	"github.com/matzehuels/ovalmerge/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the merge result cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached merge results",
		Long: `Remove all cached merge results from the file or MongoDB cache.

Entries in a Redis cache expire on their own and are not touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch c.Config.Cache.Backend {
			case config.BackendRedis:
				printInfo("Redis cache entries expire on their own; nothing to clear")
				return nil
			case config.BackendMongo:
				return c.clearMongoCache(cmd.Context())
			}
			return c.clearFileCache()
		},
	}
}

func (c *CLI) clearFileCache() error {
	dir, err := c.cacheDir()
	if err != nil {
		return fmt.Errorf("get cache dir: %w", err)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		printInfo("Cache is empty")
		return nil
	}

	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return err
	}
	defer fc.Close()

	count, err := fc.(*cache.FileCache).Clear()
	if err != nil {
		return err
	}
	c.Logger.Debug("cleared cache", "dir", dir, "entries", count)
	printSuccess("Cleared %d cached entries", count)
	printDetail("Directory: %s", dir)
	return nil
}

func (c *CLI) clearMongoCache(ctx context.Context) error {
	cfg := c.Config.Cache
	mc, err := cache.NewMongoCache(ctx, cache.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
	})
	if err != nil {
		return err
	}
	defer mc.Close()

	count, err := mc.(*cache.MongoCache).Clear(ctx)
	if err != nil {
		return err
	}
	c.Logger.Debug("cleared cache", "collection", cfg.MongoCollection, "entries", count)
	printSuccess("Cleared %d cached entries", count)
	printDetail("Collection: %s.%s", cfg.MongoDatabase, cfg.MongoCollection)
	return nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(c.out, dir)
			return nil
		},
	}
}
