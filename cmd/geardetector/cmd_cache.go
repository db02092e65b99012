package main

import (
	"fmt"

	"github.com/spf13/cobra"

	rediscache "github.com/gear-detector/backend/internal/cache/redis"
	"github.com/gear-detector/backend/internal/storage/sqlite"
	appLogger "github.com/gear-detector/backend/pkg/logger"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the result cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired results from the SQLite cache",
	RunE:  runCachePurge,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached result from Redis",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCachePurge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.InitSchema(); err != nil {
		return err
	}

	n, err := db.Purge(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired results\n", n)
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	r := cfg.Redis
	client, err := rediscache.NewClient(r.Host, r.Port, r.Password, r.DB)
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := client.Invalidate(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results\n", n)
	return nil
}
