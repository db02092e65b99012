package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gear-detector/backend/internal/storage/sqlite"
	appLogger "github.com/gear-detector/backend/pkg/logger"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent searches",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of searches to show")
}

func runHistory(cmd *cobra.Command, _ []string) error {
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

	records, err := db.GetSearchHistory(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tARTIST\tSONG\tYEAR\tSCORE\tCACHED\tSOURCES\tLATENCY")
	for _, r := range records {
		year := "-"
		if r.Year != nil {
			year = fmt.Sprint(*r.Year)
		}
		sources := "-"
		if !r.CacheHit {
			sources = fmt.Sprintf("%d/%d", r.SourcesSucceeded, r.SourcesConsulted)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%v\t%s\t%dms\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Artist, r.Song, year, r.ConfidenceScore, r.CacheHit, sources, r.LatencyMS)
	}
	return tw.Flush()
}
