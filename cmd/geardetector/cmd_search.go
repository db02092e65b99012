package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/query"
	appLogger "github.com/gear-detector/backend/pkg/logger"
)

var searchFlags struct {
	artist   string
	song     string
	year     int
	json     bool
	progress bool
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one gear search and print the result",
	Example: `  geardetector search --artist "John Mayer" --song Gravity --year 2006
  geardetector search --artist Nirvana --song Lithium --json`,
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchFlags.artist, "artist", "", "Artist name (required)")
	f.StringVar(&searchFlags.song, "song", "", "Song title (required)")
	f.IntVar(&searchFlags.year, "year", 0, "Recording year")
	f.BoolVar(&searchFlags.json, "json", false, "Print the full response as JSON")
	f.BoolVar(&searchFlags.progress, "progress", false, "Print pipeline stages as they happen")

	_ = searchCmd.MarkFlagRequired("artist")
	_ = searchCmd.MarkFlagRequired("song")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	q := gear.Query{Artist: searchFlags.artist, Song: searchFlags.song}
	if cmd.Flags().Changed("year") {
		q.Year = gear.IntPtr(searchFlags.year)
	}

	out := cmd.OutOrStdout()
	var progress query.Progress
	if searchFlags.progress {
		progress = func(ev query.Event) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%5dms] %-11s %s\n", ev.ElapsedMS, ev.Stage, ev.Message)
		}
	}

	resp, err := c.engine.Search(cmd.Context(), q, progress)
	if err != nil {
		return err
	}

	if searchFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResult(out, resp)
	return nil
}

func printResult(w io.Writer, resp *query.Response) {
	r := resp.Result
	cached := ""
	if resp.Cached {
		cached = " (cached)"
	}
	fmt.Fprintf(w, "%s%s\n", resp.Query, cached)
	fmt.Fprintf(w, "Confidence: %d/100  Sources: %d of %d succeeded\n\n", r.ConfidenceScore, r.SourcesSucceeded, r.SourcesConsulted)

	sections := []struct {
		title string
		items []gear.GearItem
	}{
		{"Guitars", r.Guitars},
		{"Amps", r.Amps},
		{"Pedals", r.Pedals},
		{"Other", r.Other},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", s.title)
		for _, it := range s.items {
			fmt.Fprintf(w, "  %-36s %3d  %-9s %s\n", it.Name(), it.Confidence, it.Tier, joinSources(it.Sources))
		}
	}

	chain := make([]string, len(r.SignalChain))
	for i, e := range r.SignalChain {
		chain[i] = e.Item
	}
	fmt.Fprintf(w, "\nSignal chain: %s\n", strings.Join(chain, " -> "))

	a := r.AmpSettings
	fmt.Fprintf(w, "Amp settings: gain %d, bass %d, middle %d, treble %d, presence %d, reverb %d (%s)\n",
		a.Gain, a.Bass, a.Middle, a.Treble, a.Presence, a.Reverb, a.Origin)

	if len(r.Conflicts) > 0 {
		fmt.Fprintln(w, "\nConflicts:")
		for _, cf := range r.Conflicts {
			fmt.Fprintf(w, "  %s: %s\n", cf.Gear, cf.Resolution)
		}
	}
	fmt.Fprintf(w, "\n%s\n", r.Context)
}

func joinSources(ids []gear.SourceID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}
