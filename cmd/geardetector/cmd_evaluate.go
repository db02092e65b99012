package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gear-detector/backend/internal/evaluation"
	appLogger "github.com/gear-detector/backend/pkg/logger"
)

var evaluateDataset string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the pipeline against a labeled gear dataset",
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateDataset, "dataset", "./config/eval.yaml", "YAML or JSON dataset of recordings with known gear")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	ds, err := evaluation.LoadDataset(evaluateDataset)
	if err != nil {
		return err
	}

	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	report := evaluation.NewEvaluator(c.engine).RunDatasetEvaluation(cmd.Context(), ds)
	fmt.Fprint(cmd.OutOrStdout(), evaluation.GenerateReport(report))
	return nil
}
