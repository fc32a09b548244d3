// Command goboostml trains the boosted-tree anomaly classifier on two
// labeled CSV files and reports evaluation metrics.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/goboostml/pkg/detector"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "goboostml",
		Short:        "Supervised anomaly detection with gradient-boosted trees",
		SilenceUsage: true,
	}
	root.AddCommand(newTrainCmd())
	root.AddCommand(newPredictCmd())
	return root
}

func newTrainCmd() *cobra.Command {
	cfg := detector.DefaultConfig()
	var (
		configPath  string
		outputPath  string
		topFeatures int
		predictRow  string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train on normal and anomalous CSV sources and evaluate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				fileCfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				// Flags explicitly set on the command line win over
				// the config file.
				merged := *fileCfg
				if cmd.Flags().Changed("normal") {
					merged.NormalPath = cfg.NormalPath
				}
				if cmd.Flags().Changed("anomalous") {
					merged.AnomalousPath = cfg.AnomalousPath
				}
				if cmd.Flags().Changed("label-column") {
					merged.LabelColumn = cfg.LabelColumn
				}
				if cmd.Flags().Changed("test-fraction") {
					merged.TestFraction = cfg.TestFraction
				}
				if cmd.Flags().Changed("seed") {
					merged.RandomSeed = cfg.RandomSeed
				}
				cfg = merged
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			d := detector.New(cfg, detector.WithLogger(logger))
			pipeline, report, err := d.Train()
			if err != nil {
				return err
			}

			fmt.Println("MODEL EVALUATION")
			fmt.Println(strings.Repeat("=", 50))
			fmt.Print(report)

			importance, err := pipeline.FeatureImportance(topFeatures)
			if err != nil {
				return err
			}
			fmt.Println("\nFEATURE IMPORTANCE")
			fmt.Println(strings.Repeat("=", 50))
			for i, imp := range importance {
				fmt.Printf("%2d. %-30s %.4f\n", i+1, imp.Feature, imp.Score)
			}

			if outputPath != "" {
				data, err := pipeline.Save()
				if err != nil {
					return err
				}
				if err := os.WriteFile(outputPath, data, 0o644); err != nil {
					return err
				}
				fmt.Printf("\nPipeline saved to %s\n", outputPath)
			}

			if predictRow != "" {
				if err := printPrediction(pipeline, predictRow); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.NormalPath, "normal", "", "CSV file with normal-class rows")
	cmd.Flags().StringVar(&cfg.AnomalousPath, "anomalous", "", "CSV file with anomalous-class rows")
	cmd.Flags().StringVar(&cfg.LabelColumn, "label-column", cfg.LabelColumn, "name of the class-indicator column")
	cmd.Flags().Float64Var(&cfg.TestFraction, "test-fraction", cfg.TestFraction, "held-out split ratio")
	cmd.Flags().Int64Var(&cfg.RandomSeed, "seed", cfg.RandomSeed, "random seed for the split and the model")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (flags override)")
	cmd.Flags().StringVar(&outputPath, "output", "", "file to save the fitted pipeline to")
	cmd.Flags().IntVar(&topFeatures, "top-features", 20, "number of features in the importance listing")
	cmd.Flags().StringVar(&predictRow, "predict", "", "comma-separated raw row to score after training")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress")

	return cmd
}

func newPredictCmd() *cobra.Command {
	var (
		modelPath string
		rawRow    string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a raw row with a previously saved pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(modelPath)
			if err != nil {
				return err
			}
			pipeline, err := detector.LoadPipeline(data)
			if err != nil {
				return err
			}
			return printPrediction(pipeline, rawRow)
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "pipeline file written by train --output")
	cmd.Flags().StringVar(&rawRow, "row", "", "comma-separated raw row ordered as the training feature columns")
	cobra.CheckErr(cmd.MarkFlagRequired("model"))
	cobra.CheckErr(cmd.MarkFlagRequired("row"))

	return cmd
}

// printPrediction parses a comma-separated raw row against the
// pipeline's column schema, scores it, and prints the outcome.
func printPrediction(pipeline *detector.Pipeline, rawRow string) error {
	cells := strings.Split(rawRow, ",")
	row, err := pipeline.ParseRow(cells)
	if err != nil {
		return err
	}
	pred, err := pipeline.Predict(row)
	if err != nil {
		return err
	}

	fmt.Println("\nPREDICTION")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Class: %s\n", pred.Class)
	for code, p := range pred.Proba {
		fmt.Printf("P(%s) = %.4f\n", pipeline.Classes()[code], p)
	}
	return nil
}

// loadConfig reads a detector configuration from a YAML file.
func loadConfig(path string) (*detector.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := detector.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}
