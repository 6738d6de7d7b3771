package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chriscorrea/civil/internal/app"
	"github.com/chriscorrea/civil/internal/segment"
	"github.com/chriscorrea/civil/internal/stats"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [text...]",
	Short: "Show the normalized form of comments",
	Long: `Normalize runs comments through the same pipeline used for training and
prediction. Without arguments each line of standard input is one comment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		out, err := printer(cmd)
		if err != nil {
			return err
		}
		results, err := app.Normalize(ctx, app.NormalizeConfig{
			Env:     env(cmd),
			Texts:   args,
			Stemmer: settings.Stemmer,
			Workers: settings.Training.Workers,
		})
		if err != nil {
			return fmt.Errorf("normalize failed: %w", err)
		}
		return out.Normalized(results)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train <dataset>",
	Short: "Train a classifier on a labeled CSV corpus",
	Long: `Train reads a CSV corpus with a comment_text column and either the six
toxicity columns (toxic, severe_toxic, obscene, threat, insult, identity_hate)
or a single label column, balances the classes, fits the model, evaluates it
on a held-out split and stores it in the registry.

The dataset may be a file path, a URL, or "-" for standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		out, err := printer(cmd)
		if err != nil {
			return err
		}

		training := settings.Training
		flags := cmd.Flags()
		if flags.Changed("text-column") {
			training.TextColumn, _ = flags.GetString("text-column")
		}
		if flags.Changed("seed") {
			training.Seed, _ = flags.GetInt64("seed")
		}
		if flags.Changed("test-fraction") {
			training.TestFraction, _ = flags.GetFloat64("test-fraction")
		}
		if flags.Changed("negative-ratio") {
			training.NegativeRatio, _ = flags.GetFloat64("negative-ratio")
		}
		if flags.Changed("min-df") {
			training.MinDF, _ = flags.GetInt("min-df")
		}
		if flags.Changed("trees") {
			training.Trees, _ = flags.GetInt("trees")
		}
		if flags.Changed("max-depth") {
			training.MaxDepth, _ = flags.GetInt("max-depth")
		}
		if flags.Changed("min-samples-leaf") {
			training.MinSamplesLeaf, _ = flags.GetInt("min-samples-leaf")
		}
		settings.Training = training
		if err := settings.Validate(); err != nil {
			return err
		}

		name, _ := flags.GetString("name")
		rec, artifact, err := app.Train(ctx, app.TrainConfig{
			Env:        env(cmd),
			Dataset:    args[0],
			TextColumn: training.TextColumn,
			Name:       name,
			Stemmer:    settings.Stemmer,
			Training:   training.TrainConfig(),
		})
		if err != nil {
			return fmt.Errorf("train failed: %w", err)
		}
		return out.Training(rec, artifact)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict [sources...]",
	Short: "Classify comments with a trained model",
	Long: `Predict labels comments as toxic or non-toxic with the newest model, or
the one given with --model. Comments come from --text, from sources (URLs,
local files, "-" for standard input) or from standard input when neither is
given. HTML sources are reduced to their main content first.

With --split each comment of a page is classified on its own and page chrome
such as reply links and footers is skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		out, err := printer(cmd)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		texts, _ := flags.GetStringArray("text")
		modelID, _ := flags.GetString("model")
		selector, _ := flags.GetString("selector")
		split, _ := flags.GetBool("split")
		maxRunes, _ := flags.GetInt("max-runes")
		includeAll, _ := flags.GetBool("include-all")

		rec, results, err := app.Predict(ctx, app.PredictConfig{
			Env:        env(cmd),
			ModelID:    modelID,
			Texts:      texts,
			Sources:    args,
			Selector:   selector,
			Split:      split,
			MaxRunes:   maxRunes,
			IncludeAll: includeAll,
			Workers:    settings.Training.Workers,
		})
		if err != nil {
			return fmt.Errorf("predict failed: %w", err)
		}

		if quiet, _ := flags.GetBool("quiet"); !quiet {
			fmt.Fprintf(os.Stderr, "Using model %s\n", rec.ID)
		}
		return out.Predictions(results)
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List trained models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		out, err := printer(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		records, err := app.Models(ctx, env(cmd), limit)
		if err != nil {
			return err
		}
		return out.Models(records)
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show the metrics of a model (default: newest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		out, err := printer(cmd)
		if err != nil {
			return err
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		rec, artifact, err := app.ShowModel(ctx, env(cmd), id)
		if err != nil {
			return err
		}
		return out.Training(rec, artifact)
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a model from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		if err := app.DeleteModel(ctx, env(cmd), args[0]); err != nil {
			return err
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			fmt.Fprintf(os.Stderr, "Deleted model %s\n", args[0])
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <dataset>",
	Short: "Summarize a labeled corpus",
	Long: `Stats reports class balance, comment lengths, the most frequent stems per
class, how much text survives normalization and which languages appear.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		out, err := printer(cmd)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		unitName, _ := flags.GetString("unit")
		unit, err := stats.ParseUnit(unitName)
		if err != nil {
			return err
		}
		top, _ := flags.GetInt("top")
		textColumn := settings.Training.TextColumn
		if flags.Changed("text-column") {
			textColumn, _ = flags.GetString("text-column")
		}

		summary, err := app.Stats(ctx, app.StatsConfig{
			Env:        env(cmd),
			Dataset:    args[0],
			TextColumn: textColumn,
			Stemmer:    settings.Stemmer,
			Unit:       unit,
			TopStems:   top,
			Workers:    settings.Training.Workers,
		})
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}
		return out.Stats(summary)
	},
}

func init() {
	trainCmd.Flags().String("name", "", "Label stored with the model")
	trainCmd.Flags().String("text-column", "comment_text", "CSV column holding the comment text")
	trainCmd.Flags().Int64("seed", 42, "Seed for balancing, splitting and the forest")
	trainCmd.Flags().Float64("test-fraction", 0.2, "Share of the balanced corpus held out for evaluation")
	trainCmd.Flags().Float64("negative-ratio", 1, "Non-toxic examples kept per toxic example (0 keeps all)")
	trainCmd.Flags().Int("min-df", 1, "Minimum document frequency of a vocabulary term")
	trainCmd.Flags().Int("trees", 100, "Number of trees in the forest")
	trainCmd.Flags().Int("max-depth", 0, "Maximum tree depth (0 is unlimited)")
	trainCmd.Flags().Int("min-samples-leaf", 1, "Minimum examples per leaf")

	predictCmd.Flags().StringArrayP("text", "t", nil, "Comment to classify (repeatable)")
	predictCmd.Flags().StringP("model", "m", "", "Model ID (default: newest)")
	predictCmd.Flags().StringP("selector", "s", "", "CSS selector for HTML sources")
	predictCmd.Flags().Bool("split", false, "Classify each comment of a source separately")
	predictCmd.Flags().Int("max-runes", segment.DefaultMaxRunes, "Maximum comment length when splitting")
	predictCmd.Flags().BoolP("include-all", "i", false, "Keep page chrome such as reply links when splitting")

	modelsCmd.Flags().Int("limit", 0, "Maximum number of models to list (0 lists all)")
	modelsCmd.AddCommand(modelsShowCmd, modelsDeleteCmd)

	statsCmd.Flags().String("unit", "words", "Length unit: words, characters or tokens")
	statsCmd.Flags().Int("top", 10, "Most frequent stems shown per class")
	statsCmd.Flags().String("text-column", "comment_text", "CSV column holding the comment text")
}
