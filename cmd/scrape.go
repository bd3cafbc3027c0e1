package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/checkpoint"
	"github.com/sells-group/rent-cli/internal/pipeline"
)

var (
	scrapeOpts   runFlags
	scrapeResume bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape rental sites and store the listings",
	Long:  "Runs the full pipeline: scrape, extract, filter, enrich, store and export. With --resume an interrupted run continues from its checkpoint.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, scrapeOpts, scrapeResume)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue an interrupted scrape from its checkpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, scrapeOpts, true)
	},
}

func runPipeline(cmd *cobra.Command, flags runFlags, resume bool) error {
	ctx := cmd.Context()

	if err := cfg.Validate("scrape"); err != nil {
		return err
	}
	rc, err := buildRunConfig(cfg, flags)
	if err != nil {
		return err
	}

	cps := checkpoint.NewFileStore(checkpointPath(cfg, rc.OutputDir))
	if resume {
		// Collaborators must match the saved run, not the current flags.
		if cp, err := cps.Load(); err == nil && cp != nil {
			rc = cp.Config
		}
	} else if cps.Exists() {
		zap.L().Warn("a checkpoint from an interrupted run exists; it will be overwritten (use --resume to continue it)",
			zap.String("path", cps.Path()))
	}

	p, err := buildPipeline(cfg, rc, cps)
	if err != nil {
		return err
	}

	var res *pipeline.Result
	if resume {
		res, err = p.Resume(ctx, rc)
	} else {
		res, err = p.Run(ctx, rc)
	}
	if res != nil {
		formatRunSummary(os.Stdout, res)
	}
	if err != nil {
		if cps.Exists() {
			zap.L().Info("run stopped; continue with `rent-cli resume`", zap.String("checkpoint", cps.Path()))
		}
		return eris.Wrap(err, "pipeline run")
	}
	return nil
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.city, "city", "", "city profile (amsterdam, helsinki, stockholm)")
	fs.StringSliceVar(&f.sites, "sites", nil, "sites to scrape, comma separated (default: all sites of the city)")
	fs.Float64Var(&f.minPrice, "min-price", 0, "minimum monthly rent in the city's currency")
	fs.Float64Var(&f.maxPrice, "max-price", 0, "maximum monthly rent in the city's currency")
	fs.IntVar(&f.maxListings, "max-listings", 0, "maximum listings per site (0 = no limit)")
	fs.BoolVar(&f.testMode, "test", false, "test mode: only a few listings per site")
	fs.BoolVar(&f.skipLLM, "skip-llm", false, "skip LLM extraction and use regex extraction only")
	fs.BoolVar(&f.apartmentsOnly, "apartments-only", false, "drop rooms and shared housing")
	fs.Float64Var(&f.minSurface, "min-surface", 0, "minimum surface in m²")
	fs.IntVar(&f.minRooms, "min-rooms", 0, "minimum number of rooms")
	fs.StringVar(&f.outputDir, "output-dir", "", "directory for the database, reports and checkpoint")
}

func init() {
	addRunFlags(scrapeCmd, &scrapeOpts)
	scrapeCmd.Flags().BoolVar(&scrapeResume, "resume", false, "continue from the last checkpoint if one exists")
	resumeCmd.Flags().StringVar(&scrapeOpts.outputDir, "output-dir", "", "directory holding the checkpoint")
	rootCmd.AddCommand(scrapeCmd, resumeCmd)
}

