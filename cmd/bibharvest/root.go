package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/use-agent/bibharvest/config"
	"github.com/use-agent/bibharvest/engine"
	"github.com/use-agent/bibharvest/harvest"
	"github.com/use-agent/bibharvest/models"
	"github.com/use-agent/bibharvest/site"
)

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "bibharvest",
		Short: "bibharvest collects BibTeX records for randomly chosen dblp authors.",
		Long: `bibharvest opens the dblp home page, picks a random letter of the person
index, then a random author, and copies every citation block from that
author's BibTeX export. It stops once the target number of authors has been
collected and writes all records to a JSON file keyed by author name.

Every flag can also be set through the matching HARVEST_* environment
variable or a .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.Harvest.TargetAuthors, "authors", cfg.Harvest.TargetAuthors, "number of authors to collect")
	f.StringVarP(&cfg.Output.Path, "output", "o", cfg.Output.Path, "JSON file to write the records to")
	f.StringVar(&cfg.Engine, "engine", cfg.Engine, `page engine: "rod" (Chromium) or "http" (static fetch)`)
	f.Uint64Var(&cfg.Harvest.Seed, "seed", cfg.Harvest.Seed, "random seed for candidate choice and pauses; 0 picks one")
	f.BoolVar(&cfg.Browser.Headless, "headless", cfg.Browser.Headless, "run Chromium without a window")
	f.StringVar(&cfg.Harvest.SiteProfile, "profile", cfg.Harvest.SiteProfile, "YAML site profile; empty uses the built-in dblp profile")
	f.IntVar(&cfg.Retry.MaxRetries, "max-retries", cfg.Retry.MaxRetries, "consecutive failures tolerated before giving up; 0 retries forever")

	return cmd
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	initLogger(cfg.Log)
	if cfg.Harvest.TargetAuthors < 1 {
		return fmt.Errorf("--authors must be at least 1, got %d", cfg.Harvest.TargetAuthors)
	}

	profile, err := site.Load(cfg.Harvest.SiteProfile)
	if err != nil {
		return err
	}

	eng, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Warn("engine close failed", "error", err)
		}
	}()

	slog.Info("bibharvest starting",
		"engine", eng.Name(),
		"headless", cfg.Browser.Headless,
		"target", cfg.Harvest.TargetAuthors,
		"output", cfg.Output.Path,
	)

	h := harvest.New(eng.Page(), harvest.Options{
		Profile: profile,
		Harvest: cfg.Harvest,
		Retry:   cfg.Retry,
		Logger:  slog.Default(),
	})

	res, err := harvest.RunToFile(cmd.Context(), h, cfg.Output.Path)
	if err != nil {
		slog.Error("harvest aborted, no output written",
			"error", err,
			"collected", res.Authors,
			"attempts", res.Attempts,
		)
		return &exitError{err: err}
	}

	slog.Info("bibharvest done",
		"authors", res.Records.Len(),
		"records", res.Records.TotalRecords(),
		"attempts", res.Attempts,
		"failures", res.Failures,
	)
	return nil
}

func openEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine {
	case "", "rod":
		return engine.LaunchRod(cfg.Browser)
	case "http":
		return engine.NewHTTPEngine(cfg.Browser), nil
	default:
		return nil, models.NewHarvestError(models.ErrCodeBrowserLaunch,
			fmt.Sprintf("unknown engine %q", cfg.Engine), nil)
	}
}
