// Package harvest drives the random walk over the bibliography site and
// collects the citation records it finds.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/cenkalti/backoff/v4"
	"github.com/use-agent/bibharvest/cleaner"
	"github.com/use-agent/bibharvest/config"
	"github.com/use-agent/bibharvest/engine"
	"github.com/use-agent/bibharvest/models"
	"github.com/use-agent/bibharvest/site"
	"github.com/use-agent/bibharvest/store"
	"golang.org/x/time/rate"
)

// Options configures a Harvester. Zero values fall back to defaults: the
// built-in site profile, a rand seeded from Harvest.Seed, a timer-based
// sleep and slog.Default().
type Options struct {
	Profile *site.Profile
	Harvest config.HarvestConfig
	Retry   config.RetryConfig

	Rand   *rand.Rand
	Sleep  SleepFunc
	Logger *slog.Logger
}

// Harvester runs the navigation loop against one page. It is single-threaded
// and not safe for concurrent use.
type Harvester struct {
	page       engine.Page
	profile    *site.Profile
	cfg        config.HarvestConfig
	dumpFormat string

	rng     *rand.Rand
	sleep   SleepFunc
	limiter *rate.Limiter
	backoff backoff.BackOff
	log     *slog.Logger

	// lastFailure holds the fingerprint of the page each stage last failed on.
	lastFailure map[Stage]uint64
}

// New creates a Harvester driving page.
func New(page engine.Page, opts Options) *Harvester {
	h := &Harvester{
		page:        page,
		profile:     opts.Profile,
		cfg:         opts.Harvest,
		dumpFormat:  opts.Harvest.DumpFormat,
		rng:         opts.Rand,
		sleep:       opts.Sleep,
		limiter:     newEntryLimiter(opts.Harvest.EntryRPS),
		backoff:     newBackoff(opts.Retry),
		log:         opts.Logger,
		lastFailure: make(map[Stage]uint64),
	}
	if h.profile == nil {
		h.profile = site.Default()
	}
	if h.dumpFormat == "" {
		h.dumpFormat = cleaner.FormatHTML
	}
	if h.rng == nil {
		h.rng = newRand(opts.Harvest.Seed)
	}
	if h.sleep == nil {
		h.sleep = sleepCtx
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

// Run iterates from the entry page until TargetAuthors authors have been
// counted. Recoverable failures restart from the entry page after a backoff
// delay without advancing the count. A fatal failure, cancellation or too
// many consecutive failures end the run with an error; the partial result is
// returned alongside it but should not be persisted.
func (h *Harvester) Run(ctx context.Context) (*models.Harvest, error) {
	result := models.NewHarvest()
	h.backoff.Reset()
	consecutive := 0

	h.log.Info("harvest started",
		"site", h.profile.Name,
		"entry_url", h.profile.EntryURL,
		"target", h.cfg.TargetAuthors,
	)

	for result.Authors < h.cfg.TargetAuthors {
		if err := ctx.Err(); err != nil {
			return result, models.NewHarvestError(models.ErrCodeCanceled, "run canceled", err)
		}
		result.Attempts++

		author, n, err := h.iterate(ctx, result.Records)
		if err == nil {
			result.Authors++
			consecutive = 0
			h.backoff.Reset()
			h.log.Info("author collected",
				"author", author,
				"records", n,
				"count", result.Authors,
				"target", h.cfg.TargetAuthors,
			)
			continue
		}

		var herr *models.HarvestError
		if !errors.As(err, &herr) {
			return result, err
		}
		if herr.Code == models.ErrCodeCanceled || fatal(herr) {
			return result, herr
		}

		result.Failures++
		consecutive++
		delay := h.backoff.NextBackOff()
		if delay == backoff.Stop {
			return result, models.NewHarvestError(models.ErrCodeRetriesExhausted,
				fmt.Sprintf("giving up after %d consecutive failures", consecutive), herr)
		}
		h.log.Warn("restarting from entry page",
			"stage", herr.Stage,
			"code", herr.Code,
			"retry_in", delay,
			"count", result.Authors,
		)
		if err := h.sleep(ctx, delay); err != nil {
			return result, models.NewHarvestError(models.ErrCodeCanceled, "run canceled", err)
		}
	}

	h.log.Info("harvest finished",
		"authors", result.Records.Len(),
		"records", result.Records.TotalRecords(),
		"attempts", result.Attempts,
		"failures", result.Failures,
	)
	return result, nil
}

// iterate performs one walk from the entry page to the export page and
// collects what it finds there. It returns the author name and the number of
// records stored under it.
func (h *Harvester) iterate(ctx context.Context, acc *models.Accumulator) (string, int, error) {
	if err := h.openEntry(ctx); err != nil {
		return "", 0, err
	}

	letter, err := h.advance(ctx, StageLetter, h.profile.Letter)
	if err != nil {
		return "", 0, err
	}
	h.log.Info("letter chosen", "letter", letter)

	author, err := h.advance(ctx, StageAuthor, h.profile.Author)
	if err != nil {
		return "", 0, err
	}
	h.log.Info("author chosen", "author", author)

	if _, err := h.advance(ctx, StageExport, h.profile.Export); err != nil {
		return author, 0, err
	}
	h.log.Debug("export page opened", "author", author, "url", h.page.URL())

	n, err := h.collect(ctx, author, acc)
	if err != nil {
		var herr *models.HarvestError
		if h.cfg.CountEmpty && errors.As(err, &herr) && herr.Code != models.ErrCodeCanceled {
			acc.Ensure(author)
			h.log.Warn("no records collected, counting author anyway", "author", author)
			return author, 0, nil
		}
		return author, 0, err
	}
	return author, n, nil
}

// RunToFile runs h and writes the records to path. Nothing is written when
// the run fails.
func RunToFile(ctx context.Context, h *Harvester, path string) (*models.Harvest, error) {
	result, err := h.Run(ctx)
	if err != nil {
		return result, err
	}
	if err := store.WriteJSON(path, result.Records); err != nil {
		return result, err
	}
	h.log.Info("records written", "path", path, "authors", result.Records.Len())
	return result, nil
}
