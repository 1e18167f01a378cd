package harvest

import (
	"context"
	"errors"
	"strings"

	"github.com/use-agent/bibharvest/cleaner"
	"github.com/use-agent/bibharvest/engine"
	"github.com/use-agent/bibharvest/models"
	"github.com/use-agent/bibharvest/simhash"
	"github.com/use-agent/bibharvest/site"
)

// openEntry loads the entry URL and waits for its landmark.
func (h *Harvester) openEntry(ctx context.Context) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return h.fail(ctx, StageEntry, models.ErrCodeCanceled, "entry page pacing interrupted", err)
	}
	if err := h.page.Navigate(ctx, h.profile.EntryURL); err != nil {
		return h.fail(ctx, StageEntry, models.ErrCodeNavigation, "failed to load entry page", err)
	}
	if err := h.await(ctx, h.profile.EntryLandmark); err != nil {
		return h.fail(ctx, StageEntry, waitCode(err), "entry page landmark missing", err)
	}
	return nil
}

// advance performs one "wait for landmark, choose a candidate, click" step
// and returns the text of the element it clicked.
func (h *Harvester) advance(ctx context.Context, stage Stage, st site.Stage) (string, error) {
	if err := h.await(ctx, st.Landmark); err != nil {
		return "", h.fail(ctx, stage, waitCode(err), "landmark "+st.Landmark+" missing", err)
	}

	candidates, err := h.candidates(ctx, st)
	if err != nil {
		return "", h.fail(ctx, stage, models.ErrCodeNoCandidates, "failed to list "+st.Candidates, err)
	}
	if len(candidates) == 0 {
		return "", h.fail(ctx, stage, models.ErrCodeNoCandidates, "no candidates match "+st.Candidates, nil)
	}

	chosen := h.pick(candidates, st.Pick)
	label, err := chosen.Text(ctx)
	if err != nil {
		return "", h.fail(ctx, stage, models.ErrCodeActivation, "failed to read chosen element", err)
	}
	label = strings.TrimSpace(label)

	h.log.Debug("activating candidate", "stage", stage.String(), "text", label, "candidates", len(candidates))
	if err := chosen.Click(ctx); err != nil {
		return "", h.fail(ctx, stage, models.ErrCodeActivation, "click failed", err)
	}
	if err := h.pause(ctx); err != nil {
		return "", h.fail(ctx, stage, models.ErrCodeCanceled, "pause interrupted", err)
	}
	return label, nil
}

// candidates lists the stage's elements, keeping only those whose href
// contains HrefContains when it is set.
func (h *Harvester) candidates(ctx context.Context, st site.Stage) ([]engine.Element, error) {
	els, err := h.page.Elements(ctx, st.Candidates)
	if err != nil {
		return nil, err
	}
	if st.HrefContains == "" {
		return els, nil
	}

	kept := els[:0]
	for _, el := range els {
		href, ok, err := el.Attribute(ctx, "href")
		if err != nil {
			return nil, err
		}
		if ok && strings.Contains(href, st.HrefContains) {
			kept = append(kept, el)
		}
	}
	return kept, nil
}

func (h *Harvester) pick(candidates []engine.Element, strategy string) engine.Element {
	if strategy == site.PickFirst {
		return candidates[0]
	}
	return candidates[h.rng.IntN(len(candidates))]
}

func (h *Harvester) await(ctx context.Context, selector string) error {
	return engine.WaitFor(ctx, h.page, selector, h.cfg.WaitTimeout, h.cfg.PollInterval)
}

func (h *Harvester) pause(ctx context.Context) error {
	return h.sleep(ctx, pauseDuration(h.rng, h.cfg.PauseMin, h.cfg.PauseMax))
}

// fail builds the stage error and logs the page it happened on. Fatal stages
// log the full page content; recoverable ones log its structural fingerprint
// and whether it matches the previous failure at that stage, which tells a
// broken selector apart from a transient error.
func (h *Harvester) fail(ctx context.Context, stage Stage, code, msg string, cause error) *models.HarvestError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.NewStageError(models.ErrCodeCanceled, stage.String(), "run canceled", ctxErr)
	}
	herr := models.NewStageError(code, stage.String(), msg, cause)

	html, err := h.page.HTML(ctx)
	if err != nil {
		h.log.Debug("could not read page content", "stage", stage.String(), "error", err)
	}

	if stage.Fatal() {
		snap := cleaner.Take(html, h.page.URL(), h.dumpFormat)
		h.log.Error("navigation failed, aborting run",
			"stage", stage.String(),
			"error", herr,
			"page", snap,
		)
		return herr
	}

	snap := cleaner.Take(html, h.page.URL(), cleaner.FormatHTML)
	repeat := simhash.SameStructure(h.lastFailure[stage], snap.Fingerprint)
	h.lastFailure[stage] = snap.Fingerprint
	h.log.Warn("navigation step failed",
		"stage", stage.String(),
		"error", herr,
		"url", snap.URL,
		"title", snap.Title,
		"fingerprint", snap.FingerprintHex(),
		"repeat_structure", repeat,
	)
	return herr
}

// waitCode classifies a wait error.
func waitCode(err error) string {
	if errors.Is(err, engine.ErrWaitTimeout) {
		return models.ErrCodeTimeout
	}
	return models.ErrCodeNavigation
}
