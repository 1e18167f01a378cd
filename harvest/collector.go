package harvest

import (
	"context"

	"github.com/use-agent/bibharvest/models"
)

// collect waits for citation blocks on the export page and appends their
// text under author. A wait timeout returns an error and leaves acc
// untouched; the caller decides whether the author still counts.
func (h *Harvester) collect(ctx context.Context, author string, acc *models.Accumulator) (int, error) {
	if err := h.await(ctx, h.profile.Citation); err != nil {
		return 0, h.fail(ctx, StageCollect, waitCode(err), "no citation blocks appeared", err)
	}

	blocks, err := h.page.Elements(ctx, h.profile.Citation)
	if err != nil {
		return 0, h.fail(ctx, StageCollect, models.ErrCodeCollect, "failed to list citation blocks", err)
	}

	records := make([]models.Record, 0, len(blocks))
	for _, b := range blocks {
		text, err := b.Text(ctx)
		if err != nil {
			return 0, h.fail(ctx, StageCollect, models.ErrCodeCollect, "failed to read citation block", err)
		}
		records = append(records, models.Record{BibTeX: text})
	}
	if len(records) == 0 {
		return 0, h.fail(ctx, StageCollect, models.ErrCodeCollect, "citation blocks vanished before reading", nil)
	}

	acc.Append(author, records...)
	return len(records), nil
}
