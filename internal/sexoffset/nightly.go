package sexoffset

import (
	"context"
	"time"

	"github.com/henrynw/openrating/internal/core"
)

// Shrink applies nightly regularization for one ladder's offsets: shrink
// toward 0 by sexOffsets.regularization, then re-center on baseline
// (§4.3 "Nightly", §4.4 step 6). Called by the stabilization job (C8)
// inside its own transaction, once for every ladder in its nightly pass.
// Rows already stamped at or after asOf are left as they are, so a
// repeated run with the same asOf is a no-op.
func (c *Controller) Shrink(ctx context.Context, ladderID string, asOf time.Time) error {
	offsets, err := c.store.Offsets.GetAll(ctx, ladderID)
	if err != nil {
		return err
	}

	for sex, row := range offsets {
		if sex == core.SexU || !row.UpdatedAt.Before(asOf) {
			continue
		}
		row.Bias = clamp(row.Bias*(1-c.params.Regularization), -c.params.MaxAbs, c.params.MaxAbs)
		row.UpdatedAt = asOf
		offsets[sex] = row
	}

	recenter(offsets, c.params.Baseline, asOf)

	for sex, row := range offsets {
		if sex == core.SexU {
			continue
		}
		if err := c.store.Offsets.Save(ctx, row); err != nil {
			return err
		}
	}

	c.invalidate(ladderID)
	return nil
}
