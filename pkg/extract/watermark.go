package extract

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/datafactory"
)

// resolveWindow computes the incremental query window for a run extractor.
// The left edge is the previous max etl_update_ts minus the lookback, so runs
// whose status changed after the last extraction are re-fetched. An empty
// target table bootstraps from now: the first invocation lands nothing beyond
// the lookback window and later ones advance incrementally.
func (s *Service) resolveWindow(ctx context.Context, lastWatermark func(context.Context) (time.Time, bool, error), offsetDays int) (datafactory.Window, error) {
	watermark, ok, err := lastWatermark(ctx)
	if err != nil {
		return datafactory.Window{}, err
	}
	if !ok {
		watermark = s.now().UTC()
	}

	return datafactory.Window{
		After:  watermark.AddDate(0, 0, -offsetDays),
		Before: s.now().UTC(),
	}, nil
}
