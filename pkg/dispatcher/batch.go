package dispatcher

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lingoroute/lingoroute/pkg/models"
)

// BatchItem is the outcome of one request in a batch.
type BatchItem struct {
	Result models.TranslationResult `json:"result"`
	Err    error                    `json:"-"`
}

// TranslateBatch translates every request with at most Workers in flight.
// Items are returned in request order; a failing item never affects others.
func (d *Dispatcher) TranslateBatch(ctx context.Context, reqs []models.TranslationRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))
	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := d.Translate(ctx, req)
			items[i] = BatchItem{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}
