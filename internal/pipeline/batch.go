package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// BatchItem is the outcome of one query in a batch.
type BatchItem struct {
	Query  string  `json:"query"`
	Answer *Answer `json:"answer,omitempty"`
	Err    error   `json:"-"`
	Error  string  `json:"error,omitempty"`
}

// RunBatch asks every query on a pool of workers. Items keep the order of
// queries and share one history session. Per-query failures are reported
// in the item; the returned error is only for pool failures.
func RunBatch(ctx context.Context, p *Pipeline, queries []string, workers int) ([]BatchItem, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	sessionID := uuid.New().String()
	items := make([]BatchItem, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		i, q := i, q
		items[i].Query = q
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				items[i].setErr(ctx.Err())
				return
			}
			ans, err := p.Ask(ctx, AskRequest{SessionID: sessionID, Query: q})
			if err != nil {
				items[i].setErr(err)
				return
			}
			items[i].Answer = ans
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting query %d: %w", i, err)
		}
	}
	wg.Wait()
	return items, nil
}

func (b *BatchItem) setErr(err error) {
	b.Err = err
	b.Error = err.Error()
}
