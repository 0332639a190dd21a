package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/quietfire/constellation/internal/store"
)

// StartReclassifier runs a background sweep on a fixed interval, revisiting
// memories that were classified offline. At most one budget-limited batch
// per tick; the sweep defers remaining work the moment the gate reports
// exhaustion so catch-up never starves live ingestion.
func (e *Engine) StartReclassifier(interval time.Duration, batch int) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n, err := e.ReclassifySweep(context.Background(), batch)
				if err != nil && !errors.Is(err, ErrSweepInFlight) {
					log.Printf("reclassify: sweep error: %v", err)
				} else if n > 0 {
					log.Printf("reclassify: upgraded %d memories", n)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// ReclassifySweep processes one batch of offline-classified memories.
// Returns the number upgraded. Only one sweep may be in flight at a time;
// a second caller gets ErrSweepInFlight.
func (e *Engine) ReclassifySweep(ctx context.Context, batch int) (int, error) {
	if !e.reclassifying.CompareAndSwap(false, true) {
		return 0, ErrSweepInFlight
	}
	defer e.reclassifying.Store(false)

	pending, err := e.DB.OfflineMemories(batch)
	if err != nil {
		return 0, fmt.Errorf("list offline memories: %w", err)
	}

	processed := 0
	for i := range pending {
		err := e.reclassifyOne(ctx, &pending[i])
		if errors.Is(err, ErrBudgetExhausted) {
			// Budget gone — defer the rest to the next interval.
			return processed, nil
		}
		if err != nil {
			log.Printf("reclassify %s: %v", pending[i].ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (e *Engine) reclassifyOne(ctx context.Context, mem *store.Memory) error {
	existing, err := e.DB.DistinctMoods()
	if err != nil {
		return fmt.Errorf("list families: %w", err)
	}

	cand, err := e.analyze(ctx, mem.Text, existing)
	if err != nil {
		return err
	}

	d := e.decideFamily(ctx, cand, existing)

	mem.Mood = d.Mood
	mem.Color = cand.Color
	mem.Tags = cand.Tags
	mem.Theme = cand.Theme
	mem.Embedding = cand.Embedding
	mem.ClassifiedBy = d.DecidedBy
	mem.BestMatch = d.BestMatch
	mem.BestScore = d.BestScore
	mem.IsNewFamily = d.IsNew

	if err := e.DB.UpdateClassification(mem); err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	return nil
}
