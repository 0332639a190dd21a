package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/quietfire/constellation/internal/llm"
	"github.com/quietfire/constellation/internal/store"
)

// ErrBudgetExhausted signals that the capability-budget gate denied a call.
// Always recoverable: the caller degrades to a local fallback.
var ErrBudgetExhausted = errors.New("capability budget exhausted")

// ErrNoSample is returned when a requested family has no memories to
// aggregate. This is a caller precondition violation and propagates.
var ErrNoSample = errors.New("no sample memories for family")

// ErrSweepInFlight is returned when a reclassification sweep is requested
// while another one is still running.
var ErrSweepInFlight = errors.New("reclassification sweep already in flight")

// Engine orchestrates memory classification, link scoring, and the
// background reclassification sweep.
type Engine struct {
	DB       *store.DB
	LLM      llm.Client
	Embedder Embedder
	Gate     *Gate

	stopCh        chan struct{}
	reclassifying atomic.Bool
}

// New creates a new Engine.
func New(db *store.DB, client llm.Client) *Engine {
	return &Engine{
		DB:     db,
		LLM:    client,
		stopCh: make(chan struct{}),
	}
}

// SetEmbedder configures the embedding provider.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// SetGate configures the capability-budget gate. A nil gate means unlimited.
func (e *Engine) SetGate(g *Gate) {
	e.Gate = g
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// acquire consumes one unit of capability budget. A nil gate always allows.
func (e *Engine) acquire() bool {
	if e.Gate == nil {
		return true
	}
	return e.Gate.TryAcquire()
}

// complete runs one budget-gated LLM completion.
func (e *Engine) complete(ctx context.Context, prompt string) (string, error) {
	if e.LLM == nil {
		return "", errors.New("llm not configured")
	}
	if !e.acquire() {
		return "", ErrBudgetExhausted
	}
	resp, err := e.LLM.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
