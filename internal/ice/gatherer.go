// Package ice batches locally discovered ICE candidates into at most two
// time-bounded deliveries: an immediate batch returned with the offer or
// answer, and an optional extra batch pushed to the host later.
package ice

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"webcall/native/internal/domain"
)

// Default phase durations used for calls.
const (
	DefaultWait      = 4 * time.Second
	DefaultExtraWait = 4 * time.Second
)

// CandidateSource reports locally gathered candidates. A nil candidate
// means gathering is complete.
type CandidateSource interface {
	SetOnICECandidate(f func(candidate *domain.ICECandidatePayload))
}

// Result is one batch of gathered candidates.
type Result struct {
	Candidates []domain.ICECandidatePayload
	// Complete is true only when gathering actually finished before the
	// batch was taken.
	Complete bool
}

// Gatherer accumulates candidates from a CandidateSource.
type Gatherer struct {
	logger *zap.Logger

	mu         sync.Mutex
	candidates []domain.ICECandidatePayload
	stopped    bool

	complete     chan struct{}
	completeOnce sync.Once
}

// NewGatherer subscribes to source. It must be called before the local
// description is set, otherwise early candidates are lost.
func NewGatherer(source CandidateSource, logger *zap.Logger) *Gatherer {
	g := &Gatherer{
		logger:   logger,
		complete: make(chan struct{}),
	}
	source.SetOnICECandidate(g.onCandidate)
	return g
}

func (g *Gatherer) onCandidate(c *domain.ICECandidatePayload) {
	if c == nil {
		g.completeOnce.Do(func() {
			g.logger.Debug("ice gathering complete")
			close(g.complete)
		})
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		g.logger.Debug("dropping late ice candidate", zap.String("candidate", c.Candidate))
		return
	}
	g.candidates = append(g.candidates, *c)
}

// Collect runs the first phase synchronously and returns its result. If
// the first phase ended on the timer, a second phase of up to extraWait
// runs in the background and its result is sent on the returned channel.
// The channel carries at most one value and is always closed; cancelling
// ctx abandons the second phase without sending.
func (g *Gatherer) Collect(ctx context.Context, wait, extraWait time.Duration) (Result, <-chan Result) {
	extra := make(chan Result, 1)

	immediate := g.phase(ctx, wait)
	if immediate.Complete || ctx.Err() != nil {
		g.stop()
		close(extra)
		return immediate, extra
	}

	go func() {
		defer close(extra)
		later := g.phase(ctx, extraWait)
		g.stop()
		if ctx.Err() != nil {
			return
		}
		extra <- later
	}()
	return immediate, extra
}

func (g *Gatherer) phase(ctx context.Context, d time.Duration) Result {
	timer := time.NewTimer(d)
	defer timer.Stop()

	complete := false
	select {
	case <-g.complete:
		complete = true
	case <-timer.C:
	case <-ctx.Done():
	}
	if !complete {
		select {
		case <-g.complete:
			complete = true
		default:
		}
	}
	return Result{Candidates: g.drain(), Complete: complete}
}

func (g *Gatherer) drain() []domain.ICECandidatePayload {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.candidates
	g.candidates = nil
	return out
}

func (g *Gatherer) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	g.candidates = nil
}
