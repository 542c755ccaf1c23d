// Package enrichment gathers the external signals a decision can use: model
// scores, similar historical cases, and streaming aggregates. All sources are
// queried concurrently with individual timeouts; a slow or failed source
// yields a partial result, never an error for the request as a whole.
package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/feature"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/scoring"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/similarity"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/streaming"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/telemetry"
)

// Result carries whatever the sources produced within their deadlines. Nil
// fields mean the source did not answer; callers must treat every field as
// optional.
type Result struct {
	Approval  *scoring.ApprovalScore
	Risk      *scoring.RiskScore
	Retry     *scoring.RetryScore
	Routing   *scoring.RoutingScore
	Similar   *similarity.Matches
	Streaming *streaming.Aggregates

	// Sources that returned an answer, including empty ones. A source that
	// timed out or errored is absent.
	Answered map[string]bool

	mu sync.Mutex
}

// Complete reports whether every source that was asked answered.
func (r *Result) Complete(asked ...string) bool {
	for _, s := range asked {
		if !r.Answered[s] {
			return false
		}
	}
	return true
}

// ModelScores flattens the scores present in the result for logging and
// response payloads.
func (r *Result) ModelScores() map[string]float64 {
	scores := make(map[string]float64)
	if r.Approval != nil {
		scores["approval_probability"] = r.Approval.Probability
	}
	if r.Risk != nil {
		scores["risk_score"] = r.Risk.Score
	}
	if r.Retry != nil {
		scores["retry_success_probability"] = r.Retry.SuccessProbability
	}
	if r.Routing != nil {
		scores["routing_confidence"] = r.Routing.Confidence
	}
	return scores
}

// Options bounds each source independently. The zero value gets sane
// defaults from New.
type Options struct {
	ScoringTimeout    time.Duration
	SimilarityTimeout time.Duration
	SimilarityK       int
}

// Enricher fans requests out to the configured sources. Any client may be
// nil, in which case that source is simply never asked.
type Enricher struct {
	scoring    scoring.Client
	similarity similarity.Client
	streaming  streaming.Reader
	opts       Options
	logger     zerolog.Logger
}

func New(sc scoring.Client, sim similarity.Client, str streaming.Reader, opts Options) *Enricher {
	if opts.ScoringTimeout == 0 {
		opts.ScoringTimeout = 2 * time.Second
	}
	if opts.SimilarityTimeout == 0 {
		opts.SimilarityTimeout = 3 * time.Second
	}
	if opts.SimilarityK == 0 {
		opts.SimilarityK = 5
	}
	return &Enricher{
		scoring:    sc,
		similarity: sim,
		streaming:  str,
		opts:       opts,
		logger:     log.With().Str("component", "enrichment").Logger(),
	}
}

const (
	SourceApproval   = "approval_model"
	SourceRisk       = "risk_model"
	SourceRetry      = "retry_model"
	SourceRouting    = "routing_model"
	SourceSimilarity = "similarity"
	SourceStreaming  = "streaming"
)

// EnrichAuthentication gathers approval and risk scores, similar cases and
// streaming aggregates for an authentication decision.
func (e *Enricher) EnrichAuthentication(ctx context.Context, dctx *decision.Context, vec feature.Vector) *Result {
	res := newResult()
	var wg sync.WaitGroup

	if e.scoring != nil {
		e.spawn(&wg, res, SourceApproval, func(sctx context.Context) error {
			s, err := e.scoring.ScoreApproval(sctx, vec)
			if err == nil {
				res.set(func() { res.Approval = s })
			}
			return err
		}, e.opts.ScoringTimeout)
		e.spawn(&wg, res, SourceRisk, func(sctx context.Context) error {
			s, err := e.scoring.ScoreRisk(sctx, vec)
			if err == nil {
				res.set(func() { res.Risk = s })
			}
			return err
		}, e.opts.ScoringTimeout)
	}
	e.spawnSimilarity(&wg, res, dctx)
	e.spawnStreaming(&wg, res, dctx)

	wg.Wait()
	return res
}

// EnrichRetry gathers the retry model score plus similar cases and streaming
// aggregates.
func (e *Enricher) EnrichRetry(ctx context.Context, dctx *decision.Context, vec feature.Vector) *Result {
	res := newResult()
	var wg sync.WaitGroup

	if e.scoring != nil {
		e.spawn(&wg, res, SourceRetry, func(sctx context.Context) error {
			s, err := e.scoring.ScoreRetry(sctx, vec)
			if err == nil {
				res.set(func() { res.Retry = s })
			}
			return err
		}, e.opts.ScoringTimeout)
	}
	e.spawnSimilarity(&wg, res, dctx)
	e.spawnStreaming(&wg, res, dctx)

	wg.Wait()
	return res
}

// EnrichRouting gathers the routing recommendation plus similar cases.
func (e *Enricher) EnrichRouting(ctx context.Context, dctx *decision.Context, vec feature.Vector) *Result {
	res := newResult()
	var wg sync.WaitGroup

	if e.scoring != nil {
		e.spawn(&wg, res, SourceRouting, func(sctx context.Context) error {
			s, err := e.scoring.ScoreRouting(sctx, vec)
			if err == nil {
				res.set(func() { res.Routing = s })
			}
			return err
		}, e.opts.ScoringTimeout)
	}
	e.spawnSimilarity(&wg, res, dctx)
	e.spawnStreaming(&wg, res, dctx)

	wg.Wait()
	return res
}

func newResult() *Result {
	return &Result{Answered: make(map[string]bool)}
}

// set serializes writes from the source goroutines.
func (r *Result) set(fn func()) {
	r.mu.Lock()
	fn()
	r.mu.Unlock()
}

// spawn runs one source call with its own deadline, detached from the request
// context so a cancelled request still lets in-flight calls finish fast.
func (e *Enricher) spawn(wg *sync.WaitGroup, res *Result, source string, call func(context.Context) error, timeout time.Duration) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := call(sctx); err != nil {
			telemetry.EnrichmentErrors.WithLabelValues(source).Inc()
			e.logger.Warn().Err(err).Str("source", source).Msg("enrichment source failed")
			return
		}
		res.set(func() { res.Answered[source] = true })
	}()
}

func (e *Enricher) spawnSimilarity(wg *sync.WaitGroup, res *Result, dctx *decision.Context) {
	if e.similarity == nil {
		return
	}
	e.spawn(wg, res, SourceSimilarity, func(sctx context.Context) error {
		m, err := e.similarity.FindSimilar(sctx, dctx, e.opts.SimilarityK)
		if err == nil {
			res.set(func() { res.Similar = m })
		}
		return err
	}, e.opts.SimilarityTimeout)
}

func (e *Enricher) spawnStreaming(wg *sync.WaitGroup, res *Result, dctx *decision.Context) {
	if e.streaming == nil {
		return
	}
	// The reader enforces its own timeout; give the goroutine a generous cap.
	e.spawn(wg, res, SourceStreaming, func(sctx context.Context) error {
		agg, err := e.streaming.Read(sctx, dctx.Subject())
		if err == nil {
			res.set(func() { res.Streaming = agg })
		}
		return err
	}, time.Second)
}
