package enrichment

import (
	"context"
	"testing"
	"time"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/feature"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/scoring"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/similarity"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/streaming"
)

type stubScoring struct {
	delay time.Duration
	err   error
}

func (s *stubScoring) wait(ctx context.Context) error {
	if s.delay == 0 {
		return s.err
	}
	select {
	case <-time.After(s.delay):
		return s.err
	case <-ctx.Done():
		return scoring.ErrTimeout
	}
}

func (s *stubScoring) ScoreApproval(ctx context.Context, vec feature.Vector) (*scoring.ApprovalScore, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return &scoring.ApprovalScore{Probability: 0.9, ShouldApprove: true}, nil
}

func (s *stubScoring) ScoreRisk(ctx context.Context, vec feature.Vector) (*scoring.RiskScore, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return &scoring.RiskScore{Score: 0.2, Tier: "low"}, nil
}

func (s *stubScoring) ScoreRetry(ctx context.Context, vec feature.Vector) (*scoring.RetryScore, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return &scoring.RetryScore{ShouldRetry: true, SuccessProbability: 0.7}, nil
}

func (s *stubScoring) ScoreRouting(ctx context.Context, vec feature.Vector) (*scoring.RoutingScore, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return &scoring.RoutingScore{RecommendedRoute: "acquirer_a", Confidence: 0.8}, nil
}

type stubSimilarity struct {
	delay time.Duration
	err   error
}

func (s *stubSimilarity) FindSimilar(ctx context.Context, dctx *decision.Context, k int) (*similarity.Matches, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, similarity.ErrTimeout
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &similarity.Matches{Count: 3, AvgApprovalRate: 92, TopRoute: "acquirer_a"}, nil
}

type stubStreaming struct {
	err error
}

func (s *stubStreaming) Read(ctx context.Context, subjectKey string) (*streaming.Aggregates, error) {
	if s.err != nil {
		return nil, s.err
	}
	rate := 0.95
	return &streaming.Aggregates{ApprovalRate5m: &rate}, nil
}

func testContext() *decision.Context {
	fraud, trust := 0.2, 0.9
	return &decision.Context{
		TransactionID: "tx-1", MerchantID: "m-1", AmountMinor: 10000,
		Currency: "BRL", Network: "visa",
		FraudScore: &fraud, DeviceTrustScore: &trust,
	}
}

func TestEnrichAllSourcesAnswer(t *testing.T) {
	e := New(&stubScoring{}, &stubSimilarity{}, &stubStreaming{}, Options{})
	res := e.EnrichAuthentication(context.Background(), testContext(), feature.Vector{})

	if res.Approval == nil || res.Risk == nil || res.Similar == nil || res.Streaming == nil {
		t.Fatalf("missing results: %+v", res)
	}
	if !res.Complete(SourceApproval, SourceRisk, SourceSimilarity, SourceStreaming) {
		t.Errorf("answered = %v, want all sources", res.Answered)
	}
	scores := res.ModelScores()
	if scores["approval_probability"] != 0.9 || scores["risk_score"] != 0.2 {
		t.Errorf("model scores = %v", scores)
	}
}

// The fan-out must join in roughly max(per-source timeout), not the sum.
func TestEnrichWallClockBoundedByMaxTimeout(t *testing.T) {
	slow := 150 * time.Millisecond
	e := New(
		&stubScoring{delay: time.Second},
		&stubSimilarity{delay: time.Second},
		&stubStreaming{},
		Options{ScoringTimeout: slow, SimilarityTimeout: slow},
	)

	start := time.Now()
	res := e.EnrichAuthentication(context.Background(), testContext(), feature.Vector{})
	elapsed := time.Since(start)

	if elapsed > 3*slow {
		t.Errorf("fan-out took %v, want ~%v", elapsed, slow)
	}
	if res.Approval != nil || res.Risk != nil || res.Similar != nil {
		t.Error("timed-out sources produced results")
	}
	if res.Streaming == nil {
		t.Error("fast source was lost behind slow ones")
	}
}

func TestEnrichAllSourcesFailStillReturns(t *testing.T) {
	e := New(
		&stubScoring{err: scoring.ErrUnavailable},
		&stubSimilarity{err: similarity.ErrUnavailable},
		&stubStreaming{err: context.DeadlineExceeded},
		Options{},
	)
	res := e.EnrichRetry(context.Background(), testContext(), feature.Vector{})

	if res == nil {
		t.Fatal("nil result when every source failed")
	}
	if len(res.Answered) != 0 {
		t.Errorf("answered = %v, want none", res.Answered)
	}
	if res.Retry != nil || res.Similar != nil || res.Streaming != nil {
		t.Error("failed sources left partial results")
	}
}

func TestEnrichNilClientsSkipped(t *testing.T) {
	e := New(nil, nil, nil, Options{})
	res := e.EnrichRouting(context.Background(), testContext(), feature.Vector{})
	if len(res.Answered) != 0 {
		t.Errorf("answered = %v, want none with no clients", res.Answered)
	}
}
