package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store on an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) ListRules(ctx context.Context) ([]rules.Rule, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, rule_type, version, condition_expression,
		       action, route_to, backoff_seconds, action_summary, priority, is_active
		FROM approval_rules
		ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, rule_type, version, condition_expression,
		       action, route_to, backoff_seconds, action_summary, priority, is_active
		FROM approval_rules
		WHERE id = $1`, id)
	r, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return &r, nil
}

func (p *PostgresStore) UpsertRule(ctx context.Context, r rules.Rule) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO approval_rules
			(id, name, rule_type, version, condition_expression,
			 action, route_to, backoff_seconds, action_summary, priority, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			rule_type = EXCLUDED.rule_type,
			version = approval_rules.version + 1,
			condition_expression = EXCLUDED.condition_expression,
			action = EXCLUDED.action,
			route_to = EXCLUDED.route_to,
			backoff_seconds = EXCLUDED.backoff_seconds,
			action_summary = EXCLUDED.action_summary,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
		r.ID, r.Name, string(r.Kind), r.Version, nullText(r.Condition),
		string(r.Action), nullText(r.RouteTo), r.BackoffSeconds, r.Summary, r.Priority, r.Active)
	if err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteRule(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM approval_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListConfig(ctx context.Context) ([]ConfigEntry, error) {
	rows, err := p.pool.Query(ctx, `SELECT key, value, updated_at FROM decision_config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()

	var out []ConfigEntry
	for rows.Next() {
		var e ConfigEntry
		var updated pgtype.Timestamptz
		if err := rows.Scan(&e.Key, &e.Value, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt = updated.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListDeclineCodes(ctx context.Context) ([]DeclineCode, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT code, label, category, default_backoff_seconds, max_attempts, is_active
		FROM retryable_decline_codes
		WHERE is_active = true
		ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list decline codes: %w", err)
	}
	defer rows.Close()

	var out []DeclineCode
	for rows.Next() {
		var c DeclineCode
		if err := rows.Scan(&c.Code, &c.Label, &c.Category, &c.BackoffSeconds, &c.MaxAttempts, &c.Active); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListRoutes(ctx context.Context) ([]RouteScore, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT route_name, approval_rate_pct, avg_latency_ms, cost_score, is_active
		FROM route_performance
		WHERE is_active = true
		ORDER BY approval_rate_pct DESC`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var out []RouteScore
	for rows.Next() {
		var r RouteScore
		if err := rows.Scan(&r.RouteName, &r.ApprovalRatePct, &r.AvgLatencyMs, &r.CostScore, &r.Active); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) StreamingFeatures(ctx context.Context, entityID string) (map[string]float64, error) {
	// Latest value per feature for the entity, written by the streaming
	// aggregation job.
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT ON (feature_name) feature_name, feature_value
		FROM online_features
		WHERE entity_id = $1 AND source = 'streaming' AND feature_value IS NOT NULL
		ORDER BY feature_name, id DESC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("streaming features: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (p *PostgresStore) InsertDecision(ctx context.Context, rec DecisionRecord) error {
	request, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	response, err := json.Marshal(rec.Decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO decision_log (decision_id, decision_type, request, response, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (decision_id) DO NOTHING`,
		rec.Decision.ID, string(rec.Decision.Kind), request, response, rec.Decision.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (p *PostgresStore) InsertOutcome(ctx context.Context, rec decision.OutcomeRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO decision_outcomes
			(decision_id, decision_type, outcome, outcome_code, outcome_reason, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.DecisionID, string(rec.Kind), rec.Outcome,
		nullText(rec.OutcomeCode), nullText(rec.OutcomeReason), rec.LatencyMs, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (p *PostgresStore) InsertAuditEvent(ctx context.Context, e AuditEvent) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO rule_audit_log
			(occurred_at, request_id, actor, ip_address, user_agent, action,
			 rule_id, rule_name, before_state, after_state, changes, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.OccurredAt, nullText(e.RequestID), e.Actor, nullText(e.IPAddress),
		nullText(e.UserAgent), e.Action, e.RuleID, nullText(e.RuleName),
		e.BeforeState, e.AfterState, e.Changes, e.Status, nullText(e.ErrorMessage))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func scanRule(row pgx.Row) (rules.Rule, error) {
	var r rules.Rule
	var kind, action string
	var condition, routeTo pgtype.Text
	if err := row.Scan(&r.ID, &r.Name, &kind, &r.Version, &condition,
		&action, &routeTo, &r.BackoffSeconds, &r.Summary, &r.Priority, &r.Active); err != nil {
		return rules.Rule{}, err
	}
	r.Kind = decision.Kind(kind)
	r.Action = decision.Action(action)
	if condition.Valid {
		r.Condition = condition.String
	}
	if routeTo.Valid {
		r.RouteTo = routeTo.String
	}
	return r, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
