// Package store persists opportunities in PostgreSQL or SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

var (
	// ErrNotFound is returned when no opportunity has the requested id
	ErrNotFound = errors.New("opportunity not found")

	// ErrSportConflict is returned when a candidate reuses an existing key
	// under a different sport
	ErrSportConflict = errors.New("opportunity key already recorded under another sport")

	// ErrAlreadySettled is returned when a write targets a settled opportunity
	ErrAlreadySettled = errors.New("opportunity already settled")

	// ErrStarted is returned when a pending opportunity's game has kicked off;
	// its acceptance-time fields are frozen from then on
	ErrStarted = errors.New("opportunity game already started")
)

const defaultListLimit = 100
const maxListLimit = 1000

const columns = `id, match_id, sport_key, home_team, away_team, matchup, commence_time,
	market_key, book_key, selection, selection_key, decimal_odds, model_prob, blended_prob,
	edge, stake, sharp_score, detected_at, outcome, profit, settled_at, closing_odds,
	needs_review, review_reason, confirmed, confirmed_stake, confirmed_odds`

// Store is the opportunity ledger
type Store struct {
	db      *sql.DB
	dialect dialect
}

var _ contracts.OpportunityStore = (*Store)(nil)

// Open connects to the configured database and verifies the connection
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	var (
		d      dialect
		driver string
	)
	switch cfg.Driver {
	case "postgres":
		d, driver = dialectPostgres, "postgres"
	case "sqlite":
		d, driver = dialectSQLite, "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if d == dialectSQLite {
		// one connection keeps in-memory databases alive and writes serialized
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if d == dialectSQLite && !strings.Contains(cfg.DSN, ":memory:") {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	return &Store{db: db, dialect: d}, nil
}

// Migrate creates the schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema()); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

// Upsert records a candidate keyed by (match, selection). An existing
// pending row only has its acceptance-time fields refreshed, and only
// while its kickoff is still after the candidate's detection time;
// settlement, closing and override fields are never touched.
func (s *Store) Upsert(ctx context.Context, c models.Candidate) (int64, error) {
	query := s.q(`
		INSERT INTO opportunities (
			match_id, selection_key, selection, sport_key, home_team, away_team, matchup,
			commence_time, market_key, book_key, decimal_odds, model_prob, blended_prob,
			edge, stake, sharp_score, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id, selection_key) DO UPDATE SET
			book_key = excluded.book_key,
			decimal_odds = excluded.decimal_odds,
			model_prob = excluded.model_prob,
			blended_prob = excluded.blended_prob,
			edge = excluded.edge,
			stake = excluded.stake,
			sharp_score = excluded.sharp_score,
			detected_at = excluded.detected_at
		WHERE opportunities.sport_key = excluded.sport_key
			AND opportunities.outcome = 'PENDING'
			AND opportunities.commence_time > ?
		RETURNING id
	`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		c.MatchID,
		c.SelectionKey,
		c.Selection,
		c.SportKey,
		c.HomeTeam,
		c.AwayTeam,
		c.Matchup(),
		ts(c.CommenceTime),
		c.MarketKey,
		c.BookKey,
		c.DecimalOdds,
		c.ModelProb,
		c.BlendedProb,
		c.Edge,
		c.Stake,
		toNull(c.SharpScore),
		ts(c.DetectedAt),
		ts(c.DetectedAt),
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to upsert opportunity %s/%s: %w", c.MatchID, c.SelectionKey, err)
	}

	// the conflict update was filtered out; find out why
	var (
		existingID    int64
		existingSport string
		outcome       string
	)
	err = s.db.QueryRowContext(ctx,
		s.q(`SELECT id, sport_key, outcome FROM opportunities WHERE match_id = ? AND selection_key = ?`),
		c.MatchID, c.SelectionKey,
	).Scan(&existingID, &existingSport, &outcome)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect conflicting opportunity %s/%s: %w", c.MatchID, c.SelectionKey, err)
	}
	if existingSport != c.SportKey {
		return existingID, fmt.Errorf("%w: %s/%s is %s, candidate is %s",
			ErrSportConflict, c.MatchID, c.SelectionKey, existingSport, c.SportKey)
	}
	if outcome == string(models.OutcomePending) {
		return existingID, fmt.Errorf("%w: %s/%s", ErrStarted, c.MatchID, c.SelectionKey)
	}
	return existingID, fmt.Errorf("%w: %s/%s is %s", ErrAlreadySettled, c.MatchID, c.SelectionKey, outcome)
}

// Get returns one opportunity
func (s *Store) Get(ctx context.Context, id int64) (*models.Opportunity, error) {
	return s.get(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) get(ctx context.Context, db queryer, id int64) (*models.Opportunity, error) {
	row := db.QueryRowContext(ctx, s.q(`SELECT `+columns+` FROM opportunities WHERE id = ?`), id)
	opp, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity %d: %w", id, err)
	}
	return opp, nil
}

// List returns opportunities newest first
func (s *Store) List(ctx context.Context, f contracts.OpportunityFilter) ([]models.Opportunity, error) {
	var (
		where []string
		args  []any
	)
	if f.Outcome != nil {
		where = append(where, "outcome = ?")
		args = append(args, string(*f.Outcome))
	}
	if f.SportKey != "" {
		where = append(where, "sport_key = ?")
		args = append(args, f.SportKey)
	}
	if f.Since != nil {
		where = append(where, "detected_at >= ?")
		args = append(args, ts(*f.Since))
	}
	if f.Until != nil {
		where = append(where, "detected_at <= ?")
		args = append(args, ts(*f.Until))
	}

	query := `SELECT ` + columns + ` FROM opportunities`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query += ` ORDER BY detected_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return s.queryOpportunities(ctx, query, args...)
}

// PendingStarted returns pending opportunities whose kickoff is at or before now
func (s *Store) PendingStarted(ctx context.Context, now time.Time) ([]models.Opportunity, error) {
	return s.queryOpportunities(ctx,
		`SELECT `+columns+` FROM opportunities
		WHERE outcome = 'PENDING' AND commence_time <= ?
		ORDER BY commence_time, id`,
		ts(now))
}

// PendingKickoffBetween returns pending opportunities with kickoff in (from, to]
func (s *Store) PendingKickoffBetween(ctx context.Context, from, to time.Time) ([]models.Opportunity, error) {
	return s.queryOpportunities(ctx,
		`SELECT `+columns+` FROM opportunities
		WHERE outcome = 'PENDING' AND commence_time > ? AND commence_time <= ?
		ORDER BY commence_time, id`,
		ts(from), ts(to))
}

func (s *Store) queryOpportunities(ctx context.Context, query string, args ...any) ([]models.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	defer rows.Close()

	opps := []models.Opportunity{}
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		opps = append(opps, *opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating opportunities: %w", err)
	}
	return opps, nil
}

// Settle writes a terminal outcome, profit and settlement time in one
// statement. It reports false when the row was no longer pending.
func (s *Store) Settle(ctx context.Context, id int64, outcome models.Outcome, profit float64, at time.Time) (bool, error) {
	if !outcome.Terminal() {
		return false, fmt.Errorf("cannot settle opportunity %d as %s", id, outcome)
	}
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE opportunities
		SET outcome = ?, profit = ?, settled_at = ?, needs_review = FALSE, review_reason = ''
		WHERE id = ? AND outcome = 'PENDING'
	`), string(outcome), profit, ts(at), id)
	if err != nil {
		return false, fmt.Errorf("failed to settle opportunity %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to settle opportunity %d: %w", id, err)
	}
	return n == 1, nil
}

// FlagReview marks a pending opportunity for manual review
func (s *Store) FlagReview(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE opportunities SET needs_review = TRUE, review_reason = ?
		WHERE id = ? AND outcome = 'PENDING'
	`), reason, id)
	if err != nil {
		return fmt.Errorf("failed to flag opportunity %d: %w", id, err)
	}
	return nil
}

// RecordClosingOdds stores the closing price of a pending opportunity
func (s *Store) RecordClosingOdds(ctx context.Context, id int64, price float64) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE opportunities SET closing_odds = ?
		WHERE id = ? AND outcome = 'PENDING'
	`), price, id)
	if err != nil {
		return fmt.Errorf("failed to record closing odds for %d: %w", id, err)
	}
	return nil
}

// Confirm records an operator override. Nil values keep any previous override.
func (s *Store) Confirm(ctx context.Context, id int64, stake, odds *float64) (*models.Opportunity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	opp, err := s.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if opp.Outcome != models.OutcomePending {
		return nil, fmt.Errorf("%w: %d is %s", ErrAlreadySettled, id, opp.Outcome)
	}

	_, err = tx.ExecContext(ctx, s.q(`
		UPDATE opportunities
		SET confirmed = TRUE,
			confirmed_stake = COALESCE(?, confirmed_stake),
			confirmed_odds = COALESCE(?, confirmed_odds)
		WHERE id = ?
	`), toNull(stake), toNull(odds), id)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm opportunity %d: %w", id, err)
	}

	opp, err = s.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return opp, nil
}

// PurgeStalePending deletes pending opportunities whose kickoff is before cutoff
func (s *Store) PurgeStalePending(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM opportunities WHERE outcome = 'PENDING' AND commence_time < ?`),
		ts(before))
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale opportunities: %w", err)
	}
	return res.RowsAffected()
}

// SettledStats summarizes won and lost opportunities for a sport
func (s *Store) SettledStats(ctx context.Context, sportKey string) (models.SettledStats, error) {
	var stats models.SettledStats
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'WON' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(model_prob), 0)
		FROM opportunities
		WHERE sport_key = ? AND outcome IN ('WON', 'LOST')
	`), sportKey).Scan(&stats.Samples, &stats.Wins, &stats.PredictedWins)
	if err != nil {
		return stats, fmt.Errorf("failed to load settled stats for %s: %w", sportKey, err)
	}
	return stats, nil
}

// BucketPerformance groups settled opportunities since a cutoff by edge bucket
func (s *Store) BucketPerformance(ctx context.Context, sportKey string, bounds []float64, since time.Time) ([]models.BucketPerformance, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT edge, stake, confirmed, confirmed_stake, profit
		FROM opportunities
		WHERE sport_key = ? AND outcome IN ('WON', 'LOST', 'PUSH') AND settled_at >= ?
	`), sportKey, ts(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query bucket performance for %s: %w", sportKey, err)
	}
	defer rows.Close()

	byBucket := make(map[int]*models.BucketPerformance)
	for rows.Next() {
		var (
			edge, stake    float64
			confirmed      bool
			confirmedStake sql.NullFloat64
			profit         sql.NullFloat64
		)
		if err := rows.Scan(&edge, &stake, &confirmed, &confirmedStake, &profit); err != nil {
			return nil, fmt.Errorf("failed to scan bucket row: %w", err)
		}
		if confirmed && confirmedStake.Valid {
			stake = confirmedStake.Float64
		}
		b := models.EdgeBucket(bounds, edge)
		bp, ok := byBucket[b]
		if !ok {
			bp = &models.BucketPerformance{Bucket: b}
			byBucket[b] = bp
		}
		bp.Samples++
		bp.Staked += stake
		bp.Profit += profit.Float64
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bucket rows: %w", err)
	}

	out := make([]models.BucketPerformance, 0, len(byBucket))
	for i := -1; i < len(bounds); i++ {
		if bp, ok := byBucket[i]; ok {
			out = append(out, *bp)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(row rowScanner) (*models.Opportunity, error) {
	var (
		opp            models.Opportunity
		outcome        string
		sharp          sql.NullFloat64
		profit         sql.NullFloat64
		settledAt      sql.NullTime
		closing        sql.NullFloat64
		confirmedStake sql.NullFloat64
		confirmedOdds  sql.NullFloat64
	)
	err := row.Scan(
		&opp.ID,
		&opp.MatchID,
		&opp.SportKey,
		&opp.HomeTeam,
		&opp.AwayTeam,
		&opp.Matchup,
		&opp.CommenceTime,
		&opp.MarketKey,
		&opp.BookKey,
		&opp.Selection,
		&opp.SelectionKey,
		&opp.DecimalOdds,
		&opp.ModelProb,
		&opp.BlendedProb,
		&opp.Edge,
		&opp.Stake,
		&sharp,
		&opp.DetectedAt,
		&outcome,
		&profit,
		&settledAt,
		&closing,
		&opp.NeedsReview,
		&opp.ReviewReason,
		&opp.Confirmed,
		&confirmedStake,
		&confirmedOdds,
	)
	if err != nil {
		return nil, err
	}

	opp.Outcome = models.Outcome(outcome)
	opp.CommenceTime = opp.CommenceTime.UTC()
	opp.DetectedAt = opp.DetectedAt.UTC()
	opp.SharpScore = nullFloat(sharp)
	opp.Profit = nullFloat(profit)
	opp.ClosingOdds = nullFloat(closing)
	opp.ConfirmedStake = nullFloat(confirmedStake)
	opp.ConfirmedOdds = nullFloat(confirmedOdds)
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		opp.SettledAt = &t
	}
	return &opp, nil
}

func toNull(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
