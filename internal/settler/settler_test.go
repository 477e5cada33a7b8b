package settler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/resolver"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/settler"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/store"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/wager"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

var kickoff = time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Second)

type fakeScores struct {
	games []models.GameResult
	err   error
	calls int
}

func (f *fakeScores) Results(ctx context.Context, sportKey string, day time.Time) ([]models.GameResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.GameResult
	for _, g := range f.games {
		if g.SportKey == sportKey {
			out = append(out, g)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	settled []models.Opportunity
}

func (r *recordingPublisher) PublishDetected(ctx context.Context, opp models.Opportunity) error {
	return nil
}

func (r *recordingPublisher) PublishSettled(ctx context.Context, opp models.Opportunity) error {
	r.settled = append(r.settled, opp)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func newStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func seed(t *testing.T, st *store.Store, sport, match, home, away, selection string, stake, price float64) int64 {
	t.Helper()
	id, err := st.Upsert(context.Background(), models.Candidate{
		MatchID:      match,
		SportKey:     sport,
		HomeTeam:     home,
		AwayTeam:     away,
		CommenceTime: kickoff,
		MarketKey:    models.MarketSpread,
		BookKey:      "draftkings",
		Selection:    selection,
		SelectionKey: wager.Key(selection),
		DecimalOdds:  price,
		ModelProb:    0.55,
		BlendedProb:  0.52,
		Edge:         0.04,
		Stake:        stake,
		DetectedAt:   kickoff.Add(-5 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Upsert(%s) error = %v", selection, err)
	}
	return id
}

func final(sport, id, home, away string, hs, as int) models.GameResult {
	return models.GameResult{
		GameID:       id,
		SportKey:     sport,
		HomeTeam:     home,
		AwayTeam:     away,
		CommenceTime: kickoff,
		Status:       models.GameStatusFinal,
		HomeScore:    hs,
		AwayScore:    as,
	}
}

func newSettler(t *testing.T, st *store.Store, scores *fakeScores, pub contracts.EventPublisher) *settler.Settler {
	t.Helper()
	cfg := config.Default()
	cfg.Providers.RetryDelay = time.Millisecond
	return settler.New(cfg, st, scores, resolver.Default(nil), pub, nil, zaptest.NewLogger(t))
}

func TestRunSettlesFinalGames(t *testing.T) {
	const nba = "basketball_nba"
	st := newStore(t)
	ctx := context.Background()

	homeSpread := seed(t, st, nba, "evt-1", "Boston Celtics", "New York Knicks", "Boston Celtics -2.5", 10, 1.91)
	awaySpread := seed(t, st, nba, "evt-1", "Boston Celtics", "New York Knicks", "New York Knicks +2.5", 10, 1.91)
	over := seed(t, st, nba, "evt-1", "Boston Celtics", "New York Knicks", "Over 215.5", 8, 2.00)
	live := seed(t, st, nba, "evt-2", "Miami Heat", "Chicago Bulls", "Miami Heat ML", 5, 1.80)
	unmatched := seed(t, st, nba, "evt-3", "Denver Nuggets", "Utah Jazz", "Denver Nuggets ML", 5, 1.50)
	garbled := seed(t, st, nba, "evt-1", "Boston Celtics", "New York Knicks", "Celtics (big favorite)", 5, 1.50)

	scores := &fakeScores{games: []models.GameResult{
		final(nba, "evt-1", "Boston Celtics", "New York Knicks", 110, 107),
		{GameID: "evt-2", SportKey: nba, HomeTeam: "Miami Heat", AwayTeam: "Chicago Bulls", CommenceTime: kickoff, Status: models.GameStatusLive, HomeScore: 50, AwayScore: 48},
	}}
	pub := &recordingPublisher{}
	s := newSettler(t, st, scores, pub)

	report, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Pending != 6 {
		t.Errorf("Pending = %d, want 6", report.Pending)
	}
	if report.Settled[models.OutcomeWon] != 2 || report.Settled[models.OutcomeLost] != 1 {
		t.Errorf("settled = %v, want 2 WON and 1 LOST", report.Settled)
	}
	if report.Unmatched != 1 || report.NotReady != 1 || report.Flagged != 1 {
		t.Errorf("unmatched/not_ready/flagged = %d/%d/%d, want 1/1/1", report.Unmatched, report.NotReady, report.Flagged)
	}
	if scores.calls != config.Default().Settlement.LookbackDays {
		t.Errorf("score calls = %d, want one per lookback day", scores.calls)
	}

	tests := []struct {
		name       string
		id         int64
		wantOut    models.Outcome
		wantProfit *float64
		wantReview bool
	}{
		{"home covers -2.5 on a 3 point win", homeSpread, models.OutcomeWon, ptr(9.10), false},
		{"away +2.5 loses", awaySpread, models.OutcomeLost, ptr(-10), false},
		{"over 215.5 on 217", over, models.OutcomeWon, ptr(8), false},
		{"live game stays pending", live, models.OutcomePending, nil, false},
		{"unmatched stays pending", unmatched, models.OutcomePending, nil, false},
		{"unparseable is flagged", garbled, models.OutcomePending, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.Get(ctx, tt.id)
			if err != nil {
				t.Fatal(err)
			}
			if got.Outcome != tt.wantOut {
				t.Errorf("outcome = %s, want %s", got.Outcome, tt.wantOut)
			}
			switch {
			case tt.wantProfit == nil && got.Profit != nil:
				t.Errorf("profit = %v, want nil", *got.Profit)
			case tt.wantProfit != nil && (got.Profit == nil || *got.Profit != *tt.wantProfit):
				t.Errorf("profit = %v, want %v", got.Profit, *tt.wantProfit)
			}
			if got.NeedsReview != tt.wantReview {
				t.Errorf("needs_review = %v, want %v", got.NeedsReview, tt.wantReview)
			}
			if tt.wantOut.Terminal() && got.SettledAt == nil {
				t.Error("settled_at not recorded")
			}
		})
	}

	if len(pub.settled) != 3 {
		t.Errorf("published %d settlements, want 3", len(pub.settled))
	}
}

func TestRunNeverChangesAVerdict(t *testing.T) {
	const nhl = "icehockey_nhl"
	st := newStore(t)
	ctx := context.Background()
	id := seed(t, st, nhl, "g-1", "Boston Bruins", "Toronto Maple Leafs", "Boston Bruins ML", 10, 2.20)

	scores := &fakeScores{games: []models.GameResult{final(nhl, "g-1", "Boston Bruins", "Toronto Maple Leafs", 3, 2)}}
	s := newSettler(t, st, scores, &recordingPublisher{})
	if _, err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}

	// a corrected feed reporting the opposite result must not flip the row
	scores.games = []models.GameResult{final(nhl, "g-1", "Boston Bruins", "Toronto Maple Leafs", 2, 3)}
	report, err := s.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Pending != 0 {
		t.Errorf("second pass saw %d pending, want 0", report.Pending)
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Outcome != models.OutcomeWon || got.Profit == nil || *got.Profit != 12 {
		t.Errorf("got %s / %v, want WON / 12", got.Outcome, got.Profit)
	}
}

func TestRunUsesOperatorOverride(t *testing.T) {
	const nfl = "americanfootball_nfl"
	st := newStore(t)
	ctx := context.Background()
	id := seed(t, st, nfl, "f-1", "Kansas City Chiefs", "Buffalo Bills", "Kansas City Chiefs -3.5", 10, 1.91)

	stake, odds := 25.0, 2.0
	if _, err := st.Confirm(ctx, id, &stake, &odds); err != nil {
		t.Fatal(err)
	}

	scores := &fakeScores{games: []models.GameResult{final(nfl, "f-1", "Kansas City Chiefs", "Buffalo Bills", 27, 20)}}
	if _, err := newSettler(t, st, scores, nil).Run(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Profit == nil || *got.Profit != 25 {
		t.Errorf("profit = %v, want 25 from the confirmed stake and price", got.Profit)
	}
}

func TestRunFlagsUnsupportedFirstHalf(t *testing.T) {
	const nhl = "icehockey_nhl"
	st := newStore(t)
	ctx := context.Background()
	id := seed(t, st, nhl, "g-1", "Boston Bruins", "Toronto Maple Leafs", "1H Boston Bruins ML", 10, 2.20)

	scores := &fakeScores{games: []models.GameResult{final(nhl, "g-1", "Boston Bruins", "Toronto Maple Leafs", 3, 2)}}
	s := newSettler(t, st, scores, nil)
	report, err := s.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Flagged != 1 {
		t.Errorf("Flagged = %d, want 1", report.Flagged)
	}

	got, _ := st.Get(ctx, id)
	if got.Outcome != models.OutcomePending || got.ReviewReason != settler.ReasonPeriodUnsupported {
		t.Errorf("got %s / %q", got.Outcome, got.ReviewReason)
	}

	// already flagged with the same reason, nothing new to write
	report, err = s.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Flagged != 0 {
		t.Errorf("second pass Flagged = %d, want 0", report.Flagged)
	}
}

func TestRunRollsForwardOnProviderOutage(t *testing.T) {
	const nba = "basketball_nba"
	st := newStore(t)
	ctx := context.Background()
	id := seed(t, st, nba, "evt-1", "Boston Celtics", "New York Knicks", "Boston Celtics ML", 10, 1.91)

	scores := &fakeScores{err: errors.New("503 from scores feed")}
	report, err := newSettler(t, st, scores, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if report.Unmatched != 1 {
		t.Errorf("Unmatched = %d, want 1", report.Unmatched)
	}

	got, _ := st.Get(ctx, id)
	if got.Outcome != models.OutcomePending {
		t.Errorf("outcome = %s, want PENDING", got.Outcome)
	}
}

func TestFindGame(t *testing.T) {
	m := resolver.Default(nil)
	opp := models.Opportunity{
		MatchID:      "odds-123",
		HomeTeam:     "Manchester United",
		AwayTeam:     "Tottenham Hotspur",
		CommenceTime: kickoff,
	}

	tests := []struct {
		name   string
		games  []models.GameResult
		wantID string
		wantOK bool
	}{
		{
			name:   "same id wins",
			games:  []models.GameResult{{GameID: "odds-123", HomeTeam: "Someone", AwayTeam: "Else"}},
			wantID: "odds-123",
			wantOK: true,
		},
		{
			name: "approximate names within window",
			games: []models.GameResult{
				{GameID: "s-1", HomeTeam: "Man Utd", AwayTeam: "Tottenham", CommenceTime: kickoff.Add(2 * time.Hour)},
			},
			wantID: "s-1",
			wantOK: true,
		},
		{
			name: "closest kickoff among rematches",
			games: []models.GameResult{
				{GameID: "far", HomeTeam: "Manchester United", AwayTeam: "Tottenham Hotspur", CommenceTime: kickoff.Add(30 * time.Hour)},
				{GameID: "near", HomeTeam: "Manchester United", AwayTeam: "Tottenham Hotspur", CommenceTime: kickoff.Add(time.Hour)},
			},
			wantID: "near",
			wantOK: true,
		},
		{
			name: "outside window",
			games: []models.GameResult{
				{GameID: "s-1", HomeTeam: "Manchester United", AwayTeam: "Tottenham Hotspur", CommenceTime: kickoff.Add(72 * time.Hour)},
			},
		},
		{
			name: "only one side matches",
			games: []models.GameResult{
				{GameID: "s-1", HomeTeam: "Manchester United", AwayTeam: "Arsenal", CommenceTime: kickoff},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := settler.FindGame(m, opp, tt.games, 36*time.Hour)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.GameID != tt.wantID {
				t.Errorf("game = %s, want %s", got.GameID, tt.wantID)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }
