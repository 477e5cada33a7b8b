package feed_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/feed"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// memoryRedis answers reads from plain maps the way a Redis server would
type memoryRedis struct {
	strings map[string]string
	hashes  map[string]map[string]string
	err     error
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.hashes[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) HKeys(ctx context.Context, key string) *redis.StringSliceCmd {
	if m.err != nil {
		return redis.NewStringSliceResult(nil, m.err)
	}
	var keys []string
	for k := range m.hashes[key] {
		keys = append(keys, k)
	}
	return redis.NewStringSliceResult(keys, nil)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSnapshotAndResults(t *testing.T) {
	price := 2.10
	kickoff := time.Date(2026, 1, 10, 0, 30, 0, 0, time.UTC)
	k := feed.Keys{}

	mem := &memoryRedis{strings: map[string]string{
		k.Odds("basketball_nba"): mustJSON(t, []models.RawQuote{{
			MatchID:      "evt-1",
			HomeTeam:     "Boston Celtics",
			AwayTeam:     "New York Knicks",
			CommenceTime: kickoff,
			BookKey:      "fanduel",
			MarketKey:    "h2h",
			OutcomeName:  "Boston Celtics",
			DecimalPrice: &price,
		}}),
		k.Scores("basketball_nba", kickoff): mustJSON(t, []models.GameResult{{
			GameID:    "g-1",
			HomeTeam:  "Boston Celtics",
			AwayTeam:  "New York Knicks",
			HomeScore: 103,
			AwayScore: 100,
			Status:    models.GameStatusFinal,
		}}),
		k.Odds("icehockey_nhl"): "{not json",
	}}
	src := feed.NewRedis(mem, "")
	ctx := context.Background()

	quotes, err := src.Snapshot(ctx, "basketball_nba")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(quotes) != 1 || quotes[0].MatchID != "evt-1" || quotes[0].DecimalPrice == nil || *quotes[0].DecimalPrice != 2.10 {
		t.Errorf("Snapshot() = %+v", quotes)
	}
	if !quotes[0].CommenceTime.Equal(kickoff) {
		t.Errorf("commence time = %v, want %v", quotes[0].CommenceTime, kickoff)
	}

	games, err := src.Results(ctx, "basketball_nba", kickoff)
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if len(games) != 1 || games[0].GameID != "g-1" || !games[0].IsFinal() {
		t.Errorf("Results() = %+v", games)
	}

	empty, err := src.Snapshot(ctx, "soccer_epl")
	if err != nil || len(empty) != 0 {
		t.Errorf("missing snapshot = %v, %v; want empty, nil", empty, err)
	}
	if _, err := src.Snapshot(ctx, "icehockey_nhl"); err == nil {
		t.Error("corrupt snapshot decoded without error")
	}
}

func TestPredict(t *testing.T) {
	k := feed.Keys{Prefix: "fx:"}
	point := 215.5
	total := models.MatchContext{
		MatchID: "evt-1", SportKey: "basketball_nba",
		MarketKey: models.MarketTotal, OutcomeName: "Over", Point: &point,
	}
	ml := models.MatchContext{
		MatchID: "evt-1", SportKey: "basketball_nba",
		MarketKey: models.MarketMoneyline, OutcomeName: "Boston Celtics",
	}
	junk := models.MatchContext{
		MatchID: "evt-1", SportKey: "basketball_nba",
		MarketKey: models.MarketMoneyline, OutcomeName: "New York Knicks",
	}

	mem := &memoryRedis{hashes: map[string]map[string]string{
		k.Model("basketball_nba", "evt-1"): {
			feed.ModelField(total): " 0.61 ",
			feed.ModelField(ml):    "0.55",
			feed.ModelField(junk):  "n/a",
		},
	}}
	src := feed.NewRedis(mem, "fx:")
	ctx := context.Background()

	tests := []struct {
		name    string
		match   models.MatchContext
		want    *float64
		wantErr bool
	}{
		{"lined market", total, ptr(0.61), false},
		{"moneyline", ml, ptr(0.55), false},
		{"no opinion", models.MatchContext{MatchID: "evt-2", SportKey: "basketball_nba", MarketKey: "h2h", OutcomeName: "x"}, nil, false},
		{"unparseable value", junk, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.Predict(ctx, tt.match)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Predict() error = %v, wantErr %v", err, tt.wantErr)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Predict() = %v, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("Predict() = %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestRatingsAndSplits(t *testing.T) {
	k := feed.Keys{}
	mem := &memoryRedis{hashes: map[string]map[string]string{
		k.Ratings("basketball_nba"): {
			"Boston Celtics":  `{"offense":118.2,"defense":109.5,"tempo":98.1}`,
			"New York Knicks": `{"team":"New York Knicks","sport":"basketball_nba","offense":115}`,
		},
		k.Splits("basketball_nba", "evt-1"): {
			feed.SplitField("Boston Celtics  ML"): `{"money":72,"tickets":40}`,
			feed.SplitField("Over 215.5"):         `{"money":0.3}`,
		},
	}}
	src := feed.NewRedis(mem, "")
	ctx := context.Background()

	rating, err := src.Rating(ctx, "Boston Celtics", "basketball_nba")
	if err != nil {
		t.Fatalf("Rating() error = %v", err)
	}
	if rating == nil || rating.Team != "Boston Celtics" || rating.Sport != "basketball_nba" || rating.Offense != 118.2 {
		t.Errorf("Rating() = %+v, want name and sport filled from the lookup", rating)
	}
	if missing, err := src.Rating(ctx, "Miami Heat", "basketball_nba"); err != nil || missing != nil {
		t.Errorf("missing rating = %v, %v; want nil, nil", missing, err)
	}

	teams, err := src.Teams(ctx, "basketball_nba")
	if err != nil || len(teams) != 2 {
		t.Errorf("Teams() = %v, %v", teams, err)
	}

	split, err := src.Split(ctx, "basketball_nba", "evt-1", "boston celtics ml")
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if split == nil || split.MoneyPct != 0.72 || split.TicketPct != 0.40 {
		t.Errorf("Split() = %+v, want percentages scaled to 0.72/0.40", split)
	}
	if half, err := src.Split(ctx, "basketball_nba", "evt-1", "Over 215.5"); err != nil || half != nil {
		t.Errorf("one-sided split = %v, %v; want nil, nil", half, err)
	}
}

func TestProviderErrorsPropagate(t *testing.T) {
	down := errors.New("connection refused")
	src := feed.NewRedis(&memoryRedis{err: down}, "")
	ctx := context.Background()

	if _, err := src.Snapshot(ctx, "basketball_nba"); !errors.Is(err, down) {
		t.Errorf("Snapshot() error = %v, want wrapped outage", err)
	}
	if _, err := src.Predict(ctx, models.MatchContext{MatchID: "evt-1"}); !errors.Is(err, down) {
		t.Errorf("Predict() error = %v, want wrapped outage", err)
	}
	if _, err := src.Teams(ctx, "basketball_nba"); !errors.Is(err, down) {
		t.Errorf("Teams() error = %v, want wrapped outage", err)
	}
}

func ptr(v float64) *float64 { return &v }
