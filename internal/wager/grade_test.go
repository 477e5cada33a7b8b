package wager_test

import (
	"errors"
	"testing"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/resolver"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/wager"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

func final(home, away string, hs, as int) models.GameResult {
	return models.GameResult{
		HomeTeam:  home,
		AwayTeam:  away,
		HomeScore: hs,
		AwayScore: as,
		Status:    models.GameStatusFinal,
	}
}

func TestGradeSingles(t *testing.T) {
	g := wager.NewGrader(resolver.Default(nil))

	celtics := final("Boston Celtics", "New York Knicks", 103, 100)
	football := final("Kansas City Chiefs", "Buffalo Bills", 24, 22)
	footballUnder := final("Kansas City Chiefs", "Buffalo Bills", 24, 21)
	soccerDraw := final("Arsenal", "Chelsea", 1, 1)
	hockeyTie := final("Boston Bruins", "Toronto Maple Leafs", 2, 2)

	tests := []struct {
		name      string
		selection string
		sport     string
		game      models.GameResult
		want      models.Outcome
	}{
		{"home covers", "Boston Celtics −2.5", "basketball_nba", celtics, models.OutcomeWon},
		{"away fails to cover", "New York Knicks +2.5", "basketball_nba", celtics, models.OutcomeLost},
		{"spread push", "Boston Celtics -3", "basketball_nba", celtics, models.OutcomePush},
		{"short name resolves", "Celtics ML", "basketball_nba", celtics, models.OutcomeWon},
		{"moneyline loser", "Knicks ML", "basketball_nba", celtics, models.OutcomeLost},
		{"over wins at 46", "Over 45.5", "americanfootball_nfl", football, models.OutcomeWon},
		{"over loses at 45", "Over 45.5", "americanfootball_nfl", footballUnder, models.OutcomeLost},
		{"under wins at 45", "Under 45.5", "americanfootball_nfl", footballUnder, models.OutcomeWon},
		{"total push", "Over 45", "americanfootball_nfl", footballUnder, models.OutcomePush},
		{"draw wins on tie", "Draw ML", "soccer_epl", soccerDraw, models.OutcomeWon},
		{"soccer side loses on tie", "Arsenal ML", "soccer_epl", soccerDraw, models.OutcomeLost},
		{"hockey side pushes on tie", "Boston Bruins ML", "icehockey_nhl", hockeyTie, models.OutcomePush},
		{"draw loses on decision", "Draw ML", "soccer_epl", final("Arsenal", "Chelsea", 2, 1), models.OutcomeLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.GradeText(tt.selection, tt.sport, tt.game)
			if err != nil {
				t.Fatalf("GradeText(%q) error = %v", tt.selection, err)
			}
			if got != tt.want {
				t.Errorf("GradeText(%q) = %s, want %s", tt.selection, got, tt.want)
			}
		})
	}
}

func TestGradeIsDeterministic(t *testing.T) {
	g := wager.NewGrader(resolver.Default(nil))
	game := final("Boston Celtics", "New York Knicks", 103, 100)

	first, _ := g.GradeText("Boston Celtics -2.5", "basketball_nba", game)
	for i := 0; i < 10; i++ {
		again, _ := g.GradeText("Boston Celtics -2.5", "basketball_nba", game)
		if again != first {
			t.Fatalf("grade changed from %s to %s on attempt %d", first, again, i)
		}
	}
}

func TestGradeFirstHalf(t *testing.T) {
	g := wager.NewGrader(resolver.Default(nil))

	nba := final("Boston Celtics", "New York Knicks", 110, 100)
	nba.HomePeriods = []int{30, 20, 30, 30}
	nba.AwayPeriods = []int{25, 30, 20, 25}

	ncaab := final("Duke", "North Carolina", 80, 70)
	ncaab.HomePeriods = []int{30, 50}
	ncaab.AwayPeriods = []int{40, 30}

	mlb := final("New York Yankees", "Boston Red Sox", 3, 6)
	mlb.HomePeriods = []int{1, 0, 0, 2, 0, 0, 0, 0, 0}
	mlb.AwayPeriods = []int{0, 0, 0, 0, 1, 2, 3, 0, 0}

	explicit := final("Arsenal", "Chelsea", 2, 2)
	one, zero := 1, 0
	explicit.HomeFirstHalf = &one
	explicit.AwayFirstHalf = &zero

	tests := []struct {
		name      string
		selection string
		sport     string
		game      models.GameResult
		want      models.Outcome
	}{
		// first half 50-55
		{"nba two quarters", "1H Boston Celtics ML", "basketball_nba", nba, models.OutcomeLost},
		{"nba half total", "1H Over 104.5", "basketball_nba", nba, models.OutcomeWon},
		// first half 30-40
		{"ncaab first period", "1H Duke +9.5", "basketball_ncaab", ncaab, models.OutcomeLost},
		// first five 3-1
		{"mlb first five", "1H New York Yankees ML", "baseball_mlb", mlb, models.OutcomeWon},
		{"explicit half scores", "1H Arsenal ML", "soccer_epl", explicit, models.OutcomeWon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.GradeText(tt.selection, tt.sport, tt.game)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGradeStaysPending(t *testing.T) {
	g := wager.NewGrader(resolver.Default(nil))

	noPeriods := final("Boston Celtics", "New York Knicks", 110, 100)
	live := final("Boston Celtics", "New York Knicks", 50, 48)
	live.Status = models.GameStatusLive

	tests := []struct {
		name      string
		selection string
		sport     string
		game      models.GameResult
		wantErr   error
	}{
		{"missing half scores", "1H Over 100.5", "basketball_nba", noPeriods, wager.ErrPeriodUnavailable},
		{"hockey half unsupported", "1H Over 2.5", "icehockey_nhl", noPeriods, wager.ErrPeriodUnsupported},
		{"game not final", "Boston Celtics ML", "basketball_nba", live, wager.ErrNotFinal},
		{"team not in game", "Miami Heat ML", "basketball_nba", noPeriods, wager.ErrUnknownSide},
		{"unparseable", "Celtics to win big", "basketball_nba", noPeriods, wager.ErrUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.GradeText(tt.selection, tt.sport, tt.game)
			if got != models.OutcomePending {
				t.Errorf("outcome = %s, want PENDING", got)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGradeParlay(t *testing.T) {
	g := wager.NewGrader(resolver.Default(nil))

	nba := final("Boston Celtics", "New York Knicks", 103, 100)
	other := final("Los Angeles Lakers", "Denver Nuggets", 99, 110)

	won1 := "Celtics ML"
	won2 := "Over 200.5"
	lost := "Lakers ML"

	orders := [][]string{
		{won1, won2, lost},
		{lost, won1, won2},
		{won2, lost, won1},
	}
	for _, legs := range orders {
		text := "Parlay (3 Legs): " + legs[0] + " + " + legs[1] + " + " + legs[2]
		t.Run(text, func(t *testing.T) {
			w, err := wager.Parse(text)
			if err != nil {
				t.Fatalf("Parse error = %v", err)
			}
			got, err := g.Grade(w, "basketball_nba", nba, other)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != models.OutcomeLost {
				t.Errorf("got %s, want LOST", got)
			}
		})
	}

	t.Run("all legs won", func(t *testing.T) {
		w, _ := wager.Parse("Parlay (2 Legs): Celtics ML (-150) + Nuggets +3.5 (-110)")
		got, err := g.Grade(w, "basketball_nba", nba, other)
		if err != nil || got != models.OutcomeWon {
			t.Errorf("got %s, %v; want WON", got, err)
		}
	})

	t.Run("undecided leg keeps pending", func(t *testing.T) {
		w, _ := wager.Parse("Parlay (2 Legs): Celtics ML + Miami Heat ML")
		got, err := g.Grade(w, "basketball_nba", nba, other)
		if got != models.OutcomePending {
			t.Errorf("got %s, want PENDING", got)
		}
		if err == nil {
			t.Error("expected a reason for the pending leg")
		}
	})

	t.Run("total leg in a multi-game parlay stays pending", func(t *testing.T) {
		w, _ := wager.Parse("Parlay (3 Legs): Celtics ML + Nuggets ML + Over 200.5")
		got, err := g.Grade(w, "basketball_nba", nba, other)
		if got != models.OutcomePending || !errors.Is(err, wager.ErrUnknownSide) {
			t.Errorf("got %s, %v; want PENDING with ErrUnknownSide", got, err)
		}
	})

	t.Run("total leg follows the single game of its team legs", func(t *testing.T) {
		// 209 points in Denver, 203 in Boston
		w, _ := wager.Parse("Parlay (2 Legs): Nuggets ML + Over 205.5")
		got, err := g.Grade(w, "basketball_nba", nba, other)
		if err != nil || got != models.OutcomeWon {
			t.Errorf("got %s, %v; want WON on the Nuggets game", got, err)
		}
	})

	t.Run("push leg keeps pending", func(t *testing.T) {
		w, _ := wager.Parse("Parlay (2 Legs): Celtics ML + Celtics -3")
		got, err := g.Grade(w, "basketball_nba", nba)
		if got != models.OutcomePending || !errors.Is(err, wager.ErrParlayPush) {
			t.Errorf("got %s, %v; want PENDING with ErrParlayPush", got, err)
		}
	})
}

func TestProfit(t *testing.T) {
	tests := []struct {
		outcome models.Outcome
		stake   float64
		price   float64
		want    float64
	}{
		{models.OutcomeWon, 10, 1.91, 9.10},
		{models.OutcomeWon, 6.25, 2.0, 6.25},
		{models.OutcomeLost, 10, 1.91, -10},
		{models.OutcomePush, 10, 1.91, 0},
		{models.OutcomePending, 10, 1.91, 0},
	}

	for _, tt := range tests {
		if got := wager.Profit(tt.outcome, tt.stake, tt.price); got != tt.want {
			t.Errorf("Profit(%s, %v, %v) = %v, want %v", tt.outcome, tt.stake, tt.price, got, tt.want)
		}
	}
}
