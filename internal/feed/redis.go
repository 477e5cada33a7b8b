// Package feed reads the provider snapshots upstream collectors leave in
// Redis and exposes them through the provider ports.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/intake"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// Client is the subset of a Redis client the feed reads with
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HKeys(ctx context.Context, key string) *redis.StringSliceCmd
}

// Redis serves every provider port from one Redis instance
type Redis struct {
	client Client
	keys   Keys
}

var (
	_ contracts.OddsProvider   = (*Redis)(nil)
	_ contracts.ScoreProvider  = (*Redis)(nil)
	_ contracts.ModelProvider  = (*Redis)(nil)
	_ contracts.RatingProvider = (*Redis)(nil)
	_ contracts.SplitProvider  = (*Redis)(nil)
)

// NewRedis creates a feed reader; prefix namespaces every key
func NewRedis(client Client, prefix string) *Redis {
	return &Redis{client: client, keys: Keys{Prefix: prefix}}
}

// Snapshot returns the latest quotes for a sport, empty when none are stored
func (r *Redis) Snapshot(ctx context.Context, sportKey string) ([]models.RawQuote, error) {
	var quotes []models.RawQuote
	if err := r.getJSON(ctx, r.keys.Odds(sportKey), &quotes); err != nil {
		return nil, fmt.Errorf("failed to read odds snapshot for %s: %w", sportKey, err)
	}
	return quotes, nil
}

// Results returns the score reports for one UTC day
func (r *Redis) Results(ctx context.Context, sportKey string, day time.Time) ([]models.GameResult, error) {
	var games []models.GameResult
	if err := r.getJSON(ctx, r.keys.Scores(sportKey, day), &games); err != nil {
		return nil, fmt.Errorf("failed to read scores for %s: %w", sportKey, err)
	}
	return games, nil
}

// Predict reads the model's probability for one outcome
func (r *Redis) Predict(ctx context.Context, match models.MatchContext) (*float64, error) {
	raw, err := r.client.HGet(ctx, r.keys.Model(match.SportKey, match.MatchID), ModelField(match)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model probability: %w", err)
	}

	p, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid model probability %q: %w", raw, err)
	}
	return &p, nil
}

// Rating looks a team up under its exact stored name
func (r *Redis) Rating(ctx context.Context, team, sportKey string) (*models.TeamRating, error) {
	raw, err := r.client.HGet(ctx, r.keys.Ratings(sportKey), team).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rating for %s: %w", team, err)
	}

	var rating models.TeamRating
	if err := json.Unmarshal(raw, &rating); err != nil {
		return nil, fmt.Errorf("failed to decode rating for %s: %w", team, err)
	}
	if rating.Team == "" {
		rating.Team = team
	}
	if rating.Sport == "" {
		rating.Sport = sportKey
	}
	return &rating, nil
}

// Teams lists every team with a stored rating
func (r *Redis) Teams(ctx context.Context, sportKey string) ([]string, error) {
	teams, err := r.client.HKeys(ctx, r.keys.Ratings(sportKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rated teams: %w", err)
	}
	return teams, nil
}

// splitRecord accepts fractions or percentages
type splitRecord struct {
	Money   *float64 `json:"money"`
	Tickets *float64 `json:"tickets"`
}

// Split reads the public betting split for one selection
func (r *Redis) Split(ctx context.Context, sportKey, matchID, selection string) (*models.PublicSplit, error) {
	raw, err := r.client.HGet(ctx, r.keys.Splits(sportKey, matchID), SplitField(selection)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read split: %w", err)
	}

	var rec splitRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode split: %w", err)
	}
	return intake.Split(rec.Money, rec.Tickets), nil
}

func (r *Redis) getJSON(ctx context.Context, key string, dst any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
