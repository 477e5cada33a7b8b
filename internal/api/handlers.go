// Package api serves the operator HTTP surface over the ledger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/edge"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/store"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/oddsmath"
)

// Ledger is the part of the store the API reads and writes
type Ledger interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, id int64) (*models.Opportunity, error)
	List(ctx context.Context, f contracts.OpportunityFilter) ([]models.Opportunity, error)
	Confirm(ctx context.Context, id int64, stake, odds *float64) (*models.Opportunity, error)
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	ledger Ledger
	edge   config.EdgeConfig
	log    *zap.Logger
}

// NewHandler creates a new handler with dependencies
func NewHandler(ledger Ledger, edgeCfg config.EdgeConfig, log *zap.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		edge:   edgeCfg,
		log:    log.Named("api"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ledger.Ping(ctx); err != nil {
		h.respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "edge-ledger",
	})
}

// ListOpportunities returns opportunities with optional filtering
// Query params: outcome, sport, since, until (RFC3339), limit, offset
func (h *Handler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	filter := contracts.OpportunityFilter{
		SportKey: q.Get("sport"),
		Limit:    parseIntParam(r, "limit", 100),
		Offset:   parseIntParam(r, "offset", 0),
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	if raw := q.Get("outcome"); raw != "" {
		outcome := models.Outcome(raw)
		if !outcome.Valid() {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown outcome %q", raw), nil)
			return
		}
		filter.Outcome = &outcome
	}

	var err error
	if filter.Since, err = parseTimeParam(r, "since"); err != nil {
		h.respondError(w, http.StatusBadRequest, "since must be RFC3339", nil)
		return
	}
	if filter.Until, err = parseTimeParam(r, "until"); err != nil {
		h.respondError(w, http.StatusBadRequest, "until must be RFC3339", nil)
		return
	}

	opps, err := h.ledger.List(ctx, filter)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to retrieve opportunities", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": opps,
		"count":         len(opps),
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	})
}

// GetOpportunity retrieves a single opportunity by ID
func (h *Handler) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, ok := h.opportunityID(w, r)
	if !ok {
		return
	}

	opp, err := h.ledger.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "opportunity not found", nil)
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to retrieve opportunity", err)
		return
	}

	respondJSON(w, http.StatusOK, opp)
}

// ConfirmRequest records the stake and price actually taken
type ConfirmRequest struct {
	Stake *float64 `json:"stake"`
	Odds  *float64 `json:"odds"` // decimal
}

// ConfirmOpportunity stores an operator override for a pending opportunity
func (h *Handler) ConfirmOpportunity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, ok := h.opportunityID(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err), nil)
		return
	}
	if req.Stake != nil && *req.Stake <= 0 {
		h.respondError(w, http.StatusBadRequest, "stake must be positive", nil)
		return
	}
	if req.Odds != nil && !oddsmath.ValidPrice(*req.Odds) {
		h.respondError(w, http.StatusBadRequest, "odds must be a decimal price above 1.0", nil)
		return
	}

	opp, err := h.ledger.Confirm(ctx, id, req.Stake, req.Odds)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "opportunity not found", nil)
		return
	case errors.Is(err, store.ErrAlreadySettled):
		h.respondError(w, http.StatusConflict, "opportunity already settled", nil)
		return
	case err != nil:
		h.respondError(w, http.StatusInternalServerError, "failed to confirm opportunity", err)
		return
	}

	h.log.Info("opportunity confirmed",
		zap.Int64("opportunity_id", id),
		zap.Float64("stake", opp.EffectiveStake()),
		zap.Float64("odds", opp.EffectiveOdds()))
	respondJSON(w, http.StatusOK, opp)
}

// KellyRequest sizes a stake outside the scan pass
type KellyRequest struct {
	Probability   float64 `json:"probability"`
	DecimalOdds   float64 `json:"decimal_odds"`
	AmericanOdds  int     `json:"american_odds"`
	Bankroll      float64 `json:"bankroll"`
	KellyFraction float64 `json:"kelly_fraction"`
}

// KellyResponse is the sizing result
type KellyResponse struct {
	DecimalOdds     float64  `json:"decimal_odds"`
	Edge            float64  `json:"edge"`
	FullKelly       float64  `json:"full_kelly"`
	FractionalKelly float64  `json:"fractional_kelly"`
	Stake           float64  `json:"stake"`
	MaxStake        float64  `json:"max_stake"`
	Warnings        []string `json:"warnings"`
}

// CalculateKelly sizes a stake with the ledger's Kelly rules
func (h *Handler) CalculateKelly(w http.ResponseWriter, r *http.Request) {
	var req KellyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err), nil)
		return
	}

	// Use defaults if not provided
	if req.Bankroll == 0 {
		req.Bankroll = h.edge.Bankroll
	}
	if req.KellyFraction == 0 {
		req.KellyFraction = h.edge.KellyFraction
	}

	if req.Bankroll <= 0 {
		h.respondError(w, http.StatusBadRequest, "bankroll must be positive", nil)
		return
	}
	if req.KellyFraction <= 0 || req.KellyFraction > 1.0 {
		h.respondError(w, http.StatusBadRequest, "kelly_fraction must be between 0 and 1", nil)
		return
	}
	if req.Probability <= 0 || req.Probability >= 1 {
		h.respondError(w, http.StatusBadRequest, "probability must be between 0 and 1", nil)
		return
	}

	price := req.DecimalOdds
	if price == 0 && req.AmericanOdds != 0 {
		converted, err := oddsmath.AmericanToDecimal(req.AmericanOdds)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		price = converted
	}
	if !oddsmath.ValidPrice(price) {
		h.respondError(w, http.StatusBadRequest, "decimal_odds or american_odds is required", nil)
		return
	}

	e := oddsmath.Edge(req.Probability, price)
	full := edge.KellyFraction(e, price)
	resp := KellyResponse{
		DecimalOdds:     price,
		Edge:            e,
		FullKelly:       full,
		FractionalKelly: full * req.KellyFraction,
		Stake:           edge.Stake(e, price, req.KellyFraction, req.Bankroll, h.edge.MaxStakePct, 1),
		MaxStake:        h.edge.MaxStakePct * req.Bankroll,
		Warnings:        []string{},
	}

	if minEdge, ok := edge.MinEdgeFor(h.edge, price); !ok {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("price %.2f is above the %.2f cap", price, h.edge.PriceCap))
	} else if e < minEdge {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("edge %.2f%% is below the %.2f%% minimum for this price", e*100, minEdge*100))
	}
	if e >= h.edge.MaxEdge {
		resp.Warnings = append(resp.Warnings, "edge at or above the maximum is usually a data error")
	}
	if resp.Stake >= resp.MaxStake && resp.Stake > 0 {
		resp.Warnings = append(resp.Warnings, "stake capped at the per-bet maximum")
	}

	respondJSON(w, http.StatusOK, resp)
}

// Helper functions

func (h *Handler) opportunityID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid opportunity id", nil)
		return 0, false
	}
	return id, true
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func parseTimeParam(r *http.Request, param string) (*time.Time, error) {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, valueStr)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		h.log.Error(message, zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
