package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/amount"
	"github.com/stellarsave/stellarsave/internal/model"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind model.Kind) int {
	switch kind {
	case model.KindValidationError, model.KindMinDepositNotMet, model.KindMaxDepositExceeded,
		model.KindUnsupportedCorridor:
		return http.StatusBadRequest
	case model.KindChallengeNotFound, model.KindPoolNotFound, model.KindExchangeRateNotFound:
		return http.StatusNotFound
	case model.KindNotParticipant, model.KindUnauthorized:
		return http.StatusForbidden
	case model.KindChallengeInactive, model.KindChallengeExpired, model.KindPoolInactive,
		model.KindPositionLocked, model.KindInsufficientBalance:
		return http.StatusConflict
	case model.KindContractError, model.KindComplianceError:
		return http.StatusUnprocessableEntity
	case model.KindNetworkError, model.KindMoneyGramError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error *model.Error `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondWithError writes {"error": {...}}. A "status" detail overrides the
// kind's default status.
func respondWithError(w http.ResponseWriter, err error) {
	e := model.AsError(err)
	status := StatusFor(e.Kind)
	if s, ok := e.Details["status"].(int); ok {
		status = s
	}
	respondWithJSON(w, status, errorBody{Error: e})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.WrapError(model.KindValidationError, "malformed request body", err)
	}
	return nil
}

func queryAmount(r *http.Request, name string) (decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return decimal.Zero, model.Validationf(name, "%s is required", name)
	}
	return amount.Parse(raw)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.Validationf(name, "%s must be an integer", name)
	}
	return n, nil
}
