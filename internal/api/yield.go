package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/model"
)

func (s *Server) yieldRoutes(r *mux.Router) {
	r.HandleFunc("/pools", s.getPools).Methods(http.MethodGet)
	r.HandleFunc("/pools", s.createPool).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}", s.getPool).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}/projection", s.getProjection).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}/deposits", s.deposit).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/distribute", s.distribute).Methods(http.MethodPost)

	r.HandleFunc("/users/{user}/positions", s.getPositions).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/transfers", s.getTransfers).Methods(http.MethodGet)

	r.HandleFunc("/transfers", s.sendTransfer).Methods(http.MethodPost)
	r.HandleFunc("/transfers/quote", s.quoteTransfer).Methods(http.MethodGet)
	r.HandleFunc("/rates/{pair}", s.getRate).Methods(http.MethodGet)
	r.HandleFunc("/rates/{pair}", s.putRate).Methods(http.MethodPut)
	r.HandleFunc("/corridors", s.getCorridors).Methods(http.MethodGet)
	r.HandleFunc("/tvl", s.getTVL).Methods(http.MethodGet)
}

func (s *Server) getPools(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := s.engine.Pools(ctx)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) createPool(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePoolRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	p, err := s.engine.CreatePool(ctx, req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	p, err := s.engine.Pool(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (s *Server) getProjection(w http.ResponseWriter, r *http.Request) {
	amt, err := queryAmount(r, "amount")
	if err != nil {
		respondWithError(w, err)
		return
	}
	days, err := queryInt(r, "days")
	if err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	id := mux.Vars(r)["id"]
	y, err := s.engine.ProjectedYield(ctx, id, amt, days)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"pool_id": id,
		"amount":  amt,
		"days":    days,
		"yield":   y,
	})
}

type depositBody struct {
	User         string          `json:"user"`
	Amount       decimal.Decimal `json:"amount"`
	AutoCompound bool            `json:"auto_compound"`
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var body depositBody
	if err := decodeBody(r, &body); err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	hash, err := s.engine.Deposit(ctx, model.DepositRequest{
		User:         body.User,
		PoolID:       mux.Vars(r)["id"],
		Amount:       body.Amount,
		AutoCompound: body.AutoCompound,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"transaction_hash": hash})
}

type distributeBody struct {
	Admin      string          `json:"admin"`
	TotalYield decimal.Decimal `json:"total_yield"`
}

func (s *Server) distribute(w http.ResponseWriter, r *http.Request) {
	var body distributeBody
	if err := decodeBody(r, &body); err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	hash, err := s.engine.DistributeYield(ctx, body.Admin, mux.Vars(r)["id"], body.TotalYield)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"transaction_hash": hash})
}

func (s *Server) getPositions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := s.engine.Positions(ctx, mux.Vars(r)["user"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) getTransfers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := s.engine.Transfers(ctx, mux.Vars(r)["user"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) sendTransfer(w http.ResponseWriter, r *http.Request) {
	var req model.SendCrossBorderRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	t, err := s.engine.SendCrossBorder(ctx, req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, t)
}

func (s *Server) quoteTransfer(w http.ResponseWriter, r *http.Request) {
	amt, err := queryAmount(r, "amount")
	if err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	q := r.URL.Query()
	quote, err := s.engine.QuoteTransfer(ctx, q.Get("from"), q.Get("to"), amt)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, quote)
}

func (s *Server) getRate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	pair := mux.Vars(r)["pair"]
	rate, err := s.engine.ExchangeRate(ctx, pair)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"pair": pair, "rate": rate})
}

type rateBody struct {
	Admin string          `json:"admin"`
	Rate  decimal.Decimal `json:"rate"`
}

func (s *Server) putRate(w http.ResponseWriter, r *http.Request) {
	var body rateBody
	if err := decodeBody(r, &body); err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	hash, err := s.engine.UpdateExchangeRate(ctx, body.Admin, mux.Vars(r)["pair"], body.Rate)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"transaction_hash": hash})
}

func (s *Server) getCorridors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := s.engine.Corridors(ctx)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) getTVL(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	tvl, err := s.engine.TotalValueLocked(ctx)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"total_value_locked": tvl})
}
