package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/stellarsave/stellarsave/internal/amount"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/store"
)

// requestTimeout bounds each handler's engine call.
const requestTimeout = 10 * time.Second

func (s *Server) savingsRoutes(r *mux.Router) {
	r.HandleFunc("/challenges", s.createChallenge).Methods(http.MethodPost)
	r.HandleFunc("/challenges/{id}", s.getChallenge).Methods(http.MethodGet)
	r.HandleFunc("/challenges/{id}/progress", s.getProgress).Methods(http.MethodGet)
	r.HandleFunc("/challenges/{id}/contributions", s.getContributions).Methods(http.MethodGet)
	r.HandleFunc("/challenges/{id}/contributions", s.contribute).Methods(http.MethodPost)
	r.HandleFunc("/challenges/{id}/finalize", s.finalize).Methods(http.MethodPost)
	r.HandleFunc("/challenges/{id}/participants/{user}", s.getParticipant).Methods(http.MethodGet)

	r.HandleFunc("/users/{user}/challenges", s.getUserChallenges).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/stats", s.getStats).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/balance", s.getBalance).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/rewards", s.getRewards).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/contributions", s.getUserContributions).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/remind", s.remind).Methods(http.MethodPost)
	r.HandleFunc("/users/{user}/refresh", s.refresh).Methods(http.MethodPost)

	r.HandleFunc("/notifications", s.getNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/read-all", s.readAllNotifications).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/read", s.readNotification).Methods(http.MethodPost)
	r.HandleFunc("/focus", s.focus).Methods(http.MethodPost)
}

func reqContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func (s *Server) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req model.CreateChallengeRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	c, err := s.engine.CreateChallenge(ctx, req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

func (s *Server) getChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	c, err := s.engine.Challenge(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	p, err := s.engine.Progress(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (s *Server) getContributions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := s.engine.Contributions(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

type contributeBody struct {
	Contributor string `json:"contributor"`
	Amount      string `json:"amount"`
}

func (s *Server) contribute(w http.ResponseWriter, r *http.Request) {
	var body contributeBody
	if err := decodeBody(r, &body); err != nil {
		respondWithError(w, err)
		return
	}
	amt, err := amount.Parse(body.Amount)
	if err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	c, err := s.engine.Contribute(ctx, model.ContributeRequest{
		ChallengeID: mux.Vars(r)["id"],
		Contributor: body.Contributor,
		Amount:      amt,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Finalizer string `json:"finalizer"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	hash, err := s.engine.FinalizeChallenge(ctx, model.FinalizeRequest{
		ChallengeID: mux.Vars(r)["id"],
		Finalizer:   body.Finalizer,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"transaction_hash": hash})
}

func (s *Server) getParticipant(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	vars := mux.Vars(r)
	p, err := s.engine.ParticipantProgress(ctx, vars["id"], vars["user"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// filterFromQuery reads status, participant, creator, min_goal, max_goal,
// sort_by and order. Validation happens in the engine.
func filterFromQuery(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		Status:      store.StatusFilter(q.Get("status")),
		Participant: q.Get("participant"),
		Creator:     q.Get("creator"),
		SortBy:      store.SortField(q.Get("sort_by")),
		Order:       store.Order(q.Get("order")),
	}
	if v := q.Get("min_goal"); v != "" {
		d, err := amount.Parse(v)
		if err != nil {
			return f, err
		}
		f.MinGoal = &d
	}
	if v := q.Get("max_goal"); v != "" {
		d, err := amount.Parse(v)
		if err != nil {
			return f, err
		}
		f.MaxGoal = &d
	}
	return f, nil
}

func (s *Server) getUserChallenges(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := s.engine.UserChallenges(ctx, mux.Vars(r)["user"], f)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	st, err := s.engine.Stats(ctx, mux.Vars(r)["user"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	user := mux.Vars(r)["user"]
	bal, err := s.engine.Balance(ctx, user)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"user": user, "balance": bal})
}

func (s *Server) getRewards(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := s.engine.RewardHistory(ctx, mux.Vars(r)["user"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) getUserContributions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := s.engine.UserContributions(ctx, mux.Vars(r)["user"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) remind(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := s.engine.Remind(ctx, mux.Vars(r)["user"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	if err := s.engine.Refresh(ctx, mux.Vars(r)["user"]); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"last_refresh": s.engine.Store().LastRefresh()})
}

func (s *Server) getNotifications(w http.ResponseWriter, r *http.Request) {
	list := s.engine.Store().Notifications()
	if r.URL.Query().Get("unread") == "true" {
		list = s.engine.Store().UnreadNotifications()
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) readNotification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.engine.Store().MarkNotificationRead(id) {
		respondWithError(w, model.Errorf(model.KindValidationError, "notification %s not found", id).
			WithDetail("status", http.StatusNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) readAllNotifications(w http.ResponseWriter, r *http.Request) {
	s.engine.Store().MarkAllRead()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) focus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]int{"refetched": s.engine.Focus()})
}
