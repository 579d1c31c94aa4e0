package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarsave/stellarsave/internal/model"
)

func TestRPC_Invoke_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoke", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": 42, "transaction_hash": "tx1"}`))
	}))
	defer srv.Close()

	gw := NewRPC(srv.URL+"/", WithHeader("X-Api-Key", "secret"))
	res, err := gw.Invoke(context.Background(), Call{
		Contract: "C1", Method: MethodContribute, Args: ContributeArgs{ChallengeID: 1, Amount: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, "tx1", res.TransactionHash)

	var v int
	require.NoError(t, res.Decode(&v))
	assert.Equal(t, 42, v)
	assert.Equal(t, "contribute", got["method"])
}

func TestRPC_Invoke_ContractError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error": {"kind": "CHALLENGE_INACTIVE", "message": "challenge is finalized", "entity_id": "3"}}`))
	}))
	defer srv.Close()

	_, err := NewRPC(srv.URL).Invoke(context.Background(), Call{Method: MethodContribute})
	require.Error(t, err)
	e := model.AsError(err)
	assert.Equal(t, model.KindChallengeInactive, e.Kind)
	assert.Equal(t, "3", e.EntityID)
}

func TestRPC_Invoke_ServerErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRPC(srv.URL).Invoke(context.Background(), Call{Method: MethodGetChallenge})
	assert.True(t, model.IsKind(err, model.KindNetworkError))
}

func TestRPC_Invoke_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRPC(url).Invoke(context.Background(), Call{Method: MethodGetChallenge})
	assert.True(t, model.IsKind(err, model.KindNetworkError))
}
