package api

import (
	"encoding/json"
	"net/http"

	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/model"
)

// invoke relays a contract call to the server's gateway. It speaks the
// protocol gateway.RPC expects, so a remote engine can point its RPC
// gateway at this server.
func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	var call gateway.Call
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&call); err != nil {
		respondWithError(w, model.WrapError(model.KindValidationError, "malformed call", err))
		return
	}
	if call.Contract == "" || call.Method == "" {
		respondWithError(w, model.Validationf("method", "contract and method are required"))
		return
	}
	ctx, cancel := reqContext(r)
	defer cancel()

	res, err := s.relay.Invoke(ctx, call)
	if err != nil {
		s.logger.Debug("relayed call failed", "contract", call.Contract, "method", call.Method, "error", err)
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}
