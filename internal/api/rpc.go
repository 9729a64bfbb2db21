package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	rpctypes "github.com/cometbft/cometbft/rpc/jsonrpc/types"

	"soulvan-gateway/internal/errs"
)

const apiKeyHeader = "X-API-Key"

type errorBody struct {
	Error string `json:"error"`
}

// restEnvelope is used by the chain helper endpoints, which always answer
// with id 0.
func restEnvelope() rpctypes.RPCResponse {
	return rpctypes.RPCResponse{JSONRPC: "2.0", ID: rpctypes.JSONRPCIntID(0)}
}

func (s *Server) rpc(w http.ResponseWriter, r *http.Request) {
	credential := r.Header.Get(apiKeyHeader)
	if err := s.gate.Authorize(credential); err != nil {
		s.respond(w, restEnvelope(), nil, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeRPCError(w, rpctypes.RPCResponse{JSONRPC: "2.0"}, http.StatusBadRequest, errs.CodeParseError, "Parse error")
		return
	}
	var req rpcRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeRPCError(w, rpctypes.RPCResponse{JSONRPC: "2.0"}, http.StatusBadRequest, errs.CodeParseError, "Parse error")
		return
	}
	resp, err := req.envelope()
	if err != nil {
		writeRPCError(w, resp, http.StatusBadRequest, errs.CodeParseError, err.Error())
		return
	}

	res, err := s.gate.Handle(r.Context(), req.Method, req.Params, credential)
	s.respond(w, resp, res, err)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// envelope starts the response with the caller's id. A missing id answers
// as 0. Numeric ids must be integers that fit in an int.
func (req rpcRequest) envelope() (rpctypes.RPCResponse, error) {
	resp := rpctypes.RPCResponse{JSONRPC: "2.0", ID: rpctypes.JSONRPCIntID(0)}
	switch id := req.ID.(type) {
	case nil:
	case json.Number:
		n, err := strconv.ParseInt(id.String(), 10, strconv.IntSize)
		if err != nil {
			return resp, fmt.Errorf("invalid request id %s", id)
		}
		resp.ID = rpctypes.JSONRPCIntID(int(n))
	case string:
		resp.ID = rpctypes.JSONRPCStringID(id)
	default:
		return resp, fmt.Errorf("invalid request id type %T", id)
	}
	return resp, nil
}

// respond writes either the result or the error into the envelope. The
// status code follows the error kind.
func (s *Server) respond(w http.ResponseWriter, resp rpctypes.RPCResponse, res interface{}, err error) {
	if err != nil {
		status := errs.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("rpc failed", "err", err)
		}
		writeRPCError(w, resp, status, errs.CodeOf(err), err.Error())
		return
	}
	raw, err := marshalResult(res)
	if err != nil {
		s.log.Error("encode result", "err", err)
		writeRPCError(w, resp, http.StatusInternalServerError, errs.CodeInternal, "Internal error")
		return
	}
	resp.Result = raw
	writeJSON(w, http.StatusOK, resp)
}

// marshalResult passes daemon results through byte for byte and encodes
// everything else with encoding/json.
func marshalResult(res interface{}) (json.RawMessage, error) {
	if raw, ok := res.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return raw, nil
	}
	return json.Marshal(res)
}

func writeRPCError(w http.ResponseWriter, resp rpctypes.RPCResponse, status, code int, message string) {
	resp.Result = nil
	resp.Error = &rpctypes.RPCError{Code: code, Message: message}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), errorBody{Error: err.Error()})
}
