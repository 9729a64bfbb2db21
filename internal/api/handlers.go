package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"soulvan-gateway/internal/configstore"
	"soulvan-gateway/internal/errs"
	"soulvan-gateway/internal/models"
)

const wsWriteWait = 10 * time.Second

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Snapshot())
}

// statsStream is a server-sent event stream: one "data:" frame per snapshot.
func (s *Server) statsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for snap := range s.publisher.Subscribe(ctx) {
		data, err := json.Marshal(snap)
		if err != nil {
			s.log.Error("encode snapshot", "err", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) statsSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// a hijacked connection does not cancel the request context, so the
	// read side tells us when the peer goes away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for snap := range s.publisher.Subscribe(ctx) {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(snap); err != nil {
			s.log.Debug("websocket write failed", "err", err)
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(wsWriteWait))
}

type historyBody struct {
	Enabled bool                 `json:"enabled"`
	Samples []models.StatsSample `json:"samples"`
}

func (s *Server) statsHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, errs.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	if s.history == nil || !s.history.Enabled() {
		writeJSON(w, http.StatusOK, historyBody{Samples: []models.StatsSample{}})
		return
	}
	samples, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("load stats history", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "history unavailable"})
		return
	}
	if samples == nil {
		samples = []models.StatsSample{}
	}
	writeJSON(w, http.StatusOK, historyBody{Enabled: true, Samples: samples})
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	addrs, err := s.config.Load()
	if err != nil {
		s.log.Error("load config", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "config unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, addrs)
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.Authorize(r.Header.Get(apiKeyHeader)); err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, errs.Validation("unreadable body"))
		return
	}
	patch, err := configstore.ParsePatch(body)
	if err != nil {
		writeError(w, err)
		return
	}
	addrs, err := s.config.Update(patch)
	if err != nil {
		if errs.KindOf(err) == errs.KindValidation {
			writeError(w, err)
			return
		}
		s.log.Error("save config", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "config not saved"})
		return
	}
	s.log.Info("config updated", "ton_address", addrs.TonAddress, "fee_address", addrs.FeeAddress)
	writeJSON(w, http.StatusOK, addrs)
}

func (s *Server) blockchainInfo(w http.ResponseWriter, r *http.Request) {
	raw, err := s.chain.BlockchainInfo(r.Context())
	s.respond(w, restEnvelope(), raw, err)
}

func (s *Server) bestBlockHash(w http.ResponseWriter, r *http.Request) {
	raw, err := s.chain.BestBlockHash(r.Context())
	s.respond(w, restEnvelope(), raw, err)
}

func (s *Server) blockByHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseInt(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		s.respond(w, restEnvelope(), nil, errs.Validation("invalid height"))
		return
	}
	verbosity, err := strconv.Atoi(r.URL.Query().Get("verbosity"))
	if err != nil {
		verbosity = 1
	}
	raw, err := s.chain.BlockByHeight(r.Context(), height, verbosity)
	s.respond(w, restEnvelope(), raw, err)
}

func (s *Server) miningInfo(w http.ResponseWriter, r *http.Request) {
	raw, err := s.chain.MiningInfo(r.Context())
	s.respond(w, restEnvelope(), raw, err)
}

func (s *Server) miningTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.Authorize(r.Header.Get(apiKeyHeader)); err != nil {
		s.respond(w, restEnvelope(), nil, err)
		return
	}
	raw, err := s.chain.BlockTemplate(r.Context())
	s.respond(w, restEnvelope(), raw, err)
}

type submitBody struct {
	Block string `json:"block"`
}

func (s *Server) miningSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.Authorize(r.Header.Get(apiKeyHeader)); err != nil {
		s.respond(w, restEnvelope(), nil, err)
		return
	}
	if err := s.gate.Permit("submitblock"); err != nil {
		s.respond(w, restEnvelope(), nil, err)
		return
	}
	var body submitBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil && err != io.EOF {
		s.respond(w, restEnvelope(), nil, errs.Validation("invalid body"))
		return
	}
	raw, err := s.chain.SubmitBlock(r.Context(), body.Block)
	if err == nil {
		s.log.Info("block submitted", "result", string(raw))
	}
	s.respond(w, restEnvelope(), raw, err)
}
