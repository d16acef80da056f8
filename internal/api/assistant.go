package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/allaspectsdev/legalsmart/internal/llm"
	"github.com/allaspectsdev/legalsmart/internal/store"
)

type analyzeRequest struct {
	Model string `json:"model"`
}

type askRequest struct {
	Question string `json:"question"`
	Model    string `json:"model"`
}

// resolveModel parses an optional model key, falling back to the session
// default.
func resolveModel(key string, def llm.Model) (llm.Model, error) {
	if strings.TrimSpace(key) == "" {
		return def, nil
	}
	return llm.ParseModel(key)
}

// decodeOptional decodes a JSON body that may be empty. Chunked requests
// report an unknown length, so an empty body shows up as io.EOF.
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := decodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req analyzeRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	model, err := resolveModel(req.Model, sess.DefaultModel())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ans, err := sess.Analyze(r.Context(), model)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	model, err := resolveModel(req.Model, sess.DefaultModel())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ans, err := sess.AskQuestion(r.Context(), req.Question, model)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := sessionFrom(r).QuickSummary(r.Context())
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": sum,
		"text":    sum.Text(),
	})
}

// handleStats returns the sidebar counters: the session's cache and
// limiter state plus process-wide assistant metrics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	total, err := s.deps.Store.CountClients(r.Context())
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	resp := map[string]interface{}{
		"session":       sess.Stats(),
		"assistant":     s.deps.Collector.Stats(),
		"total_clients": total,
	}
	if s.deps.Breakers != nil {
		resp["circuit_breakers"] = s.deps.Breakers.States()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.ClearCache()
	s.log.Info().Str("session_id", sess.ID()).Msg("response cache cleared")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "cleared",
		"cache":  sess.Stats().Cache,
	})
}

type modelView struct {
	llm.ModelInfo
	Default bool   `json:"default"`
	Breaker string `json:"circuit_breaker,omitempty"`
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	def := llm.ModelSonnet
	if s.deps.Sessions != nil {
		def = s.deps.Sessions.DefaultModel()
	}
	out := make([]modelView, 0, len(llm.Models()))
	for _, m := range llm.Models() {
		v := modelView{ModelInfo: m.Info(), Default: m == def}
		if s.deps.Breakers != nil {
			v.Breaker = s.deps.Breakers.Get(m).State().String()
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": out})
}

// handleListRequests pages through the request log and adds aggregate
// stats for the last `hours` hours (default 24).
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	hours := queryInt(r, "hours", 24)
	if limit < 1 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if hours < 1 {
		hours = 24
	}

	reqs, err := s.deps.Store.ListRequests(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	if reqs == nil {
		reqs = []store.RequestLog{}
	}
	stats, err := s.deps.Store.GetRequestStats(r.Context(), s.deps.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": reqs,
		"limit":    limit,
		"offset":   offset,
		"stats":    stats,
	})
}
