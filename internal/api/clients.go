package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/allaspectsdev/legalsmart/internal/export"
	"github.com/allaspectsdev/legalsmart/internal/store"
)

// parseFilter reads the client filter from the query string. Age bounds
// that are present but not integers are an error.
func parseFilter(r *http.Request) (store.ClientFilter, error) {
	q := r.URL.Query()
	f := store.ClientFilter{
		NameContains:       strings.TrimSpace(q.Get("name")),
		LegalIssue:         strings.TrimSpace(q.Get("legal_issue")),
		LegalIssueContains: strings.TrimSpace(q.Get("legal_issue_contains")),
	}
	for _, b := range []struct {
		key string
		dst **int
	}{{"min_age", &f.MinAge}, {"max_age", &f.MaxAge}} {
		raw := strings.TrimSpace(q.Get(b.key))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("%s must be an integer", b.key)
		}
		*b.dst = &v
	}
	return f, nil
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clients, err := s.deps.Store.ListClients(r.Context(), f)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clients": clients,
		"count":   len(clients),
	})
}

func (s *Server) handleAddClient(w http.ResponseWriter, r *http.Request) {
	var in store.NewClient
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := s.deps.Store.AddClient(r.Context(), in)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	c, err := s.deps.Store.GetClient(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/clients/%d", id))
	writeJSON(w, http.StatusCreated, c)
}

func clientID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}
	c, err := s.deps.Store.GetClient(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}
	if err := s.deps.Store.DeleteClient(r.Context(), id); err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	s.log.Info().Int64("client_id", id).Msg("client deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLegalIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.deps.Store.LegalIssues(r.Context())
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"legal_issues": issues})
}

// handleExport streams the filtered client list as an attachment.
func (s *Server) handleExport(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := export.ParseFormat(format)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter, err := parseFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		clients, err := s.deps.Store.ListClients(r.Context(), filter)
		if err != nil {
			writeServiceError(w, s.log, err)
			return
		}
		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", export.Filename(f, s.deps.Now())))
		if err := export.Write(w, f, clients); err != nil {
			// Headers are already sent; all that is left is to log.
			s.log.Error().Err(err).Str("format", format).Msg("export failed")
		}
	}
}
