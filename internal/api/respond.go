package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/legalsmart/internal/assistant"
	"github.com/allaspectsdev/legalsmart/internal/store"
)

// writeJSON serialises v as indented JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to status codes. Anything it does
// not recognise is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var verr *store.ValidationError
	var terr *assistant.ThrottleError

	switch {
	case errors.As(err, &verr):
		problems := make([]map[string]string, 0, len(verr.Problems))
		for _, p := range verr.Problems {
			problems = append(problems, map[string]string{"field": p.Field, "message": p.Message})
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    "invalid client",
			"problems": problems,
		})
	case errors.Is(err, assistant.ErrEmptyQuestion), errors.Is(err, assistant.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &terr):
		secs := int(math.Ceil(terr.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":       terr.Error(),
			"limit":       terr.Limit,
			"retry_after": secs,
		})
	case errors.Is(err, store.ErrClientNotFound):
		writeError(w, http.StatusNotFound, "client not found")
	default:
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// queryInt reads an integer query parameter with a default fallback.
func queryInt(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
