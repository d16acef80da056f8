package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/allaspectsdev/legalsmart/internal/assistant"
)

type sessionKey struct{}

// withSession resolves the assistant session named by the X-Session-ID
// header, issuing a new one when it is absent or unknown. The id in use is
// always echoed back in the response header.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Sessions == nil {
			writeError(w, http.StatusServiceUnavailable, "assistant is not available")
			return
		}
		sess, err := s.deps.Sessions.Get(r.Header.Get(SessionHeader))
		if err != nil {
			s.log.Error().Err(err).Msg("creating session")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.Header().Set(SessionHeader, sess.ID())
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *assistant.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*assistant.Session)
	return sess
}

// accessLog writes one structured line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := s.log.Debug()
		if status >= 500 {
			ev = s.log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
