package session

import (
	"net/http"

	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

// Middleware loads the session before next runs and commits it right before
// the response status is written, so the Set-Cookie header and the stored
// values are in place before the client can follow a redirect.
func (st *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s, err := st.Load(ctx, r)
		if err != nil {
			logger.From(ctx).Error("session load failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
			return
		}

		cw := &committingWriter{ResponseWriter: w, store: st, session: s, r: r}
		next.ServeHTTP(cw, r.WithContext(WithSession(ctx, s)))
		cw.commit()
	})
}

type committingWriter struct {
	http.ResponseWriter
	store       *Store
	session     *Session
	r           *http.Request
	wroteHeader bool
}

func (cw *committingWriter) commit() {
	issue, err := cw.store.Save(cw.r.Context(), cw.session)
	if err != nil {
		logger.From(cw.r.Context()).Error("session save failed", logger.SessionID(cw.session.ID()), logger.Err(err))
		return
	}
	if !issue || cw.wroteHeader {
		return
	}
	c, err := cw.store.Cookie(cw.session)
	if err != nil {
		logger.From(cw.r.Context()).Error("session cookie encode failed", logger.Err(err))
		return
	}
	http.SetCookie(cw.ResponseWriter, c)
}

func (cw *committingWriter) WriteHeader(code int) {
	if !cw.wroteHeader {
		cw.commit()
		cw.wroteHeader = true
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *committingWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (cw *committingWriter) Unwrap() http.ResponseWriter { return cw.ResponseWriter }
