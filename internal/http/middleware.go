package httpapi

import (
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/authn"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so that the first one is outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestID reuses the caller's X-Request-ID or generates one, and stores a
// request-scoped logger carrying it.
func RequestID(base *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)
			ctx := logger.WithContext(r.Context(), base.With(zap.String("request_id", requestID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery(base *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.FromContext(r.Context(), base).Error("panic recovered",
						zap.Any("error", rec),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
						zap.ByteString("stack", debug.Stack()),
					)
					writeJSON(w, http.StatusInternalServerError, Fail("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// HTTPRecorder receives one observation per completed request.
type HTTPRecorder interface {
	TrackInFlight() func()
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// AccessLog logs every request and reports it to rec when rec is not nil.
func AccessLog(base *zap.Logger, rec HTTPRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rec != nil {
				defer rec.TrackInFlight()()
			}
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			latency := time.Since(start)

			level := zapcore.InfoLevel
			switch {
			case sw.status >= 500:
				level = zapcore.ErrorLevel
			case sw.status >= 400:
				level = zapcore.WarnLevel
			}
			logger.FromContext(r.Context(), base).Check(level, "request").Write(
				zap.Int("status", sw.status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
			if rec != nil {
				path := r.URL.Path
				if sw.status == http.StatusNotFound {
					// unknown paths would otherwise become unbounded label values
					path = "unmatched"
				}
				rec.RecordHTTPRequest(r.Method, path, sw.status, latency)
			}
		})
	}
}

// Authenticate attaches the caller to the request context. Requests without
// credentials pass through without an actor; bad credentials get a 401.
func Authenticate(a *authn.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := a.Authenticate(r)
			switch {
			case err == nil:
				ctx := authn.WithActor(r.Context(), actor)
				ctx = logger.WithContext(ctx, logger.FromContext(ctx, nil).With(zap.String("user_id", actor.User.ID)))
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, authn.ErrUnauthenticated):
				next.ServeHTTP(w, r)
			default:
				writeJSON(w, http.StatusUnauthorized, FailWith(ResultTokenExpired, err.Error(), nil))
			}
		})
	}
}
