package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"salonbook/internal/metrics"
)

type contextKey string

const clientIDKey contextKey = "clientID"

// callerLimiter keeps one token bucket per caller.
type callerLimiter struct {
	mu      sync.Mutex
	callers map[string]*callerBucket
	rate    rate.Limit
	burst   int
}

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newCallerLimiter(perSecond float64, burst int) *callerLimiter {
	return &callerLimiter{
		callers: make(map[string]*callerBucket),
		rate:    rate.Limit(perSecond),
		burst:   burst,
	}
}

func (l *callerLimiter) allow(key string) bool {
	l.mu.Lock()
	b, ok := l.callers[key]
	if !ok {
		b = &callerBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.callers[key] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()
	return b.limiter.Allow()
}

func (l *callerLimiter) sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-idle)
	removed := 0
	for key, b := range l.callers {
		if b.lastSeen.Before(cutoff) {
			delete(l.callers, key)
			removed++
		}
	}
	return removed
}

// callerKey identifies the caller by a verified credential. Unknown tokens
// and wrong keys fall back to the address set by RealIP.
func (s *Server) callerKey(r *http.Request) string {
	acc := s.portal.Access()
	if t := r.Header.Get(headerSession); t != "" {
		if clientID, err := acc.ClientFor(t); err == nil {
			return "client:" + clientID
		}
	}
	if k := r.Header.Get(headerAPIKey); k != "" && acc.CheckAdminKey(k) == nil {
		return "admin"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(s.callerKey(r)) {
			writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request and counts it by route pattern and status.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.IncAPIRequest(route, strconv.Itoa(status))

		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

func (s *Server) requireClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, err := s.portal.Access().ClientFor(r.Header.Get(headerSession))
		if err != nil {
			s.writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), clientIDKey, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.portal.Access().CheckAdminKey(r.Header.Get(headerAPIKey)); err != nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}
