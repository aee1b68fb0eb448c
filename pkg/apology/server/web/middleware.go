package web

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDHeaderName = "x-request-id"
	clientIPHeaderName  = "x-forwarded-for"
)

type requestIDContextKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeaderName)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		w.Header().Set(requestIDHeaderName, requestID)
		ctx := context.WithValue(r.Context(), requestIDContextKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)

		if !s.limiter.Allow(ip) {
			s.writeResponse(
				s.log.WithField("ip", ip),
				w,
				http.StatusTooManyRequests,
				NewGenericApiFailureResponseBody(errTooManyRequests),
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP gets the client's IP address, preferring the first hop set by
// a proxy
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get(clientIPHeaderName); len(forwarded) > 0 {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
