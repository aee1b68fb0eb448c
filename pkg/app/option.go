package app

import (
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	middleware []mux.MiddlewareFunc
}

// WithMiddleware wraps every route, including the health check, with
// middleware. Middleware runs in the order it was added.
func WithMiddleware(middleware mux.MiddlewareFunc) Option {
	return func(o *opts) {
		o.middleware = append(o.middleware, middleware)
	}
}

// RecoverPanics turns a panicking handler into a 500 response instead of a
// dropped connection.
func RecoverPanics(log *logrus.Entry) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					if recovered == http.ErrAbortHandler {
						panic(recovered)
					}

					log.WithFields(logrus.Fields{
						"method": r.Method,
						"path":   r.URL.Path,
						"panic":  recovered,
						"stack":  string(debug.Stack()),
					}).Error("recovered from handler panic")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
