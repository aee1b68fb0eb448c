package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	apology_data "github.com/apologystake/stake-server/pkg/apology/data"
	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	"github.com/apologystake/stake-server/pkg/database/query"
	rate_util "github.com/apologystake/stake-server/pkg/rate"
)

const (
	v1PathPrefix       = "/v1"
	getApologiesPath   = "/apologies"
	getApologyPath     = "/apology"
	v1GetApologiesPath = v1PathPrefix + getApologiesPath
	v1GetApologyPath   = v1PathPrefix + getApologyPath

	contentTypeHeaderName      = "content-type"
	jsonContentTypeHeaderValue = "application/json"
)

type Server struct {
	log     *logrus.Entry
	conf    *conf
	data    apology_data.DatabaseData
	limiter *rate_util.KeyedLimiter
}

func NewApologyServer(data apology_data.DatabaseData, configProvider ConfigProvider) (*Server, error) {
	conf := configProvider()

	limiter, err := rate_util.NewKeyedLimiter(rate.Limit(conf.requestsPerSecond.Get(context.Background())), rate_util.DefaultMaxKeys)
	if err != nil {
		return nil, err
	}

	return &Server{
		log:     logrus.StandardLogger().WithField("type", "apology/server/web"),
		conf:    conf,
		data:    data,
		limiter: limiter,
	}, nil
}

func (s *Server) getApologiesHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithFields(logrus.Fields{
			"path":       path,
			"request_id": getRequestID(r.Context()),
		})

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodGet {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("http get expected"))
			}

			req, err := newListRequestFromHttpContext(r, s.conf.maxPageSize.Get(ctx))
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
			}
			log = log.WithField("party", req.party.PublicKey().ToBase58())

			var records []*apology.Record
			switch req.kind {
			case partyOffender:
				records, err = s.data.GetAllApologiesByOffender(ctx, req.party.PublicKey().ToBase58(), req.opts...)
			case partyVictim:
				records, err = s.data.GetAllApologiesByVictim(ctx, req.party.PublicKey().ToBase58(), req.opts...)
			}
			if errors.Is(err, apology.ErrApologyNotFound) {
				records, err = nil, nil
			}
			if err != nil {
				log.WithError(err).Warn("failure getting apologies")
				statusCode, err := HandleDataErrorInWebContext(err)
				return statusCode, NewGenericApiFailureResponseBody(err)
			}

			models := make([]*apologyModel, len(records))
			for i, record := range records {
				models[i] = toApologyModel(record)
			}

			respBody := NewGenericApiSuccessResponseBody()
			respBody["apologies"] = models
			if len(records) > 0 {
				respBody["next_cursor"] = query.ToCursor(records[len(records)-1].Id).ToBase58()
			}
			return http.StatusOK, respBody
		}()

		s.writeResponse(log, w, statusCode, body)
	}
}

func (s *Server) getApologyHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithFields(logrus.Fields{
			"path":       path,
			"request_id": getRequestID(r.Context()),
		})

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodGet {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("http get expected"))
			}

			address, err := newAddressFromHttpContext(r)
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
			}
			log = log.WithField("apology", address.PublicKey().ToBase58())

			record, err := s.data.GetApologyByAddress(ctx, address.PublicKey().ToBase58())
			if err != nil {
				if !errors.Is(err, apology.ErrApologyNotFound) {
					log.WithError(err).Warn("failure getting apology")
				}
				statusCode, err := HandleDataErrorInWebContext(err)
				return statusCode, NewGenericApiFailureResponseBody(err)
			}

			respBody := NewGenericApiSuccessResponseBody()
			respBody["apology"] = toApologyModel(record)
			return http.StatusOK, respBody
		}()

		s.writeResponse(log, w, statusCode, body)
	}
}

func (s *Server) writeResponse(log *logrus.Entry, w http.ResponseWriter, statusCode int, body GenericApiResponseBody) {
	w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(body.ToString())); err != nil {
		log.WithError(err).Info("failed to write body")
	}
}

// GetHandlers returns the handlers keyed by their path under the v1 prefix
func (s *Server) GetHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		getApologiesPath: s.getApologiesHandler(v1GetApologiesPath),
		getApologyPath:   s.getApologyHandler(v1GetApologyPath),
	}
}

// Register installs the API under the v1 prefix of router with request IDs and
// per client rate limiting. Requests are traced when app is provided.
func (s *Server) Register(router *mux.Router, app *newrelic.Application) {
	api := router.PathPrefix(v1PathPrefix).Subrouter()
	api.Use(requestIDMiddleware, s.rateLimitMiddleware)

	for path, handler := range s.GetHandlers() {
		if app != nil {
			_, handler = newrelic.WrapHandleFunc(app, v1PathPrefix+path, handler)
		}
		api.HandleFunc(path, handler).Methods(http.MethodGet)
	}
}

func (s *Server) NewRouter(app *newrelic.Application) *mux.Router {
	router := mux.NewRouter()
	s.Register(router, app)
	return router
}
