package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	"github.com/apologystake/stake-server/pkg/database/query"
)

const (
	successJsonKey = "success"
	errorJsonKey   = "error"
)

var errTooManyRequests = errors.New("too many requests")

type GenericApiResponseBody map[string]any

func NewGenericApiSuccessResponseBody() GenericApiResponseBody {
	return map[string]any{
		successJsonKey: true,
	}
}

func NewGenericApiFailureResponseBody(err error) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: false,
		errorJsonKey:   err.Error(),
	}
}

func (b *GenericApiResponseBody) ToString() string {
	marshalled, _ := json.Marshal(b)
	return string(marshalled)
}

// HandleDataErrorInWebContext maps data layer errors to a status code and an
// error that is safe to return to clients
func HandleDataErrorInWebContext(err error) (int, error) {
	switch {
	case err == nil:
		return http.StatusOK, nil
	case errors.Is(err, apology.ErrApologyNotFound):
		return http.StatusNotFound, errors.New("apology not found")
	case errors.Is(err, query.ErrQueryNotSupported):
		return http.StatusBadRequest, errors.New("unsupported query")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, errors.New("request timed out")
	default:
		return http.StatusInternalServerError, errors.New("internal server error")
	}
}
