package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	OK    bool   `json:"ok" description:"Always false for error responses"`
	Error string `json:"error" description:"Error message"`
	Code  int    `json:"code" description:"HTTP status code"`
}

var (
	ErrEmptyQuestion   = errors.New("question must not be empty")
	ErrInvalidTopK     = errors.New("topK must be between 1 and 50")
	ErrInvalidMinScore = errors.New("minScore must be between 0.0 and 1.0")
)

func HandleError(resp *restful.Response, err error, statusCode int) {
	errorResponse := ErrorResponse{
		OK:    false,
		Error: err.Error(),
		Code:  statusCode,
	}

	resp.WriteHeaderAndEntity(statusCode, errorResponse)
}

// Logger is a request logging filter for the restful container.
func Logger(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)

	log.Info().
		Str("method", req.Request.Method).
		Str("path", req.Request.URL.Path).
		Int("status", resp.StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("Request handled")
}

// RecoverPanic converts handler panics into 500 responses.
func RecoverPanic(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("path", req.Request.URL.Path).
				Msg("Recovered from panic")
			HandleError(resp, errors.New("internal server error"), http.StatusInternalServerError)
		}
	}()
	chain.ProcessFilter(req, resp)
}
