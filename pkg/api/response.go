package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/trail-community-service/pkg/frames"
	"github.com/gilchrisn/trail-community-service/pkg/models"
	"github.com/gilchrisn/trail-community-service/pkg/parser"
	"github.com/gilchrisn/trail-community-service/pkg/service"
)

// APIResponse is the envelope of every JSON reply
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// WriteSuccessResponse writes a successful JSON response
func WriteSuccessResponse(w http.ResponseWriter, r *http.Request, message string, data interface{}) {
	writeJSONResponse(w, r, http.StatusOK, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteErrorResponse writes an error JSON response
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	response := APIResponse{
		Success: false,
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}
	writeJSONResponse(w, r, statusCode, response)
}

// WriteValidationErrorResponse writes a 400 listing each invalid field
func WriteValidationErrorResponse(w http.ResponseWriter, r *http.Request, message string, fieldErrors map[string]string) {
	writeJSONResponse(w, r, http.StatusBadRequest, APIResponse{
		Success: false,
		Message: message,
		Data:    map[string]interface{}{"validation_errors": fieldErrors},
	})
}

// writeAnalysisError maps domain errors onto HTTP statuses
func writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unknown *frames.UnknownCommunityError
		missing *parser.MissingColumnsError
		invalid validator.ValidationErrors
	)
	switch {
	case errors.Is(err, service.ErrDatasetNotFound):
		WriteErrorResponse(w, r, http.StatusNotFound, "Dataset not found", err)
	case models.IsNoData(err):
		WriteErrorResponse(w, r, http.StatusNotFound, "No data for year", err)
	case errors.As(err, &unknown):
		WriteErrorResponse(w, r, http.StatusNotFound, "Community not found", err)
	case errors.As(err, &missing), errors.Is(err, models.ErrMalformedRecord):
		WriteErrorResponse(w, r, http.StatusBadRequest, "Invalid journal table", err)
	case errors.As(err, &invalid):
		WriteValidationErrorResponse(w, r, "Invalid request", fieldErrors(invalid))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		WriteErrorResponse(w, r, http.StatusInternalServerError, "Internal server error", err)
	}
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fe.Tag()
		if fe.Param() != "" {
			out[fe.Field()] = fe.Tag() + "=" + fe.Param()
		}
	}
	return out
}

func writeJSONResponse(w http.ResponseWriter, r *http.Request, statusCode int, response APIResponse) {
	if r != nil {
		response.RequestID = RequestIDFrom(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger := zerolog.Nop()
		if r != nil {
			logger = *zerolog.Ctx(r.Context())
		}
		logger.Error().
			Err(err).
			Int("status_code", statusCode).
			Msg("Failed to encode JSON response")
	}
}
