package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

var kindStatus = map[error]int{
	exception.ErrBatchTooLarge:       http.StatusUnprocessableEntity,
	exception.ErrEmptyTable:          http.StatusNotFound,
	exception.ErrUnknownEntity:       http.StatusNotFound,
	exception.ErrEmptyBackup:         http.StatusBadRequest,
	exception.ErrMalformedBackup:     http.StatusBadRequest,
	exception.ErrSchemaMismatch:      http.StatusBadRequest,
	exception.ErrInvalidRequest:      http.StatusBadRequest,
	exception.ErrRestoreDeleteFailed: http.StatusInternalServerError,
}

// statusFor maps an error kind to an HTTP status. Unclassified errors are 500.
func statusFor(err error) int {
	for kind, status := range kindStatus {
		if errors.Is(err, kind) {
			return status
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("Failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := exception.KindName(err)
	if code == "" {
		code = "InternalError"
	}
	detail := errorDetail{Code: code, Message: exception.ExtractErrorMessage(err)}

	var ee *exception.ExchangeError
	if errors.As(err, &ee) {
		detail.Details = ee.Details
	}
	if status >= http.StatusInternalServerError {
		logger.Errorf("Request failed: %v", err)
	} else {
		logger.Debugf("Request rejected (%d): %v", status, err)
	}
	writeJSON(w, status, errorBody{Error: detail})
}
