package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

type successResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status  bool   `json:"status"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, successResponse{Status: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorResponse{Status: false, Error: message, Code: code, Details: details})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind common.Kind) int {
	switch kind {
	case common.KindValidation:
		return http.StatusUnprocessableEntity
	case common.KindConflict:
		return http.StatusConflict
	case common.KindUnauthorized:
		return http.StatusUnauthorized
	case common.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders an engine error. Unclassified errors never leak
// their text.
func writeServiceError(w http.ResponseWriter, err error) {
	var e *common.Error
	if !errors.As(err, &e) || e.Kind == common.KindInternal {
		e = common.ErrorInternal
	}
	writeError(w, statusFor(e.Kind), e.Code, e.Message, nil)
}
