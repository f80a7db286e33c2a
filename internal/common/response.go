package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorBody is the payload under the "error" key of every failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON encodes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes {"error":{code,message,details}}.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, errorEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// WriteError renders err in the error envelope. Anything that is not an
// AppError becomes an opaque 500, and details never leak on 5xx.
func WriteError(w http.ResponseWriter, err error) {
	body := ErrorBody{Code: CodeInternal, Message: "internal error"}
	status := http.StatusInternalServerError

	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus != 0 {
			status = appErr.HTTPStatus
		}
		if appErr.Code != "" {
			body.Code = appErr.Code
		}
		if appErr.Message != "" {
			body.Message = appErr.Message
		}
		if status < http.StatusInternalServerError {
			body.Details = appErr.Details
		}
	}
	JSON(w, status, errorEnvelope{Error: body})
}
