package server

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in the error envelope.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotConfigured      = "NOT_CONFIGURED"
	CodeForbidden          = "FORBIDDEN"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeTokenMisconfigured = "TOKEN_NOT_CONFIGURED"
	CodeInternalError      = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes {"error":{"code":...,"message":...}} with statusCode.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
