package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-events/internal/dbresult"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// StatusFor maps a failure kind onto an HTTP status code.
func StatusFor(kind dbresult.Kind) int {
	switch kind {
	case dbresult.KindValidation:
		return http.StatusBadRequest
	case dbresult.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromResult builds the response envelope and status for a repository result.
// successStatus is used when the result succeeded.
func FromResult[T any](res dbresult.Result[T], message string, successStatus int) (int, APIResponse) {
	if res.Success {
		return successStatus, SuccessResponse(message, res.Data)
	}
	return StatusFor(res.Kind), ErrorResponse(message, res.Error)
}

// WriteJSON writes body with status. The status is already sent when an
// encoding error is returned, so callers can only log it.
func WriteJSON(w http.ResponseWriter, status int, body APIResponse) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}
