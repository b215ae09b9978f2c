package json

import (
	"encoding/json"
	"net/http"

	"github.com/dgellow/oauth-front/internal/log"
)

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// WriteResponse writes a JSON response with the given status code.
func WriteResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.LogError("Failed to encode JSON response: %v", err)
		return err
	}
	return nil
}

// Write writes a JSON response with 200 OK status.
func Write(w http.ResponseWriter, data any) error {
	return WriteResponse(w, http.StatusOK, data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, errCode string, message string) {
	response := ErrorResponse{
		Error:   errCode,
		Message: message,
	}

	if err := WriteResponse(w, statusCode, response); err != nil {
		http.Error(w, errCode+": "+message, statusCode)
	}
}

// WriteConfigurationError writes a 500 itemizing the missing settings.
func WriteConfigurationError(w http.ResponseWriter, missing []string) {
	_ = WriteResponse(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "configuration_error",
		Message: "server configuration is incomplete",
		Missing: missing,
	})
}

// WriteInternalServerError writes a generic 500 with no internal detail.
func WriteInternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_server_error", message)
}
