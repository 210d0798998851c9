package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/observability"
)

// Envelope is the uniform response body for all API endpoints
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WriteData writes a success envelope carrying a single entity
func WriteData(w http.ResponseWriter, status int, data interface{}) error {
	return WriteJSON(w, status, Envelope{
		Success: true,
		Data:    data,
	})
}

// WriteList writes a success envelope carrying a collection and its count
func WriteList(w http.ResponseWriter, data interface{}, count int) error {
	return WriteJSON(w, http.StatusOK, Envelope{
		Success: true,
		Count:   &count,
		Data:    data,
	})
}

// WriteMessage writes a success envelope with a message and optional data
func WriteMessage(w http.ResponseWriter, status int, message string, data interface{}) error {
	return WriteJSON(w, status, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteCreated writes a successful creation response (201 Created)
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteData(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK)
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteData(w, http.StatusOK, data)
}

// WriteAppError maps a domain error to its HTTP status and writes the
// failure envelope. Internal errors are logged and masked; every other
// kind carries its message to the client verbatim.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).Error("Request failed")
		message = "internal server error"
	}

	WriteJSON(w, status, Envelope{
		Success: false,
		Message: message,
	})
}

// WriteErrorMessage writes a failure envelope with an explicit status
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{
		Success: false,
		Message: message,
	})
}

// WriteNotFound writes the catch-all 404 failure envelope
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteInternalError writes a masked internal error response
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}
