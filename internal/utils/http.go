package utils

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// GetPathParam extracts a chi route parameter.
func GetPathParam(r *http.Request, param string) string {
	return chi.URLParam(r, param)
}

// GetPathParamInt extracts a path parameter and converts it to int
func GetPathParamInt(r *http.Request, param string) (int, error) {
	return strconv.Atoi(GetPathParam(r, param))
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, data any, statusCode int) error {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, `{"error":"failed to encode response","reason":"internal"}`, http.StatusInternalServerError)
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(body)
	return err
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, message, reason string, statusCode int) {
	_ = RespondJSON(w, ErrorResponse{Error: message, Reason: reason}, statusCode)
}

// DecodeJSON reads a JSON request body into dst. An empty body leaves dst untouched.
func DecodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return errors.New("request body too large")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
