// Package handlers provides HTTP handlers for the clinical API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medassist/clinical-core/internal/acidbase"
	"github.com/medassist/clinical-core/internal/fhir/mapper"
	fhir "github.com/medassist/clinical-core/internal/fhir/r5"
	"github.com/medassist/clinical-core/internal/partogram"
)

const (
	contentTypeJSON = "application/json"
	contentTypeFHIR = "application/fhir+json"

	// maxBodyBytes bounds every request body.
	maxBodyBytes = 1 << 20
)

// ErrorResponse is the body of every non-FHIR error.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeFHIR(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeFHIR)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, ErrorResponse{Error: message})
}

func wantsFHIR(r *http.Request) bool {
	return r.URL.Query().Get("format") == "fhir"
}

// decode reads a size-limited JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// invalidField returns the offending field of an engine validation error.
func invalidField(err error) (string, bool) {
	var abErr *acidbase.ValidationError
	if errors.As(err, &abErr) {
		return abErr.Field, true
	}
	var pgErr *partogram.ValidationError
	if errors.As(err, &pgErr) {
		return pgErr.Field, true
	}
	if errors.Is(err, partogram.ErrInvalidConfig) {
		return "config", true
	}
	return "", false
}

// validationError writes a 400 for an engine input error, as an
// OperationOutcome when FHIR output was requested.
func validationError(w http.ResponseWriter, r *http.Request, err error) {
	if wantsFHIR(r) {
		writeFHIR(w, http.StatusBadRequest, mapper.OperationOutcomeFor(err))
		return
	}
	field, _ := invalidField(err)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: field})
}

// fhirError writes a non-validation error in the requested format.
func fhirError(w http.ResponseWriter, r *http.Request, message string, code int, issue string) {
	if wantsFHIR(r) {
		writeFHIR(w, code, fhir.NewErrorOutcome(issue, message))
		return
	}
	jsonError(w, message, code)
}
