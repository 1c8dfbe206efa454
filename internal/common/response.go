package common

import (
	"encoding/json"
	"net/http"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Envelope wraps successful payloads. Meta carries endpoint specific flags
// such as whether a draft was restored.
type Envelope struct {
	Data       any            `json:"data"`
	Pagination *Pagination    `json:"pagination,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ErrorBody is the error payload returned by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON writes v as JSON. HTML escaping is off so coupon labels and formatted
// amounts are sent as typed.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// Data writes v inside the success envelope.
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, Envelope{Data: v})
}

// Page writes one page of a list with its pagination metadata.
func Page(w http.ResponseWriter, items any, p Pagination) {
	JSON(w, http.StatusOK, Envelope{Data: items, Pagination: &p})
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, errorEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}})
}
