package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

// WriteJSON writes data as a compact JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return WriteBody(w, status, nil, bytes.TrimRight(buf.Bytes(), "\n"))
}

// WriteBody writes pre-encoded JSON with extra headers. Content-Length is
// always derived from data.
func WriteBody(w http.ResponseWriter, status int, headers http.Header, data []byte) error {
	h := w.Header()
	for k, values := range headers {
		h.Del(k)
		for _, v := range values {
			h.Add(k, v)
		}
	}
	if h.Get("Content-Type") == "" && len(data) > 0 {
		h.Set("Content-Type", "application/json")
	}
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

// DetailResponse is the error envelope: {"detail": ...}
type DetailResponse struct {
	Detail interface{} `json:"detail"`
}

// WriteDetail writes an error response whose body is {"detail": detail}
func WriteDetail(w http.ResponseWriter, status int, detail interface{}) {
	_ = WriteJSON(w, status, DetailResponse{Detail: detail})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteDetail(w, http.StatusBadRequest, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter) {
	WriteDetail(w, http.StatusNotFound, "Not Found")
}

// WriteMethodNotAllowed writes a method not allowed error (405)
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

// WriteUnprocessable writes a validation error (422) listing field errors
func WriteUnprocessable(w http.ResponseWriter, errs interface{}) {
	WriteDetail(w, http.StatusUnprocessableEntity, errs)
}

// WriteInternalError writes a generic 500. The cause is never exposed.
func WriteInternalError(w http.ResponseWriter) {
	WriteDetail(w, http.StatusInternalServerError, "Internal Server Error")
}
