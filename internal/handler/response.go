package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/forgo/planner/api/internal/model"
)

// maxBodyBytes caps request bodies; problem payloads carry every
// preference row of a recruitment.
const maxBodyBytes = 8 << 20

// DataResponse is the envelope for a single resource
type DataResponse struct {
	Data  interface{}       `json:"data"`
	Links map[string]string `json:"_links,omitempty"`
}

// CollectionResponse is the envelope for a list and its size
type CollectionResponse struct {
	Data  interface{}       `json:"data"`
	Count int               `json:"count"`
	Links map[string]string `json:"_links,omitempty"`
}

// WriteJSON writes body as JSON with the given status. A nil body sends
// headers only.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// WriteData writes a single resource envelope
func WriteData(w http.ResponseWriter, status int, data interface{}, links map[string]string) {
	WriteJSON(w, status, DataResponse{Data: data, Links: links})
}

// WriteCollection writes a list envelope
func WriteCollection(w http.ResponseWriter, status int, data interface{}, count int, links map[string]string) {
	WriteJSON(w, status, CollectionResponse{Data: data, Count: count, Links: links})
}

// WriteError writes an RFC 9457 problem response. The request path becomes
// the problem instance unless one is already set.
func WriteError(w http.ResponseWriter, r *http.Request, problem *model.ProblemDetails) {
	if problem.Instance == "" && r != nil {
		problem = problem.WithInstance(r.URL.Path)
	}
	problem.WriteJSON(w)
}

// DecodeJSON strictly decodes a single JSON value from the request body.
// Unknown fields, trailing data and bodies over maxBodyBytes are errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must hold a single JSON value")
	}
	return nil
}

// jobLinks returns the navigation links for a job resource
func jobLinks(jobID string) map[string]string {
	return map[string]string{
		"self":     "/v1/jobs/" + jobID,
		"status":   "/v1/jobs/" + jobID + "/status",
		"progress": "/v1/jobs/" + jobID + "/progress",
		"cancel":   "/v1/jobs/" + jobID + "/cancel",
		"live":     "/ws/jobs/" + jobID + "/",
	}
}
