package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/model"
)

// ============================================================================
// HTTP Request Helpers
// ============================================================================

// RequestBuilder helps construct API requests for handler tests
type RequestBuilder struct {
	t      *testing.T
	method string
	path   string
	body   interface{}
	raw    []byte
}

// NewRequest creates a new request builder
func NewRequest(t *testing.T, method, path string) *RequestBuilder {
	t.Helper()
	return &RequestBuilder{t: t, method: method, path: path}
}

// WithBody sets a body that is JSON encoded on Build
func (rb *RequestBuilder) WithBody(body interface{}) *RequestBuilder {
	rb.body = body
	return rb
}

// WithRawBody sets a body that is sent verbatim, for malformed-JSON cases
func (rb *RequestBuilder) WithRawBody(raw string) *RequestBuilder {
	rb.raw = []byte(raw)
	return rb
}

// Build creates the HTTP request
func (rb *RequestBuilder) Build() *http.Request {
	rb.t.Helper()

	var bodyReader io.Reader
	switch {
	case rb.raw != nil:
		bodyReader = bytes.NewReader(rb.raw)
	case rb.body != nil:
		bodyBytes, err := json.Marshal(rb.body)
		if err != nil {
			rb.t.Fatalf("helpers: failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(rb.method, rb.path, bodyReader)
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// ============================================================================
// Response Assertion Helpers
// ============================================================================

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if resp.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, resp.Code, resp.Body.String())
	}
}

// AssertProblemDetails validates an RFC 9457 problem response. A zero
// expectedCode skips the code check.
func AssertProblemDetails(t *testing.T, resp *httptest.ResponseRecorder, expectedStatus int, expectedCode model.ErrorCode) {
	t.Helper()

	AssertStatus(t, resp, expectedStatus)

	var problem model.ProblemDetails
	DecodeResponse(t, resp, &problem)

	if problem.Status != expectedStatus {
		t.Errorf("expected problem.status %d, got %d", expectedStatus, problem.Status)
	}
	if expectedCode != 0 && problem.Code != expectedCode {
		t.Errorf("expected problem.code %d, got %d", expectedCode, problem.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem content type, got %q", ct)
	}
}

// AssertValidationError checks for a 422 with an error on the given field
func AssertValidationError(t *testing.T, resp *httptest.ResponseRecorder, field string) {
	t.Helper()

	AssertStatus(t, resp, http.StatusUnprocessableEntity)

	var problem model.ProblemDetails
	DecodeResponse(t, resp, &problem)

	for _, fe := range problem.Errors {
		if fe.Field == field {
			return
		}
	}
	t.Errorf("expected validation error on field %q, but not found. Errors: %+v", field, problem.Errors)
}

// AssertJSONContains checks top-level keys of the response body. Values are
// compared by their JSON encoding, so 2 and 2.0 match.
func AssertJSONContains(t *testing.T, resp *httptest.ResponseRecorder, expected map[string]interface{}) {
	t.Helper()

	var actual map[string]interface{}
	DecodeResponse(t, resp, &actual)

	for key, expectedVal := range expected {
		actualVal, ok := actual[key]
		if !ok {
			t.Errorf("expected key %q not found in response", key)
			continue
		}
		if !jsonEqual(expectedVal, actualVal) {
			t.Errorf("for key %q: expected %v, got %v", key, expectedVal, actualVal)
		}
	}
}

// DecodeResponse decodes the response body into v
func DecodeResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, v); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, string(bodyBytes))
	}
}

// GetDataFromResponse extracts the "data" object of a success envelope
func GetDataFromResponse(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	DecodeResponse(t, resp, &envelope)
	return envelope.Data
}

// ============================================================================
// Database Assertion Helpers
// ============================================================================

// AssertRecordNotExists checks that a record id selects nothing
func AssertRecordNotExists(t *testing.T, db database.Database, id string) {
	t.Helper()

	if status, found := recordStatus(t, db, id); found {
		t.Errorf("expected record %s to not exist, found it with status %q", id, status)
	}
}

// AssertJobStatus reads a job straight from the database and checks its status
func AssertJobStatus(t *testing.T, db database.Database, id string, expected model.JobStatus) {
	t.Helper()
	assertStoredStatus(t, db, id, string(expected))
}

// AssertRecruitmentStatus reads a recruitment straight from the database and
// checks its lifecycle status
func AssertRecruitmentStatus(t *testing.T, db database.Database, id string, expected model.RecruitmentStatus) {
	t.Helper()
	assertStoredStatus(t, db, id, string(expected))
}

func assertStoredStatus(t *testing.T, db database.Database, id, expected string) {
	t.Helper()

	status, found := recordStatus(t, db, id)
	if !found {
		t.Fatalf("expected record %s to exist", id)
	}
	if status != expected {
		t.Errorf("expected %s status %q, got %q", id, expected, status)
	}
}

func recordStatus(t *testing.T, db database.Database, id string) (string, bool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	row, err := db.QueryOne(ctx, "SELECT status FROM type::record($id)", map[string]interface{}{"id": id})
	if err != nil {
		return "", false
	}
	data, ok := row.(map[string]interface{})
	if !ok {
		return "", true
	}
	status, _ := data["status"].(string)
	return status, true
}

// ============================================================================
// Utility Helpers
// ============================================================================

func jsonEqual(a, b interface{}) bool {
	aBytes, _ := json.Marshal(a)
	bBytes, _ := json.Marshal(b)
	return string(aBytes) == string(bBytes)
}

// StringPtr returns a pointer to the string
func StringPtr(s string) *string {
	return &s
}
