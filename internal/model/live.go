package model

import (
	"encoding/json"
	"time"
)

// CloseJobNotFound is the live-transport close code for an unknown job
const CloseJobNotFound = 4004

// ============================================================================
// Client -> server
// ============================================================================

// ClientMessageType is the "type" discriminator of an inbound frame
type ClientMessageType string

const (
	ClientMessageGetStatus ClientMessageType = "get_status"
	ClientMessageCancelJob ClientMessageType = "cancel_job"
)

// ClientRequest is the closed set of requests a subscriber can send.
// Implementations: GetStatusRequest, CancelJobRequest, UnknownRequest.
type ClientRequest interface {
	clientRequest()
}

// GetStatusRequest asks for a fresh current_status snapshot
type GetStatusRequest struct{}

// CancelJobRequest asks for cooperative cancellation of the job
type CancelJobRequest struct{}

// UnknownRequest carries a type the server does not understand
type UnknownRequest struct {
	Type string
}

func (GetStatusRequest) clientRequest() {}
func (CancelJobRequest) clientRequest() {}
func (UnknownRequest) clientRequest()   {}

// ParseClientMessage decodes an inbound frame. The error is only non-nil for
// frames that are not JSON objects.
func ParseClientMessage(data []byte) (ClientRequest, error) {
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, err
	}

	switch ClientMessageType(frame.Type) {
	case ClientMessageGetStatus:
		return GetStatusRequest{}, nil
	case ClientMessageCancelJob:
		return CancelJobRequest{}, nil
	default:
		return UnknownRequest{Type: frame.Type}, nil
	}
}

// ============================================================================
// Server -> client
// ============================================================================

// ServerMessageType is the "type" discriminator of an outbound frame
type ServerMessageType string

const (
	ServerMessageCurrentStatus         ServerMessageType = "current_status"
	ServerMessageProgressUpdate        ServerMessageType = "progress_update"
	ServerMessageStatusChange          ServerMessageType = "status_change"
	ServerMessageJobCompleted          ServerMessageType = "job_completed"
	ServerMessageJobError              ServerMessageType = "job_error"
	ServerMessageCancellationRequested ServerMessageType = "cancellation_requested"
	ServerMessageError                 ServerMessageType = "error"
)

// ServerMessage is one outbound frame
type ServerMessage struct {
	Type    ServerMessageType `json:"type"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
}

// NewErrorMessage builds an error reply for a single subscriber
func NewErrorMessage(message string) *ServerMessage {
	return &ServerMessage{Type: ServerMessageError, Message: message}
}

// ProgressUpdate is the payload of a progress_update event
type ProgressUpdate struct {
	JobID        string      `json:"job_id"`
	Iteration    int         `json:"iteration"`
	BestSolution interface{} `json:"best_solution"`
	Timestamp    time.Time   `json:"timestamp"`
}

// StatusChange is the payload of a status_change event
type StatusChange struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// JobCompleted is the payload of a job_completed event
type JobCompleted struct {
	JobID            string      `json:"job_id"`
	CurrentIteration int         `json:"current_iteration"`
	FinalSolution    interface{} `json:"final_solution,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
}

// JobError is the payload of a job_error event
type JobError struct {
	JobID        string    `json:"job_id"`
	ErrorMessage string    `json:"error_message"`
	Timestamp    time.Time `json:"timestamp"`
}
