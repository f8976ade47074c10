package queue

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// JobMessage is the payload of a source-queue delivery.
type JobMessage struct {
	Key        string `json:"key" validate:"required"`
	BucketRef  string `json:"bucketRef,omitempty"`
	BucketName string `json:"bucketName,omitempty"`
	VideoID    string `json:"videoID,omitempty"`
	JobID      string `json:"jobId,omitempty"`
}

// Bucket returns the bucket named by the message, if any.
func (m JobMessage) Bucket() string {
	if m.BucketRef != "" {
		return m.BucketRef
	}
	return m.BucketName
}

// CorrelationID returns the id used for the status-store row, if any.
func (m JobMessage) CorrelationID() string {
	if m.VideoID != "" {
		return m.VideoID
	}
	return m.JobID
}

func ParseJobMessage(body string) (JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return JobMessage{}, fmt.Errorf("invalid message body: %w", err)
	}
	if err := validate.Struct(msg); err != nil {
		return JobMessage{}, fmt.Errorf("invalid message: %w", err)
	}
	return msg, nil
}

// CompletionMessage is published to the result queue after an upload.
type CompletionMessage struct {
	Key        string `json:"key"`
	BucketName string `json:"bucketName"`
}

func (m CompletionMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}
