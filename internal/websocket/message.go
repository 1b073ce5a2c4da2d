package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// Server to Client
	MessageTypeTaskCreated MessageType = "TASK_CREATED"
	MessageTypeTaskUpdated MessageType = "TASK_UPDATED"
	MessageTypeTaskDeleted MessageType = "TASK_DELETED"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// TaskDeletedPayload is sent in place of the full task once it is gone.
type TaskDeletedPayload struct {
	TaskID string `json:"taskId"`
}
