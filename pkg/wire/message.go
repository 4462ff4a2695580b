// Package wire defines the JSON frame envelope exchanged between the base
// station and field devices, and the typed, validating decoder that turns
// raw bytes into one of a fixed set of message kinds at the boundary.
// Downstream code (transport, dispatch, reconcile) never touches raw JSON;
// it only ever sees a decoded Envelope plus one typed Content value.
package wire

import (
	"encoding/json"
	"fmt"
)

// MessageType enumerates the frame kinds exchanged over UDP and TCP (§6).
type MessageType string

const (
	MessageConnectionRequest MessageType = "CONNECTION_REQUEST"
	MessageConnectionAck     MessageType = "CONNECTION_ACK"
	MessageHeartbeat         MessageType = "HEARTBEAT"
	MessagePositionUpdate    MessageType = "POSITION_UPDATE"
	MessageQRScan            MessageType = "QR_SCAN"
	MessageMovementCommand   MessageType = "MOVEMENT_COMMAND"
	MessageTaskCompleted     MessageType = "TASK_COMPLETED"
	MessageForwardAll        MessageType = "FORWARD_ALL"
	MessageForwardTo         MessageType = "FORWARD_TO"
)

// DeviceKind enumerates the field device categories (§3).
type DeviceKind string

const (
	DeviceKindDrone DeviceKind = "drone"
	DeviceKindRobot DeviceKind = "robot"
)

// Position is a 3D coordinate shared by issues and device telemetry.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Envelope is the common frame header present on every message, newline-
// framed on streams and carried whole in a single UDP datagram (§6).
type Envelope struct {
	MessageID   string          `json:"message_id"`
	Timestamp   float64         `json:"timestamp"`
	MessageType MessageType     `json:"message_type"`
	SenderID    string          `json:"sender_id,omitempty"`
	DeviceID    string          `json:"device_id,omitempty"`
	SenderIP    string          `json:"sender_ip,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`

	// Fields that ride directly on the envelope for datagram messages
	// rather than nested under Content, matching the original protocol.
	DeviceType    DeviceKind `json:"device_type,omitempty"`
	ReplyTCPPort  int        `json:"reply_tcp_port,omitempty"`
	Position      *Position  `json:"position,omitempty"`
	BatteryHealth *float64   `json:"battery_health,omitempty"`

	BaseStationIP string `json:"base_station_ip,omitempty"`
	ReceiverID    string `json:"receiver_id,omitempty"`
	ReceiverIP    string `json:"receiver_ip,omitempty"`
}

// Identity returns whichever of device_id/sender_id is populated.
func (e *Envelope) Identity() string {
	if e.DeviceID != "" {
		return e.DeviceID
	}
	return e.SenderID
}

// QRScanContent is the payload of a QR_SCAN frame (§6).
type QRScanContent struct {
	QRCode      string                 `json:"qr_code"`
	IssueType   string                 `json:"issue_type"`
	Coordinates *Position              `json:"coordinates"`
	APIData     map[string]interface{} `json:"api_data,omitempty"`
}

// MovementCommandContent is the payload of a MOVEMENT_COMMAND frame (§6).
type MovementCommandContent struct {
	IssueType   string    `json:"issue_type"`
	Coordinates *Position `json:"coordinates"`
	Command     string    `json:"command"`
}

// TaskCompletedContent is the payload of a TASK_COMPLETED frame (§6).
type TaskCompletedContent struct {
	TaskID      string    `json:"task_id"`
	IssueType   string    `json:"issue_type"`
	Coordinates *Position `json:"coordinates"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
}

// Validate checks that a QR_SCAN content carries the fields the issue
// store needs to admit it. Missing issue_type or coordinates is an error
// for this frame only; it does not affect other frames on the connection.
func (c *QRScanContent) Validate() error {
	if c.IssueType == "" {
		return fmt.Errorf("wire: QR_SCAN missing issue_type")
	}
	if c.Coordinates == nil {
		return fmt.Errorf("wire: QR_SCAN missing coordinates")
	}
	return nil
}

// Validate checks that a TASK_COMPLETED content carries a task_id.
func (c *TaskCompletedContent) Validate() error {
	if c.TaskID == "" {
		return fmt.Errorf("wire: TASK_COMPLETED missing task_id")
	}
	return nil
}
