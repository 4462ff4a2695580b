package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for the validating decoder, for callers to match with
// errors.Is. The transport listeners log every decode error the same way
// and drop the frame (protocol error, §7).
var (
	ErrUnknownMessageType = errors.New("wire: unknown message_type")
	ErrMissingField       = errors.New("wire: missing required field")
)

// DecodeEnvelope unmarshals one newline-delimited JSON frame or UDP
// datagram into an Envelope, rejecting an empty or unrecognized
// message_type. It does not validate message-type-specific content;
// callers use DecodeQRScan or DecodeTaskCompleted for that once they know
// which message type they're handling.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: decode envelope: %w", err)
	}
	if env.MessageType == "" {
		return nil, fmt.Errorf("%w: empty message_type", ErrMissingField)
	}
	switch env.MessageType {
	case MessageConnectionRequest, MessageConnectionAck, MessageHeartbeat, MessagePositionUpdate,
		MessageQRScan, MessageMovementCommand, MessageTaskCompleted, MessageForwardAll, MessageForwardTo:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.MessageType)
	}
	return &env, nil
}

// DecodeQRScan decodes and validates a QR_SCAN envelope's content.
func DecodeQRScan(env *Envelope) (*QRScanContent, error) {
	var content QRScanContent
	if len(env.Content) > 0 {
		if err := json.Unmarshal(env.Content, &content); err != nil {
			return nil, fmt.Errorf("wire: decode QR_SCAN content: %w", err)
		}
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	return &content, nil
}

// DecodeTaskCompleted decodes and validates a TASK_COMPLETED envelope's content.
func DecodeTaskCompleted(env *Envelope) (*TaskCompletedContent, error) {
	var content TaskCompletedContent
	if len(env.Content) > 0 {
		if err := json.Unmarshal(env.Content, &content); err != nil {
			return nil, fmt.Errorf("wire: decode TASK_COMPLETED content: %w", err)
		}
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	return &content, nil
}

// EncodeMovementCommand builds the frame sent to a robot to dispatch it to
// an issue coordinate. The task ID rides in the envelope's message_id, per §6.
func EncodeMovementCommand(taskID, senderIP string, issueType string, coord Position) ([]byte, error) {
	content, err := json.Marshal(MovementCommandContent{
		IssueType:   issueType,
		Coordinates: &coord,
		Command:     "move_to_location",
	})
	if err != nil {
		return nil, fmt.Errorf("wire: encode MOVEMENT_COMMAND content: %w", err)
	}

	env := Envelope{
		MessageID:   taskID,
		MessageType: MessageMovementCommand,
		SenderIP:    senderIP,
		Content:     content,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("wire: encode MOVEMENT_COMMAND: %w", err)
	}
	return append(data, '\n'), nil
}

// EncodeConnectionAck builds the ack frame sent in reply to a CONNECTION_REQUEST.
func EncodeConnectionAck(baseStationIP, receiverID, receiverIP string) ([]byte, error) {
	env := Envelope{
		MessageType:   MessageConnectionAck,
		BaseStationIP: baseStationIP,
		ReceiverID:    receiverID,
		ReceiverIP:    receiverIP,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("wire: encode CONNECTION_ACK: %w", err)
	}
	return append(data, '\n'), nil
}
