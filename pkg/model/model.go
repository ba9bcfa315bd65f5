// Package model defines the JSON messages exchanged with the relay.
package model

import (
	"encoding/json"
	"fmt"
)

type MessageType string

const (
	MessageTypeVolume  MessageType = "volume"
	MessageTypeClients MessageType = "clients"
	MessageTypeError   MessageType = "error"
)

// Envelope holds the fields common to every message.
type Envelope struct {
	Type MessageType `json:"type"`
}

type VolumeMessage struct {
	Type   MessageType `json:"type"`
	Volume int         `json:"volume"`
}

type ClientsMessage struct {
	Type    MessageType `json:"type"`
	Clients int         `json:"clients"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func NewVolumeMessage(volume int) VolumeMessage {
	return VolumeMessage{Type: MessageTypeVolume, Volume: volume}
}

func NewClientsMessage(clients int) ClientsMessage {
	return ClientsMessage{Type: MessageTypeClients, Clients: clients}
}

func NewErrorMessage(msg string) ErrorMessage {
	return ErrorMessage{Type: MessageTypeError, Message: msg}
}

// Decode parses data into the message struct matching its type field.
// It returns a VolumeMessage, ClientsMessage or ErrorMessage.
func Decode(data []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case MessageTypeVolume:
		var m VolumeMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal volume message: %w", err)
		}
		return m, nil
	case MessageTypeClients:
		var m ClientsMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal clients message: %w", err)
		}
		return m, nil
	case MessageTypeError:
		var m ErrorMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal error message: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
