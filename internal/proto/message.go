package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Inbound command names. A frame without a known command is a chat message.
const (
	CommandDelete = "delete"
	CommandTyping = "typing"
	CommandImage  = "image"
	CommandChat   = "chat"

	// FlagTrue marks typing and delete frames.
	FlagTrue = "True"
)

// ID is a numeric identifier that clients may send either as a JSON number or a numeric string.
type ID int64

// UnmarshalJSON accepts 42 and "42".
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("id must not be null")
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", string(data))
	}
	*id = ID(v)
	return nil
}

// Inbound is a client frame. Pointer fields distinguish absent from zero values.
type Inbound struct {
	Command   string  `json:"command,omitempty"`
	UserID    *ID     `json:"user_id,omitempty"`
	NetID     *ID     `json:"net_id,omitempty"`
	MessageID *ID     `json:"message_id,omitempty"`
	Message   *string `json:"message,omitempty"`
	ImageURL  *string `json:"image_url,omitempty"`
	DateSent  *string `json:"date_sent,omitempty"`
}

// TypingFrame tells clients that a user is typing.
type TypingFrame struct {
	Typing string `json:"typing"`
	UserID int64  `json:"user_id"`
}

// DeleteFrame tells clients to retract a message.
type DeleteFrame struct {
	Delete    string `json:"delete"`
	MessageID int64  `json:"message_id"`
}

// ChatFrame delivers a chat message with its author's identity.
type ChatFrame struct {
	Message   string `json:"message"`
	MessageID int64  `json:"message_id"`
	DateSent  string `json:"date_sent"`
	Username  string `json:"username"`
	UserImage string `json:"user_image"`
}

// ImageFrame delivers an image message with its author's identity.
type ImageFrame struct {
	Message   string `json:"message"`
	DateSent  string `json:"date_sent"`
	Username  string `json:"username"`
	UserImage string `json:"user_image"`
	ImageURL  string `json:"image_url"`
	MessageID int64  `json:"message_id"`
}

// ErrorFrame reports a rejected frame back to its sender.
type ErrorFrame struct {
	Error Error `json:"error"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
