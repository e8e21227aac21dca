// Copyright 2024-2026 Aiku AI

package node

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Services a chat GUID can belong to.
const (
	ServiceIMessage = "iMessage"
	ServiceSMS      = "SMS"
)

const (
	directSeparator = ";-;"
	groupSeparator  = ";+;"
)

// ChatGUID is a parsed BlueBubbles chat GUID such as "iMessage;-;+15551234567".
type ChatGUID struct {
	Service    string
	Group      bool
	Identifier string
}

func (c ChatGUID) String() string {
	sep := directSeparator
	if c.Group {
		sep = groupSeparator
	}
	return c.Service + sep + c.Identifier
}

// MakeChatGUID creates the GUID of a direct chat with address.
func MakeChatGUID(service, address string) string {
	if service == "" {
		service = ServiceIMessage
	}
	return ChatGUID{Service: service, Identifier: strings.TrimSpace(address)}.String()
}

// ParseChatGUID splits a chat GUID into its parts.
func ParseChatGUID(guid string) (ChatGUID, error) {
	if service, id, ok := strings.Cut(guid, directSeparator); ok && service != "" && id != "" {
		return ChatGUID{Service: service, Identifier: id}, nil
	}
	if service, id, ok := strings.Cut(guid, groupSeparator); ok && service != "" && id != "" {
		return ChatGUID{Service: service, Group: true, Identifier: id}, nil
	}
	return ChatGUID{}, fmt.Errorf("invalid chat GUID %q", guid)
}

// IsGroupChatGUID reports whether guid refers to a group chat.
func IsGroupChatGUID(guid string) bool {
	parsed, err := ParseChatGUID(guid)
	return err == nil && parsed.Group
}

// NewTempGUID returns a temporary message GUID used to correlate a sent
// message with the server's echo.
func NewTempGUID() string {
	return "temp-" + uuid.NewString()
}
