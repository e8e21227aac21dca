// Copyright 2024-2026 Aiku AI

package node

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/aiku/bluebubbles-node/pkg/bluebubbles"
)

// SimpleMessage is a flattened view of a BlueBubbles message.
type SimpleMessage struct {
	GUID        string   `json:"guid"`
	Text        string   `json:"text"`
	Sender      string   `json:"sender"`
	IsFromMe    bool     `json:"isFromMe"`
	ChatGUID    string   `json:"chatGuid,omitempty"`
	Date        string   `json:"date,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// SimplifyMessages reduces a message response body to SimpleMessages. Both
// a single message and a list under "data" are accepted, as is a bare
// message or list without the envelope.
func SimplifyMessages(body []byte) []SimpleMessage {
	root := gjson.ParseBytes(body)
	if data := root.Get("data"); data.Exists() {
		root = data
	}

	var out []SimpleMessage
	if root.IsArray() {
		root.ForEach(func(_, value gjson.Result) bool {
			if value.IsObject() {
				out = append(out, simplifyMessage(value))
			}
			return true
		})
	} else if root.IsObject() && root.Get("guid").Exists() {
		out = append(out, simplifyMessage(root))
	}
	return out
}

func simplifyMessage(msg gjson.Result) SimpleMessage {
	simple := SimpleMessage{
		GUID:     msg.Get("guid").String(),
		Text:     msg.Get("text").String(),
		IsFromMe: msg.Get("isFromMe").Bool(),
		ChatGUID: msg.Get("chats.0.guid").String(),
	}
	if simple.IsFromMe {
		simple.Sender = "me"
	} else {
		simple.Sender = msg.Get("handle.address").String()
	}
	if created := msg.Get("dateCreated"); created.Type == gjson.Number && created.Int() > 0 {
		simple.Date = bluebubbles.FormatTime(time.UnixMilli(created.Int()))
	}
	msg.Get("attachments").ForEach(func(_, att gjson.Result) bool {
		name := att.Get("transferName").String()
		if name == "" {
			name = att.Get("guid").String()
		}
		if name != "" {
			simple.Attachments = append(simple.Attachments, name)
		}
		return true
	})
	return simple
}
