// Copyright 2024-2026 Aiku AI

package node

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aiku/bluebubbles-node/pkg/bluebubbles"
)

// Action is a single BlueBubbles operation exposed by the node.
type Action struct {
	Name        string
	Description string

	build func(n *Node, p Parameters) (bluebubbles.Request, error)
}

var actions = []Action{
	{Name: "server.ping", Description: "Check that the server is reachable", build: buildPing},
	{Name: "server.info", Description: "Get server version and environment details", build: buildServerInfo},
	{Name: "message.sendText", Description: "Send a text message to a chat or address", build: buildSendText},
	{Name: "message.sendAttachment", Description: "Send a file to a chat or address", build: buildSendAttachment},
	{Name: "message.get", Description: "Get a single message by GUID", build: buildGetMessage},
	{Name: "message.query", Description: "Search messages", build: buildQueryMessages},
	{Name: "message.react", Description: "Add or remove a tapback reaction", build: buildReact},
	{Name: "message.unsend", Description: "Unsend a message (Private API)", build: buildUnsend},
	{Name: "chat.query", Description: "List chats", build: buildQueryChats},
	{Name: "chat.get", Description: "Get a single chat by GUID", build: buildGetChat},
	{Name: "chat.messages", Description: "List the messages of a chat", build: buildChatMessages},
	{Name: "chat.new", Description: "Start a new chat with one or more addresses", build: buildNewChat},
	{Name: "chat.markRead", Description: "Mark a chat as read (Private API)", build: buildMarkRead},
	{Name: "chat.delete", Description: "Delete a chat", build: buildDeleteChat},
	{Name: "handle.query", Description: "Search handles", build: buildQueryHandles},
	{Name: "handle.get", Description: "Get a single handle by address", build: buildGetHandle},
	{Name: "contact.list", Description: "List contacts known to the server", build: buildListContacts},
	{Name: "contact.query", Description: "Look up contacts by address", build: buildQueryContacts},
}

// GetActions returns the available actions.
func GetActions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// findAction looks an action up by name, ignoring case, spaces and underscores.
func findAction(name string) (*Action, bool) {
	want := bluebubbles.Normalize(name)
	for i := range actions {
		if bluebubbles.Normalize(actions[i].Name) == want {
			return &actions[i], true
		}
	}
	return nil, false
}

// reactions lists the tapbacks the server accepts. A leading "-" removes one.
var reactions = []string{"love", "like", "dislike", "laugh", "emphasize", "question"}

func parseReaction(value string) (string, error) {
	normalized := bluebubbles.Normalize(value)
	name := strings.TrimPrefix(normalized, "-")
	for _, r := range reactions {
		if name == r {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("unknown reaction %q, expected one of %s", value, strings.Join(reactions, ", "))
}

// resolveChatGUID returns the chatGuid parameter, or a direct chat GUID
// built from address and service.
func resolveChatGUID(p Parameters) (string, error) {
	if p.Has("chatGuid") {
		guid, _ := p.String("chatGuid")
		if _, err := ParseChatGUID(guid); err != nil {
			return "", err
		}
		return guid, nil
	}
	if p.Has("address") {
		address, _ := p.String("address")
		return MakeChatGUID(p.OptString("service", ServiceIMessage), address), nil
	}
	return "", fmt.Errorf("%w %q (or \"address\")", ErrMissingParameter, "chatGuid")
}

func resolveSendMethod(n *Node, p Parameters) (SendMethod, error) {
	if !p.Has("method") {
		return n.Config.DefaultSendMethod(), nil
	}
	return ParseSendMethod(p.OptString("method", ""))
}

// withQuery builds the "with" query parameter from a list parameter.
func withQuery(p Parameters) (url.Values, error) {
	query := url.Values{}
	with, err := p.StringSlice("with")
	if err != nil {
		return nil, err
	}
	if len(with) > 0 {
		query.Set("with", strings.Join(with, ","))
	}
	return query, nil
}

// pageBody fills limit, offset, sort and with into a JSON body.
func pageBody(p Parameters, defaultLimit int) (map[string]any, error) {
	body := map[string]any{}
	limit, err := p.Int("limit", defaultLimit)
	if err != nil {
		return nil, err
	}
	offset, err := p.Int("offset", 0)
	if err != nil {
		return nil, err
	}
	body["limit"] = limit
	body["offset"] = offset
	if p.Has("sort") {
		body["sort"] = strings.ToUpper(p.OptString("sort", ""))
	}
	with, err := p.StringSlice("with")
	if err != nil {
		return nil, err
	}
	if len(with) > 0 {
		body["with"] = with
	}
	return body, nil
}

// timeFilter converts an ISO date parameter to epoch milliseconds.
func timeFilter(p Parameters, name string) (int64, bool, error) {
	if !p.Has(name) {
		return 0, false, nil
	}
	raw := p.OptString(name, "")
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, true, nil
	}
	t, err := bluebubbles.ParseTime(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parameter %q: %w", name, err)
	}
	return t.UnixMilli(), true, nil
}

func buildPing(_ *Node, _ Parameters) (bluebubbles.Request, error) {
	return bluebubbles.Request{Endpoint: bluebubbles.APIPath("ping")}, nil
}

func buildServerInfo(_ *Node, _ Parameters) (bluebubbles.Request, error) {
	return bluebubbles.Request{Endpoint: bluebubbles.APIPath("server", "info")}, nil
}

func buildSendText(n *Node, p Parameters) (bluebubbles.Request, error) {
	chatGUID, err := resolveChatGUID(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	message, err := p.String("message")
	if err != nil {
		return bluebubbles.Request{}, err
	}
	method, err := resolveSendMethod(n, p)
	if err != nil {
		return bluebubbles.Request{}, err
	}

	body := map[string]any{
		"chatGuid": chatGUID,
		"message":  message,
		"method":   string(method),
		"tempGuid": p.OptString("tempGuid", NewTempGUID()),
	}
	for _, key := range []string{"subject", "effectId", "selectedMessageGuid"} {
		if p.Has(key) {
			body[key] = p.OptString(key, "")
		}
	}
	if p.Has("partIndex") {
		partIndex, err := p.Int("partIndex", 0)
		if err != nil {
			return bluebubbles.Request{}, err
		}
		body["partIndex"] = partIndex
	}
	return bluebubbles.Request{
		Method:   http.MethodPost,
		Endpoint: bluebubbles.APIPath("message", "text"),
		Body:     body,
	}, nil
}

func buildSendAttachment(n *Node, p Parameters) (bluebubbles.Request, error) {
	chatGUID, err := resolveChatGUID(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	method, err := resolveSendMethod(n, p)
	if err != nil {
		return bluebubbles.Request{}, err
	}

	var file FormFile
	switch {
	case p.Has("attachment"):
		data, ok := p["attachment"].([]byte)
		if !ok {
			return bluebubbles.Request{}, fmt.Errorf("parameter %q must be raw bytes, got %T", "attachment", p["attachment"])
		}
		file.Data = data
		file.Name = p.OptString("name", "attachment")
	case p.Has("attachmentPath"):
		path, _ := p.String("attachmentPath")
		data, err := os.ReadFile(path)
		if err != nil {
			return bluebubbles.Request{}, fmt.Errorf("failed to read attachment: %w", err)
		}
		file.Data = data
		file.Name = p.OptString("name", filepath.Base(path))
	default:
		return bluebubbles.Request{}, fmt.Errorf("%w %q (or \"attachment\")", ErrMissingParameter, "attachmentPath")
	}
	file.ContentType = mime.TypeByExtension(filepath.Ext(file.Name))

	form := map[string]any{
		"chatGuid":   chatGUID,
		"tempGuid":   p.OptString("tempGuid", NewTempGUID()),
		"name":       file.Name,
		"method":     string(method),
		"attachment": file,
	}
	return bluebubbles.Request{
		Method:   http.MethodPost,
		Endpoint: bluebubbles.APIPath("message", "attachment"),
		FormData: form,
	}, nil
}

func buildGetMessage(_ *Node, p Parameters) (bluebubbles.Request, error) {
	guid, err := p.String("messageGuid")
	if err != nil {
		return bluebubbles.Request{}, err
	}
	query, err := withQuery(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	return bluebubbles.Request{Endpoint: bluebubbles.APIPath("message", guid), Query: query}, nil
}

func buildQueryMessages(_ *Node, p Parameters) (bluebubbles.Request, error) {
	body, err := pageBody(p, 100)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	if p.Has("chatGuid") || p.Has("address") {
		chatGUID, err := resolveChatGUID(p)
		if err != nil {
			return bluebubbles.Request{}, err
		}
		body["chatGuid"] = chatGUID
	}
	for _, key := range []string{"after", "before"} {
		ms, ok, err := timeFilter(p, key)
		if err != nil {
			return bluebubbles.Request{}, err
		}
		if ok {
			body[key] = ms
		}
	}
	return bluebubbles.Request{
		Method:   http.MethodPost,
		Endpoint: bluebubbles.APIPath("message", "query"),
		Body:     body,
	}, nil
}

func buildReact(_ *Node, p Parameters) (bluebubbles.Request, error) {
	chatGUID, err := resolveChatGUID(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	target, err := p.String("selectedMessageGuid")
	if err != nil {
		return bluebubbles.Request{}, err
	}
	rawReaction, err := p.String("reaction")
	if err != nil {
		return bluebubbles.Request{}, err
	}
	reaction, err := parseReaction(rawReaction)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	partIndex, err := p.Int("partIndex", 0)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	return bluebubbles.Request{
		Method:   http.MethodPost,
		Endpoint: bluebubbles.APIPath("message", "react"),
		Body: map[string]any{
			"chatGuid":            chatGUID,
			"selectedMessageGuid": target,
			"reaction":            reaction,
			"partIndex":           partIndex,
		},
	}, nil
}

func buildUnsend(_ *Node, p Parameters) (bluebubbles.Request, error) {
	guid, err := p.String("messageGuid")
	if err != nil {
		return bluebubbles.Request{}, err
	}
	partIndex, err := p.Int("partIndex", 0)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	return bluebubbles.Request{
		Method:   http.MethodPost,
		Endpoint: bluebubbles.APIPath("message", guid, "unsend"),
		Body:     map[string]any{"partIndex": partIndex},
	}, nil
}

func buildQueryChats(_ *Node, p Parameters) (bluebubbles.Request, error) {
	body, err := pageBody(p, 1000)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	return bluebubbles.Request{
		Method:   http.MethodPost,
		Endpoint: bluebubbles.APIPath("chat", "query"),
		Body:     body,
	}, nil
}

func buildGetChat(_ *Node, p Parameters) (bluebubbles.Request, error) {
	guid, err := resolveChatGUID(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	query, err := withQuery(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	return bluebubbles.Request{Endpoint: bluebubbles.APIPath("chat", guid), Query: query}, nil
}

func buildChatMessages(_ *Node, p Parameters) (bluebubbles.Request, error) {
	guid, err := resolveChatGUID(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	query, err := withQuery(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	limit, err := p.Int("limit", 100)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	offset, err := p.Int("offset", 0)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	if p.Has("sort") {
		query.Set("sort", strings.ToUpper(p.OptString("sort", "")))
	}
	for _, key := range []string{"after", "before"} {
		ms, ok, err := timeFilter(p, key)
		if err != nil {
			return bluebubbles.Request{}, err
		}
		if ok {
			query.Set(key, strconv.FormatInt(ms, 10))
		}
	}
	return bluebubbles.Request{Endpoint: bluebubbles.APIPath("chat", guid, "message"), Query: query}, nil
}

func buildNewChat(n *Node, p Parameters) (bluebubbles.Request, error) {
	addresses, err := p.StringSlice("addresses")
	if err != nil {
		return bluebubbles.Request{}, err
	}
	if len(addresses) == 0 {
		return bluebubbles.Request{}, fmt.Errorf("%w %q", ErrMissingParameter, "addresses")
	}
	method, err := resolveSendMethod(n, p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	body := map[string]any{
		"addresses": addresses,
		"service":   p.OptString("service", ServiceIMessage),
		"method":    string(method),
		"tempGuid":  p.OptString("tempGuid", NewTempGUID()),
	}
	if p.Has("message") {
		body["message"] = p.OptString("message", "")
	}
	return bluebubbles.Request{
		Method:   http.MethodPost,
		Endpoint: bluebubbles.APIPath("chat", "new"),
		Body:     body,
	}, nil
}

func buildMarkRead(_ *Node, p Parameters) (bluebubbles.Request, error) {
	guid, err := resolveChatGUID(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	return bluebubbles.Request{Method: http.MethodPost, Endpoint: bluebubbles.APIPath("chat", guid, "read")}, nil
}

func buildDeleteChat(_ *Node, p Parameters) (bluebubbles.Request, error) {
	guid, err := resolveChatGUID(p)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	return bluebubbles.Request{Method: http.MethodDelete, Endpoint: bluebubbles.APIPath("chat", guid)}, nil
}

func buildQueryHandles(_ *Node, p Parameters) (bluebubbles.Request, error) {
	body, err := pageBody(p, 1000)
	if err != nil {
		return bluebubbles.Request{}, err
	}
	if p.Has("address") {
		body["address"] = p.OptString("address", "")
	}
	return bluebubbles.Request{
		Method:   http.MethodPost,
		Endpoint: bluebubbles.APIPath("handle", "query"),
		Body:     body,
	}, nil
}

func buildGetHandle(_ *Node, p Parameters) (bluebubbles.Request, error) {
	address, err := p.String("address")
	if err != nil {
		return bluebubbles.Request{}, err
	}
	return bluebubbles.Request{Endpoint: bluebubbles.APIPath("handle", address)}, nil
}

func buildListContacts(_ *Node, _ Parameters) (bluebubbles.Request, error) {
	return bluebubbles.Request{Endpoint: bluebubbles.APIPath("contact")}, nil
}

func buildQueryContacts(_ *Node, p Parameters) (bluebubbles.Request, error) {
	addresses, err := p.StringSlice("addresses")
	if err != nil {
		return bluebubbles.Request{}, err
	}
	if len(addresses) == 0 {
		return bluebubbles.Request{}, fmt.Errorf("%w %q", ErrMissingParameter, "addresses")
	}
	return bluebubbles.Request{
		Method:   http.MethodPost,
		Endpoint: bluebubbles.APIPath("contact", "query"),
		Body:     map[string]any{"addresses": addresses},
	}, nil
}
