// Copyright 2024-2026 Aiku AI

package node

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/bluebubbles-node/pkg/bluebubbles"
)

func TestGetActions(t *testing.T) {
	t.Parallel()
	acts := GetActions()
	if len(acts) != 18 {
		t.Fatalf("GetActions: got %d actions, want 18", len(acts))
	}
	seen := make(map[string]bool)
	for i, act := range acts {
		if act.Name == "" || act.Description == "" {
			t.Errorf("actions[%d] has an empty name or description", i)
		}
		if seen[act.Name] {
			t.Errorf("duplicate action %q", act.Name)
		}
		seen[act.Name] = true
	}

	acts[0].Name = "changed"
	if GetActions()[0].Name == "changed" {
		t.Error("GetActions should return a copy")
	}
}

func TestFindAction_Normalized(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"message.sendText", "Message.SendText", "message.send_text", " message.send text "} {
		act, ok := findAction(name)
		if !ok || act.Name != "message.sendText" {
			t.Errorf("findAction(%q) = %v, %v", name, act, ok)
		}
	}
}

func TestExecute_UnknownAction(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	_, err := n.Execute(context.Background(), "message.teleport", nil)
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("error: got %v, want ErrUnknownAction", err)
	}
	if len(bb.Calls()) != 0 {
		t.Error("no request should be sent for an unknown action")
	}
}

func TestExecute_Ping(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	resp, err := n.Execute(context.Background(), "server.ping", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	call := bb.lastCall(t)
	if call.Method != http.MethodGet || call.Path != "/api/v1/ping" {
		t.Errorf("call: got %s %s", call.Method, call.Path)
	}
	if call.Query.Get("password") != testPassword {
		t.Errorf("password: got %q", call.Query.Get("password"))
	}
	if call.Accept != "application/json" {
		t.Errorf("Accept: got %q", call.Accept)
	}
	data, _ := resp.Data.(map[string]any)
	if data["data"] != "pong" {
		t.Errorf("Data: got %v", resp.Data)
	}
}

func TestExecute_SendText(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	_, err := n.Execute(context.Background(), "message.sendText", Parameters{
		"address": "+15550001111",
		"message": "hello",
		"subject": "greeting",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	call := bb.lastCall(t)
	if call.Method != http.MethodPost || call.Path != "/api/v1/message/text" {
		t.Errorf("call: got %s %s", call.Method, call.Path)
	}
	if call.ContentType != "application/json" {
		t.Errorf("Content-Type: got %q", call.ContentType)
	}
	body := call.jsonBody(t)
	if body["chatGuid"] != "iMessage;-;+15550001111" {
		t.Errorf("chatGuid: got %v", body["chatGuid"])
	}
	if body["message"] != "hello" || body["subject"] != "greeting" {
		t.Errorf("body: got %v", body)
	}
	if body["method"] != "apple-script" {
		t.Errorf("method: got %v", body["method"])
	}
	if tmp, _ := body["tempGuid"].(string); !strings.HasPrefix(tmp, "temp-") {
		t.Errorf("tempGuid: got %v", body["tempGuid"])
	}
}

func TestExecute_SendTextPrivateAPI(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	_, err := n.Execute(context.Background(), "message.sendText", Parameters{
		"chatGuid": "iMessage;+;chat42",
		"message":  "hello",
		"method":   "Private API",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	body := bb.lastCall(t).jsonBody(t)
	if body["method"] != "private-api" || body["chatGuid"] != "iMessage;+;chat42" {
		t.Errorf("body: got %v", body)
	}
}

func TestExecute_ParameterErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		action  string
		params  Parameters
		wantErr string
	}{
		{"missing message", "message.sendText", Parameters{"address": "+1555"}, `"message"`},
		{"missing target", "message.sendText", Parameters{"message": "hi"}, `"chatGuid"`},
		{"bad chat guid", "message.sendText", Parameters{"chatGuid": "nope", "message": "hi"}, "invalid chat GUID"},
		{"bad send method", "message.sendText", Parameters{"address": "x", "message": "hi", "method": "fax"}, "unknown send method"},
		{"bad reaction", "message.react", Parameters{"chatGuid": "iMessage;-;x", "selectedMessageGuid": "m", "reaction": "wow"}, "unknown reaction"},
		{"no addresses", "chat.new", Parameters{}, `"addresses"`},
		{"no attachment", "message.sendAttachment", Parameters{"address": "x"}, `"attachmentPath"`},
		{"bad date", "message.query", Parameters{"after": "yesterday"}, `"after"`},
		{"bad limit", "chat.query", Parameters{"limit": "many"}, `"limit"`},
		{"negative timeout", "server.ping", Parameters{"timeout": -1}, `"timeout"`},
		{"bad query parameters", "server.ping", Parameters{"queryParameters": 5}, `"queryParameters"`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n, bb := newTestNode(t)
			_, err := n.Execute(context.Background(), tt.action, tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error: got %v, want containing %s", err, tt.wantErr)
			}
			if len(bb.Calls()) != 0 {
				t.Error("no request should be sent when parameters are invalid")
			}
		})
	}
}

func TestExecute_Endpoints(t *testing.T) {
	t.Parallel()
	tests := []struct {
		action string
		params Parameters
		method string
		path   string
	}{
		{"server.info", nil, http.MethodGet, "/api/v1/server/info"},
		{"message.get", Parameters{"messageGuid": "msg-1"}, http.MethodGet, "/api/v1/message/msg-1"},
		{"message.query", nil, http.MethodPost, "/api/v1/message/query"},
		{"message.react", Parameters{"chatGuid": "iMessage;-;x", "selectedMessageGuid": "m", "reaction": "-Love"}, http.MethodPost, "/api/v1/message/react"},
		{"message.unsend", Parameters{"messageGuid": "msg-1"}, http.MethodPost, "/api/v1/message/msg-1/unsend"},
		{"chat.query", nil, http.MethodPost, "/api/v1/chat/query"},
		{"chat.get", Parameters{"chatGuid": "iMessage;-;+1555"}, http.MethodGet, "/api/v1/chat/iMessage;-;+1555"},
		{"chat.messages", Parameters{"address": "+1555"}, http.MethodGet, "/api/v1/chat/iMessage;-;+1555/message"},
		{"chat.new", Parameters{"addresses": "+1555,+1666", "message": "hi"}, http.MethodPost, "/api/v1/chat/new"},
		{"chat.markRead", Parameters{"chatGuid": "iMessage;+;chat1"}, http.MethodPost, "/api/v1/chat/iMessage;+;chat1/read"},
		{"chat.delete", Parameters{"chatGuid": "iMessage;+;chat1"}, http.MethodDelete, "/api/v1/chat/iMessage;+;chat1"},
		{"handle.query", Parameters{"address": "+1555"}, http.MethodPost, "/api/v1/handle/query"},
		{"handle.get", Parameters{"address": "user@example.com"}, http.MethodGet, "/api/v1/handle/user@example.com"},
		{"contact.list", nil, http.MethodGet, "/api/v1/contact"},
		{"contact.query", Parameters{"addresses": []string{"+1555"}}, http.MethodPost, "/api/v1/contact/query"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.action, func(t *testing.T) {
			t.Parallel()
			n, bb := newTestNode(t)
			if _, err := n.Execute(context.Background(), tt.action, tt.params); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			call := bb.lastCall(t)
			if call.Method != tt.method || call.Path != tt.path {
				t.Errorf("call: got %s %s, want %s %s", call.Method, call.Path, tt.method, tt.path)
			}
			if call.Query.Get("password") != testPassword {
				t.Error("password was not injected")
			}
			if tt.method == http.MethodDelete && call.Accept != "" {
				t.Errorf("DELETE Accept: got %q, want none", call.Accept)
			}
		})
	}
}

func TestExecute_ReactBody(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	_, err := n.Execute(context.Background(), "message.react", Parameters{
		"chatGuid":            "iMessage;-;x",
		"selectedMessageGuid": "m1",
		"reaction":            "-Love",
		"partIndex":           "1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	body := bb.lastCall(t).jsonBody(t)
	if body["reaction"] != "-love" || body["selectedMessageGuid"] != "m1" || body["partIndex"] != 1.0 {
		t.Errorf("body: got %v", body)
	}
}

func TestExecute_QueryMessagesBody(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	_, err := n.Execute(context.Background(), "message.query", Parameters{
		"address": "+1555",
		"after":   "2024-01-02T00:00:00Z",
		"before":  "1704240000000",
		"limit":   25,
		"sort":    "desc",
		"with":    "chat, handle",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	body := bb.lastCall(t).jsonBody(t)
	want := float64(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli())
	if body["after"] != want {
		t.Errorf("after: got %v, want %v", body["after"], want)
	}
	if body["before"] != float64(1704240000000) {
		t.Errorf("before: got %v", body["before"])
	}
	if body["limit"] != 25.0 || body["offset"] != 0.0 || body["sort"] != "DESC" {
		t.Errorf("paging: got %v", body)
	}
	if body["chatGuid"] != "iMessage;-;+1555" {
		t.Errorf("chatGuid: got %v", body["chatGuid"])
	}
	with, _ := body["with"].([]any)
	if len(with) != 2 || with[0] != "chat" || with[1] != "handle" {
		t.Errorf("with: got %v", body["with"])
	}
}

func TestExecute_ChatMessagesQuery(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	_, err := n.Execute(context.Background(), "chat.messages", Parameters{
		"chatGuid": "iMessage;-;+1555",
		"limit":    10,
		"with":     []string{"attachment"},
		"after":    "2024-01-02",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	q := bb.lastCall(t).Query
	if q.Get("limit") != "10" || q.Get("offset") != "0" || q.Get("with") != "attachment" {
		t.Errorf("query: got %v", q)
	}
	if q.Get("after") != "1704153600000" {
		t.Errorf("after: got %q", q.Get("after"))
	}
}

func TestExecute_QueryParametersMerged(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	_, err := n.Execute(context.Background(), "chat.get", Parameters{
		"chatGuid": "iMessage;-;+1555",
		"with":     "participants",
		"queryParameters": []any{
			map[string]any{"name": "with", "value": "lastmessage"},
			map[string]any{"name": "extra", "value": 1},
			map[string]any{"name": "extra", "value": 2},
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	q := bb.lastCall(t).Query
	if q.Get("with") != "lastmessage" {
		t.Errorf("with: got %q, want the queryParameters value", q.Get("with"))
	}
	if q.Get("extra") != "2" {
		t.Errorf("extra: got %q, want last value", q.Get("extra"))
	}
}

func TestExecute_ExplicitPasswordKept(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	_, err := n.Execute(context.Background(), "server.ping", Parameters{
		"queryParameters": map[string]any{"password": "other"},
	})
	if !errors.Is(err, bluebubbles.ErrAuthentication) {
		t.Fatalf("error: got %v, want authentication error", err)
	}
	if got := bb.lastCall(t).Query.Get("password"); got != "other" {
		t.Errorf("password: got %q, want explicit value", got)
	}
}

func TestExecute_ErrorMapping(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	bb.Status["GET /api/v1/message/missing"] = http.StatusBadRequest
	bb.Responses["GET /api/v1/message/missing"] = `{"status":400,"error":{"type":"Validation Error","message":"Message does not exist"}}`

	_, err := n.Execute(context.Background(), "message.get", Parameters{"messageGuid": "missing"})
	var apiErr *bluebubbles.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error: got %T %v, want *APIError", err, err)
	}
	if !errors.Is(err, bluebubbles.ErrValidation) {
		t.Errorf("error kind: got %v", apiErr.Kind)
	}
	if apiErr.Message != "Validation Error: Message does not exist" {
		t.Errorf("Message: got %q", apiErr.Message)
	}
}

func TestExecute_WrongPassword(t *testing.T) {
	t.Parallel()
	bb := newFakeBB(t)
	cfg := newTestConfig(bb.Server.URL)
	cfg.Password = "wrong"
	n := New(cfg, zerolog.Nop())
	_, err := n.Execute(context.Background(), "server.ping", nil)
	if err == nil || !strings.Contains(err.Error(), "Authentication Error") {
		t.Fatalf("error: got %v, want authentication error", err)
	}
}

func TestExecute_MissingCredentials(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	n.Credentials.Delete(bluebubbles.CredentialsName)
	_, err := n.Execute(context.Background(), "server.ping", nil)
	if err == nil || !strings.Contains(err.Error(), "no credentials got returned") {
		t.Fatalf("error: got %v, want missing credentials", err)
	}
	if len(bb.Calls()) != 0 {
		t.Error("no request should be sent without credentials")
	}
}

func TestExecute_SendAttachment(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("hello file"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := n.Execute(context.Background(), "message.sendAttachment", Parameters{
		"chatGuid":       "iMessage;-;+1555",
		"attachmentPath": path,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	call := bb.lastCall(t)
	if call.Path != "/api/v1/message/attachment" {
		t.Errorf("path: got %q", call.Path)
	}
	if !strings.HasPrefix(call.ContentType, "multipart/form-data") {
		t.Errorf("Content-Type: got %q, want multipart", call.ContentType)
	}
	if !containsAll(call.Body, `name="attachment"; filename="note.txt"`, "hello file", "iMessage;-;+1555", "temp-") {
		t.Errorf("multipart body missing fields:\n%s", call.Body)
	}
}

func TestExecute_SendAttachmentMissingFile(t *testing.T) {
	t.Parallel()
	n, _ := newTestNode(t)
	_, err := n.Execute(context.Background(), "message.sendAttachment", Parameters{
		"chatGuid":       "iMessage;-;+1555",
		"attachmentPath": filepath.Join(t.TempDir(), "missing.png"),
	})
	if err == nil || !strings.Contains(err.Error(), "failed to read attachment") {
		t.Fatalf("error: got %v", err)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	n, bb := newTestNode(t)
	info, err := n.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if info.ServerVersion != "1.9.7" || info.OSVersion != "14.4" || !info.PrivateAPIEnabled {
		t.Errorf("ServerInfo: got %+v", info)
	}
	calls := bb.Calls()
	if len(calls) != 2 || calls[0].Path != "/api/v1/ping" || calls[1].Path != "/api/v1/server/info" {
		t.Errorf("calls: got %+v", calls)
	}
}

func TestVerify_Unreachable(t *testing.T) {
	t.Parallel()
	bb := newFakeBB(t)
	url := bb.Server.URL
	bb.Server.Close()
	n := New(newTestConfig(url), zerolog.Nop())
	_, err := n.Verify(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to ping server") {
		t.Fatalf("error: got %v", err)
	}
	if !errors.Is(err, bluebubbles.ErrTransport) {
		t.Errorf("error kind: got %v, want ErrTransport", err)
	}
}

// recordingHost answers every request with resp and keeps the built options.
type recordingHost struct {
	*CredentialStore
	resp *bluebubbles.Response
	last *bluebubbles.RequestOptions
}

func (h *recordingHost) HTTPRequest(_ context.Context, opts *bluebubbles.RequestOptions) (*bluebubbles.Response, error) {
	h.last = opts
	return h.resp, nil
}

func newRecordingNode(cfg Config, body string) (*Node, *recordingHost) {
	store := NewCredentialStore()
	store.Set(bluebubbles.CredentialsName, cfg.Credentials())
	host := &recordingHost{
		CredentialStore: store,
		resp:            &bluebubbles.Response{StatusCode: http.StatusOK, Body: []byte(body)},
	}
	return NewWithHost(cfg, zerolog.Nop(), store, host), host
}

func TestExecute_Timeout(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		cfgTimeout int
		params     Parameters
		want       time.Duration
	}{
		{"dispatcher default", 0, nil, bluebubbles.DefaultTimeout},
		{"config", 45, nil, 45 * time.Second},
		{"parameter overrides config", 45, Parameters{"timeout": "10"}, 10 * time.Second},
		{"parameter without config", 0, Parameters{"timeout": 3}, 3 * time.Second},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := newTestConfig("http://bb.local:1234")
			cfg.Timeout = tt.cfgTimeout
			n, host := newRecordingNode(cfg, `{"status":200}`)
			if _, err := n.Execute(context.Background(), "server.ping", tt.params); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if host.last.Timeout != tt.want {
				t.Errorf("Timeout: got %v, want %v", host.last.Timeout, tt.want)
			}
		})
	}
}

func TestVerify_BadServerInfo(t *testing.T) {
	t.Parallel()
	n, _ := newRecordingNode(newTestConfig("http://bb.local:1234"), "pong")
	_, err := n.Verify(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to parse server info") {
		t.Fatalf("error: got %v, want parse failure", err)
	}
}
