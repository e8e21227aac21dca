// Copyright 2024-2026 Aiku AI

package bluebubbles

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// APIVersion is the BlueBubbles server API version used by APIPath.
const APIVersion = 1

// InvalidDate is returned by ParseDate for input it cannot parse.
const InvalidDate = "Invalid Date"

const unknownErrorMessage = "An unknown error has occurred"

// displayDateLayout renders dates as month/day/year, 24-hour clock.
const displayDateLayout = "1/2/2006, 15:04:05"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDate parses an ISO 8601 style date and renders it in UTC for display.
// Input without a zone is taken as UTC.
func ParseDate(date string) string {
	t, err := ParseTime(date)
	if err != nil {
		return InvalidDate
	}
	return FormatTime(t)
}

// ParseTime parses the date formats accepted by ParseDate.
func ParseTime(date string) (time.Time, error) {
	date = strings.TrimSpace(date)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", date)
}

// FormatTime renders t in UTC using the ParseDate display layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(displayDateLayout)
}

// Normalize lowercases value and removes spaces and underscores so option
// names can be compared loosely.
func Normalize(value string) string {
	if value == "" {
		return value
	}
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	return strings.TrimSpace(value)
}

// ParseErrors extracts a flat list of error messages from a response payload.
//
// An "errors" array is returned element by element and a non-empty "errors"
// string as the only message. Otherwise "errors" (or "data.errors" when
// "errors" is unset or falsy) is read as an object mapping field names to
// message lists, flattened in document order. If nothing is found a single generic message
// is returned.
func ParseErrors(payload []byte) []string {
	if !gjson.ValidBytes(payload) {
		return []string{unknownErrorMessage}
	}

	errs := gjson.GetBytes(payload, "errors")
	if errs.IsArray() {
		out := make([]string, 0, len(errs.Array()))
		for _, item := range errs.Array() {
			out = append(out, item.String())
		}
		return out
	}
	if !truthy(errs) {
		errs = gjson.GetBytes(payload, "data.errors")
	} else if errs.Type == gjson.String {
		return []string{errs.Str}
	}

	var out []string
	if errs.IsObject() {
		errs.ForEach(func(_, value gjson.Result) bool {
			if value.IsArray() {
				for _, msg := range value.Array() {
					out = append(out, msg.String())
				}
			} else if value.Exists() && value.Type != gjson.Null {
				out = append(out, value.String())
			}
			return true
		})
	}
	if len(out) == 0 {
		return []string{unknownErrorMessage}
	}
	return out
}

// truthy reports whether res is set to something other than null, false,
// zero or the empty string.
func truthy(res gjson.Result) bool {
	switch res.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return res.Num != 0
	case gjson.String:
		return res.Str != ""
	default:
		return res.Exists()
	}
}

// NameValuePair is a single entry of a name/value parameter list.
type NameValuePair struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// NameValuePairsToObject converts pairs into a map. Later pairs win when a
// name repeats.
func NameValuePairsToObject(pairs []NameValuePair) map[string]any {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		out[pair.Name] = pair.Value
	}
	return out
}

// NormalizeAPIEndpoint strips one leading and one trailing slash.
func NormalizeAPIEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	return strings.TrimSuffix(endpoint, "/")
}

// SanitizeHost trims whitespace and trailing slashes from a server URL.
func SanitizeHost(serverURL string) string {
	return strings.TrimRight(strings.TrimSpace(serverURL), "/")
}

// APIPath joins path segments under the versioned API prefix, escaping each
// segment. Empty segments are skipped.
func APIPath(parts ...string) string {
	segments := make([]string, 0, len(parts)+2)
	segments = append(segments, "api", "v"+strconv.Itoa(APIVersion))
	for _, part := range parts {
		part = NormalizeAPIEndpoint(part)
		if part == "" {
			continue
		}
		segments = append(segments, url.PathEscape(part))
	}
	return strings.Join(segments, "/")
}
