package providers

import (
	"encoding/json"
	"regexp"
	"strings"
)

var rxFence = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")

// ParseFields recovers a structured payload from raw model text.
// Priorities: strict JSON -> code fence JSON -> first balanced {...} ->
// first-'{' to last-'}' substring. Only when every strategy fails does the
// caller get ErrMalformed.
func ParseFields(providerID, content string) (map[string]Value, error) {
	content = strings.TrimSpace(content)

	if m := tryObject(content); m != nil {
		return FieldsFromAny(m), nil
	}

	if s := extractCodeFenceJSON(content); s != "" {
		if m := tryObject(s); m != nil {
			return FieldsFromAny(m), nil
		}
	}

	if s := extractFirstJSONObject(content); s != "" {
		if m := tryObject(s); m != nil {
			return FieldsFromAny(m), nil
		}
	}

	// last resort: widest {...} span, tolerates trailing prose inside fences
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		if m := tryObject(content[start : end+1]); m != nil {
			return FieldsFromAny(m), nil
		}
	}

	return nil, malformed(providerID, errNoPayload)
}

var errNoPayload = jsonError("no parseable JSON object in response")

type jsonError string

func (e jsonError) Error() string { return string(e) }

func tryObject(s string) map[string]any {
	var m map[string]any
	if json.Unmarshal([]byte(s), &m) == nil {
		return m
	}
	return nil
}

func extractCodeFenceJSON(s string) string {
	m := rxFence.FindStringSubmatch(s)
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

// find the first JSON object by simple brace balancing
func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	level := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
