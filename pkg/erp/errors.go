package erp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ErrLinkExists matches an Error the remote raised because other documents still
// reference the one being deleted.
var ErrLinkExists = &Error{ExcType: "LinkExistsError"}

// Error is a non-2xx response decoded from the remote error payload.
type Error struct {
	StatusCode int
	ExcType    string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.ExcType != "" {
		return e.ExcType
	}
	return fmt.Sprintf("erp request failed with status %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrLinkExists) match on exception type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.ExcType == "" {
		return false
	}
	return t.ExcType == e.ExcType
}

type errorPayload struct {
	ExcType        string          `json:"exc_type"`
	Exception      string          `json:"exception"`
	ServerMessages string          `json:"_server_messages"`
	Message        json.RawMessage `json:"message"`
}

var (
	tagPattern       = regexp.MustCompile(`<[^>]*>`)
	exceptionPattern = regexp.MustCompile(`^[\w.]+(Error|Exception)\s*:\s*`)
)

func decodeError(status int, body []byte) *Error {
	out := &Error{StatusCode: status}
	var p errorPayload
	if err := json.Unmarshal(body, &p); err != nil {
		out.Message = strings.TrimSpace(string(body))
		if len(out.Message) > 512 {
			out.Message = out.Message[:512]
		}
		return out
	}
	out.ExcType = strings.TrimSpace(p.ExcType)
	switch {
	case firstServerMessage(p.ServerMessages) != "":
		out.Message = firstServerMessage(p.ServerMessages)
	case strings.TrimSpace(p.Exception) != "":
		out.Message = exceptionPattern.ReplaceAllString(strings.TrimSpace(p.Exception), "")
	default:
		var s string
		if json.Unmarshal(p.Message, &s) == nil {
			out.Message = strings.TrimSpace(s)
		}
	}
	out.Message = cleanMessage(out.Message)
	return out
}

// _server_messages is a JSON string holding a list of JSON-encoded objects.
func firstServerMessage(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return ""
	}
	for _, item := range items {
		var m struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			if s := strings.TrimSpace(item); s != "" {
				return s
			}
			continue
		}
		if s := strings.TrimSpace(m.Message); s != "" {
			return s
		}
	}
	return ""
}

func cleanMessage(s string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(s, "")), " ")
}
