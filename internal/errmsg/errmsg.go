// Package errmsg turns arbitrary error values into a short message that is
// safe to show to a dashboard user.
package errmsg

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Fallback is returned when nothing readable can be extracted.
const Fallback = "An unexpected error occurred"

type detailer interface {
	Details() string
}

type messager interface {
	Message() string
}

// bodyCarrier is implemented by transport errors that kept the raw response body.
type bodyCarrier interface {
	ResponseBody() []byte
}

// From extracts a human readable message. The lookup order is: plain string,
// details, message, nested error.message, then a JSON rendering of the value.
func From(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return orFallback(val)
	case error:
		return fromError(val)
	case map[string]any:
		if msg := fromMap(val); msg != "" {
			return msg
		}
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "{}" || string(data) == "null" {
		return orFallback(fmt.Sprint(v))
	}
	return string(data)
}

func fromError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.TrimSpace(pgErr.Detail) != "" {
			return pgErr.Detail
		}
		if strings.TrimSpace(pgErr.Message) != "" {
			return pgErr.Message
		}
	}
	var d detailer
	if errors.As(err, &d) {
		if msg := strings.TrimSpace(d.Details()); msg != "" {
			return msg
		}
	}
	var m messager
	if errors.As(err, &m) {
		if msg := strings.TrimSpace(m.Message()); msg != "" {
			return msg
		}
	}
	var b bodyCarrier
	if errors.As(err, &b) {
		var parsed map[string]any
		if json.Unmarshal(b.ResponseBody(), &parsed) == nil {
			if msg := fromMap(parsed); msg != "" {
				return msg
			}
		}
	}
	return orFallback(err.Error())
}

func fromMap(m map[string]any) string {
	for _, key := range []string{"details", "detail", "message"} {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	switch nested := m["error"].(type) {
	case string:
		if strings.TrimSpace(nested) != "" {
			return nested
		}
	case map[string]any:
		if s, ok := nested["message"].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func orFallback(s string) string {
	if strings.TrimSpace(s) == "" {
		return Fallback
	}
	return s
}
