package archive

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"moodcanvas/internal/apperr"
)

// Cursor is the decoded pagination resume point. Callers only ever see the
// opaque encoded form.
type Cursor struct {
	TS int64  `json:"ts"`
	ID string `json:"id"`
}

// EncodeCursor produces the opaque token for a (timestamp, id) pair.
func EncodeCursor(ts time.Time, id string) string {
	payload, _ := json.Marshal(Cursor{TS: ts.UTC().Unix(), ID: id})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeCursor parses an opaque token back into its resume point.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, &apperr.ValidationError{Message: "malformed cursor", Details: map[string]any{"cursor": token}}
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
		return Cursor{}, &apperr.ValidationError{Message: "malformed cursor payload", Details: map[string]any{"cursor": token}}
	}
	return c, nil
}

// Time returns the cursor timestamp as a time value.
func (c Cursor) Time() time.Time {
	return time.Unix(c.TS, 0).UTC()
}
