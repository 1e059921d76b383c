package archive

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCursorRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("encode then decode is identity", prop.ForAll(
		func(unix int64, id string) bool {
			if id == "" {
				return true
			}
			ts := time.Unix(unix, 0).UTC()
			decoded, err := DecodeCursor(EncodeCursor(ts, id))
			return err == nil && decoded.TS == ts.Unix() && decoded.ID == id
		},
		gen.Int64Range(0, 4102444800),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not base64!!", "YWJj", ""} {
		if _, err := DecodeCursor(token); err == nil {
			t.Fatalf("token %q should be rejected", token)
		}
	}
}

func TestCursorTime(t *testing.T) {
	ts := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)
	c, err := DecodeCursor(EncodeCursor(ts, "abc"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !c.Time().Equal(ts) {
		t.Fatalf("cursor time = %v, want %v", c.Time(), ts)
	}
}
