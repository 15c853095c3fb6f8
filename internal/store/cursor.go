// Package store contains helpers shared by repository implementations.
package store

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Cursor models the pagination token for ledger listings.
type Cursor struct {
	Timestamp time.Time
	RunID     string
}

// EncodeCursor serialises the cursor to a string token.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.Timestamp.UTC().Format(time.RFC3339Nano), c.RunID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses the encoded cursor token.
func DecodeCursor(token string) (*Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, err
	}
	return &Cursor{Timestamp: ts, RunID: parts[1]}, nil
}
