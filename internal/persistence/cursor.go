// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/menta/internal/domain"
)

// ErrInvalidCursor is returned for tokens that do not decode to a cursor.
var ErrInvalidCursor = errors.New("invalid cursor format")

// EncodeCursor serialises the cursor to an opaque token of the last row's creation time and id.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.CreatedAt.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses the encoded cursor token.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, ErrInvalidCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &domain.Cursor{CreatedAt: ts, ID: parts[1]}, nil
}
