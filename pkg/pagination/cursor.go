package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

const cursorPrefix = "arrayconnection:"

// ErrInvalidCursor indicates a cursor that does not decode to a row offset.
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor returns the opaque cursor for the row at the given zero-based offset.
func EncodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// DecodeCursor returns the zero-based row offset encoded in cursor.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, ErrInvalidCursor
	}
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, ErrInvalidCursor
	}
	s, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, ErrInvalidCursor
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ErrInvalidCursor
	}
	return n, nil
}
