package store

// convert.go maps run record fields onto pgtype values. Empty values become SQL
// NULL so optional columns stay unset rather than holding "" or 0.

import (
	"encoding/json"
	"net"
	"net/netip"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// toPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgInt4 converts an int to pgtype.Int4. Zero rows is a real count, so only
// negative values are treated as unknown.
func toPgInt4(i int) pgtype.Int4 {
	if i < 0 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

// parseIPAddress strips a port if present. Returns nil for anything that does
// not parse, which stores NULL.
func parseIPAddress(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}

// marshalJSON encodes v for a jsonb column; nil and empty collections store NULL.
func marshalJSON(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Invalid:
		return nil, nil
	case reflect.Map, reflect.Slice:
		if rv.Len() == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

// unmarshalJSON decodes a jsonb column, leaving dst untouched on NULL.
func unmarshalJSON(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
