package tokko

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Number is a numeric field the provider sends as a JSON number, a numeric
// string, an empty string or null. Valid is false when no usable value was
// present.
type Number struct {
	Value float64
	Valid bool
}

// NumberOf returns a valid Number.
func NumberOf(v float64) Number {
	return Number{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler. Unparseable strings decode to
// an invalid Number instead of failing the whole record.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = NumberOf(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// bools, objects and arrays are not numbers
		return nil
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		*n = NumberOf(v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Float returns the value or nil.
func (n Number) Float() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Int returns the value truncated to an int, or nil.
func (n Number) Int() *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Value)
	return &v
}

// ID returns the value as a provider id. Zero and negative values are not
// ids.
func (n Number) ID() (int64, bool) {
	if !n.Valid || n.Value < 1 {
		return 0, false
	}
	return int64(n.Value), true
}

// IDPtr is ID as a pointer.
func (n Number) IDPtr() *int64 {
	id, ok := n.ID()
	if !ok {
		return nil
	}
	return &id
}
