package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Value is a scalar JSON value kept verbatim. HidroWeb serves the same column
// as a quoted string in one payload and a bare number in the next, and the
// snapshot consumers expect whatever the source wrote, so values are parsed
// lazily and re-emitted byte for byte.
type Value []byte

// MarshalJSON emits the stored bytes, or null when empty.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

// UnmarshalJSON stores a copy of the raw token. An explicit null is kept as
// the literal so omitempty fields only drop keys the source never had.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = append(Value(nil), bytes.TrimSpace(data)...)
	return nil
}

// StringValue builds a Value holding a JSON string.
func StringValue(s string) Value {
	b, _ := json.Marshal(s)
	return Value(b)
}

// NumberValue builds a Value holding a JSON number.
func NumberValue(f float64) Value {
	return Value(strconv.FormatFloat(f, 'f', -1, 64))
}

// IsNull reports whether the value is absent or JSON null.
func (v Value) IsNull() bool {
	return len(v) == 0 || string(v) == "null"
}

// Text returns the value as plain text: strings are unquoted, numbers and
// booleans are returned as written, null is empty.
func (v Value) Text() string {
	if v.IsNull() {
		return ""
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	}
	return string(v)
}

// Float64 parses the value as a finite number. Quoted numbers are accepted.
func (v Value) Float64() (float64, bool) {
	s := strings.TrimSpace(v.Text())
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Float64Ptr is Float64 with nil standing in for "not a number".
func (v Value) Float64Ptr() *float64 {
	f, ok := v.Float64()
	if !ok {
		return nil
	}
	return &f
}

// Decimal parses the value as an exact finite decimal.
func (v Value) Decimal() (*apd.Decimal, bool) {
	s := strings.TrimSpace(v.Text())
	if s == "" {
		return nil, false
	}
	d, _, err := apd.NewFromString(s)
	if err != nil || d.Form != apd.Finite {
		return nil, false
	}
	return d, true
}
