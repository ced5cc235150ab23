package market

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"backdesk/internal/pkg/convert"
)

// Value is a numeric field that may be missing. The zero Value is missing and
// is never reported as 0.
type Value struct {
	f     float64
	valid bool
}

func Num(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{f: f, valid: true}
}

func Missing() Value { return Value{} }

// ParseValue accepts numbers, numeric strings and json.Number; anything else is missing.
func ParseValue(raw any) Value {
	f, ok := convert.Float(raw)
	if !ok {
		return Value{}
	}
	return Value{f: f, valid: true}
}

func (v Value) Float() (float64, bool) { return v.f, v.valid }

func (v Value) IsMissing() bool { return !v.valid }

func (v Value) String() string {
	if !v.valid {
		return "missing"
	}
	return strconv.FormatFloat(v.f, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v.f, 'g', -1, 64)), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = ParseValue(raw)
	return nil
}
