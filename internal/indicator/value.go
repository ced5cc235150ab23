package indicator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"backdesk/internal/pkg/convert"

	"gopkg.in/yaml.v3"
)

// ParamValue is a parameter as stored: a number, or the raw text the user
// typed when it did not parse as one.
type ParamValue struct {
	num     float64
	raw     string
	numeric bool
}

func Number(f float64) ParamValue { return ParamValue{num: f, numeric: true} }

func Raw(s string) ParamValue { return ParamValue{raw: s} }

func (p ParamValue) Float() (float64, bool) { return p.num, p.numeric }

func (p ParamValue) IsNumeric() bool { return p.numeric }

func (p ParamValue) String() string {
	if p.numeric {
		return strconv.FormatFloat(p.num, 'f', -1, 64)
	}
	return p.raw
}

func (p ParamValue) MarshalJSON() ([]byte, error) {
	if p.numeric {
		return []byte(strconv.FormatFloat(p.num, 'g', -1, 64)), nil
	}
	return json.Marshal(p.raw)
}

func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Raw(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("param value must be a number or a string: %s", string(data))
	}
	*p = Number(f)
	return nil
}

func (p *ParamValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: param value must be a scalar", node.Line)
	}
	switch node.Tag {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*p = Number(f)
	default:
		*p = Raw(node.Value)
	}
	return nil
}

// coerce applies the permissive parse rule: numeric params take anything
// that reads as a number and otherwise keep the raw text.
func coerce(kind Kind, v any) ParamValue {
	if pv, ok := v.(ParamValue); ok {
		if kind == KindNumber && !pv.numeric {
			return coerce(kind, pv.raw)
		}
		return pv
	}
	if kind == KindNumber {
		if f, ok := convert.Float(v); ok {
			return Number(f)
		}
	}
	switch t := v.(type) {
	case nil:
		return Raw("")
	case string:
		if kind == KindNumber {
			return Raw(strings.TrimSpace(t))
		}
		return Raw(t)
	case json.Number:
		return Raw(t.String())
	case float64:
		return Raw(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return Raw(fmt.Sprint(t))
	}
}
