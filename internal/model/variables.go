package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// Variables are template placeholder values keyed by placeholder name.
type Variables map[string]string

// UnmarshalJSON accepts scalar values of any JSON type and keeps their text form,
// so {"1": 14} and {"1": "14"} decode the same.
func (v *Variables) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(Variables, len(raw))
	for k, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out[k] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err == nil {
			out[k] = n.String()
			continue
		}
		var bl bool
		if err := json.Unmarshal(r, &bl); err == nil {
			out[k] = strconv.FormatBool(bl)
			continue
		}
		if string(r) == "null" {
			out[k] = ""
			continue
		}
		return fmt.Errorf("variables.%s: expected a scalar value", k)
	}
	*v = out
	return nil
}

// Value stores variables as a JSON document.
func (v Variables) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *Variables) Scan(src any) error {
	var b []byte
	switch x := src.(type) {
	case nil:
		*v = Variables{}
		return nil
	case []byte:
		b = x
	case string:
		b = []byte(x)
	default:
		return fmt.Errorf("variables: unsupported scan type %T", src)
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*v = m
	return nil
}
