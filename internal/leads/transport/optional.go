package transport

import (
	"bytes"
	"encoding/json"
	"strings"
)

// OptionalString is a PATCH field with three states: absent (Set false),
// cleared (Set with nil Value, from null or a blank string) and assigned.
type OptionalString struct {
	Value *string
	Set   bool
}

func (o OptionalString) IsZero() bool { return !o.Set }

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	*o = OptionalString{Set: true}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s = strings.TrimSpace(s); s != "" {
		o.Value = &s
	}
	return nil
}
