package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attribute is one name/value pair of an event's structured payload.
type Attribute struct {
	Name  string
	Value string
}

// Attributes is an ordered name→value mapping. It marshals to a JSON
// object whose keys keep insertion order, so identical input always
// yields byte-identical store lines.
type Attributes []Attribute

// Get returns the value for name and whether it is present.
func (a Attributes) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// MarshalJSON writes the attributes as an object in slice order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(attr.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("attributes: expected object, got %v", tok)
	}

	var attrs Attributes
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("attributes: expected string key, got %v", keyTok)
		}

		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("attributes: value for %q: %w", key, err)
		}
		attrs = append(attrs, Attribute{Name: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*a = attrs
	return nil
}
