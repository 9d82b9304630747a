// Package serializer holds utilities for serializing request bodies and
// deserializing response bodies in different data formats.
package serializer

import (
	"encoding/json"
	"encoding/xml"
	"errors"

	"gopkg.in/yaml.v2"
)

// Serializer describes ability to serialize and deserialize data in fixed format.
type Serializer interface {
	// Deserialize deserializes data on v.
	Deserialize(data []byte, v any) error

	// Serialize serializes v.
	Serialize(v any) ([]byte, error)
}

// JSON is entity that has ability to work with JSON format.
type JSON struct{}

// YAML is entity that has ability to work with YAML format.
type YAML struct{}

// XML is entity that has ability to work with XML format.
type XML struct{}

func NewJSON() JSON {
	return JSON{}
}

func NewYAML() YAML {
	return YAML{}
}

func NewXML() XML {
	return XML{}
}

// Deserialize deserializes data in JSON format on v.
func (s JSON) Deserialize(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Serialize serializes v into JSON format.
func (s JSON) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Deserialize deserializes data in YAML format on v.
func (s YAML) Deserialize(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("data should not be empty")
	}

	// yaml.Unmarshal accepts JSON documents as well; request/response bodies
	// declared as YAML should not silently pass as JSON.
	if err := json.Unmarshal(data, v); err == nil {
		return errors.New("data is in JSON format, expected YAML")
	}

	return yaml.UnmarshalStrict(data, v)
}

// Serialize serializes v into YAML format.
func (s YAML) Serialize(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// Deserialize deserializes data in XML format on v.
func (s XML) Deserialize(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("data should not be empty")
	}

	return xml.Unmarshal(data, v)
}

// Serialize serializes v into XML format.
func (s XML) Serialize(v any) ([]byte, error) {
	return xml.Marshal(v)
}
