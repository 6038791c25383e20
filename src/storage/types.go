package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONRaw is a JSON document stored as text.
type JSONRaw json.RawMessage

// NewJSONRaw encodes v.
func NewJSONRaw(v any) (JSONRaw, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONRaw(data), nil
}

// Scan implements the sql.Scanner interface for JSONRaw
func (j *JSONRaw) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case string:
		*j = JSONRaw(v)
	case []byte:
		*j = append(JSONRaw(nil), v...)
	default:
		return fmt.Errorf("cannot scan type %T into JSONRaw", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for JSONRaw
func (j JSONRaw) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "[]", nil
	}
	return string(j), nil
}

func (j JSONRaw) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSONRaw) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// Decode unmarshals the document into v.
func (j JSONRaw) Decode(v any) error {
	if len(j) == 0 {
		return nil
	}
	return json.Unmarshal(j, v)
}
