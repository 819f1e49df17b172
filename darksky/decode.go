package darksky

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Decode parses a forecast response body.
//
// Unknown fields are ignored and absent optional fields are left nil. A
// value of the wrong type, an unknown enum token or a missing required
// field yields a *DecodeError, wrapped in an error of kind KindDecode.
func Decode(body []byte) (*Forecast, error) {
	var forecast Forecast
	if err := json.Unmarshal(body, &forecast); err != nil {
		return nil, newError(KindDecode, "decode forecast", schemaError(body, err))
	}
	return &forecast, nil
}

// DecodeReader reads r to the end and parses it as a forecast.
func DecodeReader(r io.Reader) (*Forecast, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, newError(KindIO, "read response body", err)
	}
	return Decode(body)
}

// decodeStrict unmarshals data into v and checks that every required
// field is present and not null.
func decodeStrict(data []byte, v any, required ...string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return schemaError(data, err)
	}
	if len(required) == 0 {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return schemaError(data, err)
	}
	for _, name := range required {
		raw, ok := fields[name]
		if !ok {
			return &DecodeError{Description: "missing field", Field: name}
		}
		if string(raw) == "null" {
			return &DecodeError{Description: "invalid type: null", Field: name, Value: cloneRaw(raw)}
		}
	}
	return nil
}

// schemaError turns encoding/json type errors into a *DecodeError carrying
// the offending raw value. Other errors are returned unchanged.
func schemaError(data []byte, err error) error {
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return decErr
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &DecodeError{
			Description: fmt.Sprintf("invalid type: %s, expected %s", typeErr.Value, typeErr.Type),
			Field:       typeErr.Field,
			Value:       rawValueAt(data, typeErr.Offset),
		}
	}

	return err
}

// rawValueAt extracts the JSON value that ends at offset. encoding/json
// reports the offset just past a mismatched literal, or just past the
// opening bracket of a mismatched object or array.
func rawValueAt(data []byte, offset int64) json.RawMessage {
	end := int(offset)
	if end <= 0 || end > len(data) {
		return nil
	}

	switch data[end-1] {
	case '{', '[':
		var raw json.RawMessage
		if err := json.NewDecoder(bytes.NewReader(data[end-1:])).Decode(&raw); err != nil {
			return nil
		}
		return raw
	case '"':
		for start := end - 2; start >= 0; start-- {
			if data[start] == '"' && !isEscaped(data, start) {
				return cloneRaw(data[start:end])
			}
		}
		return nil
	}

	start := end
	for start > 0 && !isDelimiter(data[start-1]) {
		start--
	}
	if start == end {
		return nil
	}
	return cloneRaw(data[start:end])
}

func isEscaped(data []byte, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func isDelimiter(c byte) bool {
	switch c {
	case ',', ':', '[', '{', ' ', '\t', '\r', '\n':
		return true
	}
	return false
}
