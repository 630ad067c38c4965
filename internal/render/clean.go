package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// CleanSpec drops the top-level "data" and "datasets" members of a Vega-Lite
// JSON document. Other members keep their order, strings are written as
// literal UTF-8 rather than \u escapes, and the result is indented with two
// spaces.
func CleanSpec(spec string) (string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(spec)))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("clean spec: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", errors.New("clean spec: top-level value is not an object")
	}

	var compact bytes.Buffer
	compact.WriteByte('{')
	first := true
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("clean spec: %w", err)
		}
		key, _ := keyTok.(string)
		if key == "data" || key == "datasets" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return "", fmt.Errorf("clean spec: member %q: %w", key, err)
			}
			continue
		}
		if !first {
			compact.WriteByte(',')
		}
		first = false
		if err := writeString(&compact, key); err != nil {
			return "", err
		}
		compact.WriteByte(':')
		if err := copyValue(dec, &compact); err != nil {
			return "", fmt.Errorf("clean spec: member %q: %w", key, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return "", fmt.Errorf("clean spec: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", errors.New("clean spec: trailing data after object")
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return "", fmt.Errorf("clean spec: %w", err)
	}
	return out.String(), nil
}

// copyValue re-emits the next value from dec in compact form, keeping
// object member order.
func copyValue(dec *json.Decoder, buf *bytes.Buffer) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case json.Delim:
		start, end := byte(v), byte('}')
		if v == '[' {
			end = ']'
		}
		buf.WriteByte(start)
		for i := 0; dec.More(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if start == '{' {
				k, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := k.(string)
				if err := writeString(buf, key); err != nil {
					return err
				}
				buf.WriteByte(':')
			}
			if err := copyValue(dec, buf); err != nil {
				return err
			}
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		buf.WriteByte(end)
	case string:
		return writeString(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case nil:
		buf.WriteString("null")
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode string: %w", err)
	}
	// Encode appends a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}
