package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Format renders a webhook result as display text. Objects yield their
// "message" field when it is a non-blank string, arrays yield the non-blank
// "output" fields of their elements separated by blank lines, and anything
// else is serialized. JSON kept as json.RawMessage is rendered in its
// source member order.
func Format(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.RawMessage:
		return formatJSON(t)
	case nil:
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return formatJSON(b)
}

func formatJSON(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '{':
		if msg := stringMember(raw, "message"); strings.TrimSpace(msg) != "" {
			return msg
		}
		return dumps(raw)
	case '[':
		var items []json.RawMessage
		_ = json.Unmarshal(raw, &items)
		var outputs []string
		for _, item := range items {
			if out := strings.TrimSpace(stringMember(item, "output")); out != "" {
				outputs = append(outputs, out)
			}
		}
		if len(outputs) > 0 {
			return strings.Join(outputs, "\n\n")
		}
		return dumps(raw)
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return string(raw)
}

// stringMember returns obj[key] when obj is a JSON object and the member is a
// string, else "".
func stringMember(obj json.RawMessage, key string) string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(obj, &fields) != nil {
		return ""
	}
	var s string
	if json.Unmarshal(fields[key], &s) != nil {
		return ""
	}
	return s
}

// dumps re-serializes raw keeping member order, with ", " and ": " separators
// and non-ASCII text left unescaped.
func dumps(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var b strings.Builder
	if err := writeValue(dec, &b); err != nil {
		return string(raw)
	}
	return b.String()
}

var errBadKey = errors.New("object key is not a string")

func writeValue(dec *json.Decoder, b *strings.Builder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		closing := byte('}')
		if t == '[' {
			closing = ']'
		}
		b.WriteByte(byte(t))
		for i := 0; dec.More(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			if t == '{' {
				key, err := dec.Token()
				if err != nil {
					return err
				}
				k, ok := key.(string)
				if !ok {
					return errBadKey
				}
				writeString(b, k)
				b.WriteString(": ")
			}
			if err := writeValue(dec, b); err != nil {
				return err
			}
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		b.WriteByte(closing)
	case string:
		writeString(b, t)
	case json.Number:
		b.WriteString(t.String())
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case nil:
		b.WriteString("null")
	}
	return nil
}

func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
