// Package canon implements the deterministic byte serialization used to
// produce the bytes a signature is computed over. Every implementation of
// this protocol, in whatever language, must agree byte-for-byte on this
// encoding or signatures will not verify across implementations.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"
)

// SignedString wraps a raw string so that Canonicalize(SignedString(s))
// returns exactly s's bytes, with no JSON quoting. It exists so a
// already-canonical sub-document (e.g. the concatenation of two other
// canonical documents) can be embedded verbatim inside a larger structure
// during intermediate test fixtures, without being re-escaped as a JSON
// string.
type SignedString string

// Canonicalize renders v as canonical JSON: object keys sorted recursively
// by UTF-16 code-unit order, arrays left in original order, null-valued
// object fields omitted, no whitespace, no trailing newline.
//
// v must be built from the types encoding/json produces when unmarshaling
// into interface{} (map[string]interface{}, []interface{}, string,
// float64, bool, nil), plus SignedString, map[string]string, and int,
// int64 and uint64 scalars. Anything else is rejected as a programmer error.
func Canonicalize(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case SignedString:
		buf.WriteString(string(t))
		return nil
	case map[string]interface{}:
		return writeObject(buf, t)
	case map[string]string:
		m := make(map[string]interface{}, len(t))
		for k, v := range t {
			m[k] = v
		}
		return writeObject(buf, m)
	case []interface{}:
		return writeArray(buf, t)
	case string:
		return writeString(buf, t)
	case bool, float64, int, int64, uint64:
		return writeScalar(buf, t)
	default:
		return fmt.Errorf("canon: unsupported value type %T", v)
	}
}

func writeObject(buf *bytes.Buffer, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v == nil {
			continue // omit null-valued fields
		}
		keys = append(keys, k)
	}
	sortByUTF16(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := write(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeArray(buf *bytes.Buffer, a []interface{}) error {
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := write(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc, err := marshalNoEscape(s)
	if err != nil {
		return err
	}
	buf.Write(enc)
	return nil
}

func writeScalar(buf *bytes.Buffer, v interface{}) error {
	enc, err := marshalNoEscape(v)
	if err != nil {
		return err
	}
	buf.Write(enc)
	return nil
}

// marshalNoEscape JSON-encodes v the way encoding/json does, except without
// escaping '<', '>' and '&' (Go's default HTML-safe escaping would corrupt
// the canonical form relative to every other implementation, none of which
// escape those characters).
func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; strip it.
	b := buf.Bytes()
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return b, nil
}

// sortByUTF16 sorts strings by UTF-16 code-unit order, matching the
// reference implementation's reliance on JavaScript's default
// Array.prototype.sort for string keys. This is NOT the same as Go's
// default byte-wise string comparison once keys contain characters outside
// the Basic Multilingual Plane: their surrogate code units (0xD800-0xDFFF)
// sort before BMP characters U+E000-U+FFFF, whereas in UTF-8 byte order
// those BMP characters sort first — compare explicitly rather than relying
// on either language's default collation.
func sortByUTF16(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		return lessUTF16(keys[i], keys[j])
	})
}

func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	n := len(ua)
	if len(ub) < n {
		n = len(ub)
	}
	for i := 0; i < n; i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}
