// Package envelopes holds the framing shared by the NIP-01 message types: a
// JSON array whose first element is a label string.
package envelopes

import (
	"encoding/json"

	"zapbox.lol/chk"
	"zapbox.lol/errorf"
	"zapbox.lol/text"
)

// Marshal writes a message with the given label, and the content provided by
// the closure, which writes the remaining elements including their leading
// commas' separation.
func Marshal(dst []byte, label string, m func(dst []byte) []byte) (b []byte) {
	dst = append(dst, '[')
	dst = text.Quote(dst, []byte(label))
	dst = append(dst, ',')
	dst = m(dst)
	dst = append(dst, ']')
	return dst
}

// Identify handles determining what kind of envelope a message is, by the
// label. It scans only as far as the end of the label, and returns the
// remainder after the comma that follows it.
func Identify(b []byte) (t string, rem []byte, err error) {
	var open bool
	for i := 0; i < len(b); i++ {
		switch {
		case !open && b[i] == '[':
			open = true
		case open && b[i] == '"':
			for j := i + 1; j < len(b); j++ {
				if b[j] == '"' {
					t = string(b[i+1 : j])
					rem = b[j+1:]
					for k := range rem {
						if rem[k] == ',' {
							rem = rem[k+1:]
							return
						}
					}
					return
				}
			}
			err = errorf.D("unterminated label in message")
			return
		case open && b[i] != ' ' && b[i] != '\t' && b[i] != '\n' && b[i] != '\r':
			err = errorf.D("message label is not a string")
			return
		}
	}
	err = errorf.D("message is not an array")
	return
}

// Split decodes a message into its raw elements, checking the label and that
// there are at least min elements after it.
func Split(b []byte, label string, min int) (elems []json.RawMessage, err error) {
	var raw []json.RawMessage
	if err = json.Unmarshal(b, &raw); chk.D(err) {
		return
	}
	if len(raw) < 1+min {
		err = errorf.D("%s message has %d elements, need %d", label, len(raw)-1, min)
		return
	}
	var l string
	if err = json.Unmarshal(raw[0], &l); chk.D(err) {
		return
	}
	if l != label {
		err = errorf.D("expected %s message, got %s", label, l)
		return
	}
	elems = raw[1:]
	return
}

// String decodes a JSON string element.
func String(raw json.RawMessage) (s string, err error) {
	err = json.Unmarshal(raw, &s)
	return
}
