// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/responses"
	"github.com/emersion/go-imap/utf7"
)

// listHandler collects untagged LIST responses in their wire form so the
// backup engine can parse them itself.
type listHandler struct {
	lines []string
	err   error
}

func (h *listHandler) Handle(resp imap.Resp) error {
	name, fields, ok := imap.ParseNamedResp(resp)
	if !ok || name != "LIST" {
		return responses.ErrUnhandled
	}

	line, err := formatListFields(fields)
	if err != nil {
		// keep the connection in sync, report after the command completed
		if h.err == nil {
			h.err = err
		}
		return nil
	}
	h.lines = append(h.lines, line)
	return nil
}

// formatListFields renders the fields of a LIST response as
// `(attributes) "delimiter" "name"`, with the name decoded from modified UTF-7.
func formatListFields(fields []interface{}) (string, error) {
	if len(fields) < 3 {
		return "", fmt.Errorf("list response has %d fields, expected 3", len(fields))
	}

	attributes, ok := fields[0].([]interface{})
	if !ok {
		return "", fmt.Errorf("list response attributes are not a list: %v", fields[0])
	}

	delimiter := "NIL"
	if fields[1] != nil {
		d, err := imap.ParseString(fields[1])
		if err != nil {
			return "", fmt.Errorf("invalid list delimiter: %w", err)
		}
		delimiter = `"` + d + `"`
	}

	name, err := imap.ParseString(fields[2])
	if err != nil {
		return "", fmt.Errorf("invalid folder name: %w", err)
	}
	decoded, err := utf7.Encoding.NewDecoder().String(name)
	if err == nil {
		name = decoded
	}

	return formatAttributes(attributes) + " " + delimiter + ` "` + name + `"`, nil
}

func formatAttributes(attributes []interface{}) string {
	parts := make([]string, 0, len(attributes))
	for _, a := range attributes {
		switch v := a.(type) {
		case []interface{}:
			parts = append(parts, formatAttributes(v))
		case string:
			parts = append(parts, v)
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return "(" + strings.Join(parts, " ") + ")"
}
