// SPDX-License-Identifier: GPL-3.0-or-later

// Package listparser decodes the untagged LIST response of an IMAP server,
// `(attr attr ...) "delim" "name"`, into its three parts.
package listparser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// NilDelimiter is used for servers that report no hierarchy.
const NilDelimiter = "."

var ErrMalformedResponse = errors.New("malformed list response")

var (
	// RFC3501 doesn't fully define the format of name attributes
	nameAttributeRe = regexp.MustCompile(`^\s*(\\[a-zA-Z0-9_-]+)\s*`)
	stringListRe    = regexp.MustCompile(`"([^"]*)"|(\S+)`)
)

// Attribute is either a single name attribute or a nested attribute list.
type Attribute struct {
	Name   string
	Nested []Attribute
}

func (a Attribute) IsList() bool {
	return a.Nested != nil
}

func (a Attribute) String() string {
	if !a.IsList() {
		return a.Name
	}
	parts := make([]string, 0, len(a.Nested))
	for _, n := range a.Nested {
		parts = append(parts, n.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

type Response struct {
	Attributes []Attribute
	Delimiter  string
	Name       string
}

// HasAttribute reports whether a top level name attribute is present,
// compared case-insensitively.
func (r *Response) HasAttribute(name string) bool {
	for _, a := range r.Attributes {
		if !a.IsList() && strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

// Parse decodes one LIST response line. Errors wrap ErrMalformedResponse and
// only concern this line.
func Parse(line string) (*Response, error) {
	attributes, rest, err := parseParenList(strings.TrimSpace(line))
	if err != nil {
		return nil, err
	}

	tokens := parseStringList(rest)
	if len(tokens) < 2 {
		return nil, fmt.Errorf("%w: expected delimiter and name after attributes, got %d tokens in %q", ErrMalformedResponse, len(tokens), line)
	}
	tokens = tokens[len(tokens)-2:]

	delimiter := tokens[0]
	if strings.EqualFold(delimiter, "NIL") {
		delimiter = NilDelimiter
	}

	return &Response{
		Attributes: attributes,
		Delimiter:  delimiter,
		Name:       tokens[1],
	}, nil
}

// parseParenList consumes a parenthesized attribute list at the start of
// input and returns it together with the unconsumed remainder.
func parseParenList(input string) ([]Attribute, string, error) {
	if len(input) == 0 || input[0] != '(' {
		return nil, input, fmt.Errorf("%w: attribute list must start with '(' in %q", ErrMalformedResponse, input)
	}
	rest := input[1:]

	result := []Attribute{}
	for {
		rest = strings.TrimLeft(rest, " \t")
		if len(rest) == 0 {
			return nil, input, fmt.Errorf("%w: missing ')' in %q", ErrMalformedResponse, input)
		}

		switch rest[0] {
		case ')':
			return result, rest[1:], nil
		case '(':
			nested, remaining, err := parseParenList(rest)
			if err != nil {
				return nil, input, err
			}
			result = append(result, Attribute{Nested: nested})
			rest = remaining
		default:
			match := nameAttributeRe.FindStringSubmatchIndex(rest)
			if match == nil {
				return nil, input, fmt.Errorf("%w: unexpected attribute at %q", ErrMalformedResponse, rest)
			}
			result = append(result, Attribute{Name: rest[match[2]:match[3]]})
			rest = rest[match[1]:]
		}
	}
}

// parseStringList splits the trailing part of a LIST response into quoted
// strings (without quotes) and unquoted words.
func parseStringList(input string) []string {
	tokens := []string{}
	for _, m := range stringListRe.FindAllStringSubmatchIndex(input, -1) {
		if m[2] >= 0 {
			tokens = append(tokens, input[m[2]:m[3]])
		} else {
			tokens = append(tokens, input[m[4]:m[5]])
		}
	}
	return tokens
}
