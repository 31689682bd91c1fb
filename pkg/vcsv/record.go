// Package vcsv reads Cadence-style vcsv trace exports.
//
// A vcsv file carries a metadata line with one ';'-separated entry per
// channel, followed by a numeric block of alternating time/value columns.
// Entries come in two shapes:
//
//	Vout2 vpp 0.1 K 7 (V)
//	leafValue( Vout2 "vpp" 0.1 "K" 7 ) (V)
//
// The first token names the signal, the rest are key/value parameter pairs.
// Parse turns the pair into a long-form Table with one row per channel
// sample.
package vcsv

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Kind is the inferred type of a parameter value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Value is a parameter value typed by its own text: integers stay integers.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
}

// IntValue returns an integer Value.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// FloatValue returns a floating-point Value.
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// Float64 returns the value as a float regardless of kind.
func (v Value) Float64() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// Interface returns the value as int64 or float64. Non-finite floats are
// returned in their text form.
func (v Value) Interface() any {
	if v.Kind == KindInt {
		return v.Int
	}
	if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
		return v.String()
	}
	return v.Float
}

func (v Value) String() string {
	if v.Kind == KindInt {
		return strconv.FormatInt(v.Int, 10)
	}
	s := strconv.FormatFloat(v.Float, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

// MarshalJSON emits a bare JSON number. Non-finite floats become strings
// since JSON has no literal for them.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindInt {
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	}
	s := v.String()
	if strings.ContainsAny(s, "IN") {
		return json.Marshal(s)
	}
	return []byte(s), nil
}

// UnmarshalJSON reads back what MarshalJSON writes. Numbers without a
// fraction or exponent decode as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := string(data)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	parsed, err := parseValue(s)
	if err != nil {
		return fmt.Errorf("vcsv: decode value %s: %w", data, err)
	}
	*v = parsed
	return nil
}

// Param is one named channel parameter.
type Param struct {
	Key   string
	Value Value
}

// Record is the metadata of one channel.
type Record struct {
	Signal string
	Params []Param
}

// Get returns the value of the named parameter.
func (r Record) Get(key string) (Value, bool) {
	for _, p := range r.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// reserved names are the fixed long-form columns a parameter may not shadow.
var reserved = map[string]bool{
	"time":    true,
	"value":   true,
	"signal":  true,
	"channel": true,
}

var leafValue = regexp.MustCompile(`^leafValue\(\s*(.*?)\s*\)`)

// ExtractRecords reads one Record per ';'-separated entry of a metadata line,
// in header order.
func ExtractRecords(header string) ([]Record, error) {
	entries := splitEntries(header)
	if len(entries) == 0 {
		return nil, &ParseError{Entry: strings.TrimSpace(header), Position: 0, Reason: "no metadata entries"}
	}

	records := make([]Record, 0, len(entries))
	for i, entry := range entries {
		rec, err := parseEntry(entry, i)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func splitEntries(header string) []string {
	var entries []string
	for _, e := range strings.Split(header, ";") {
		e = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(e), ","))
		if e == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// entryBody drops the leafValue wrapper or the trailing unit annotation.
func entryBody(entry string) string {
	if m := leafValue.FindStringSubmatch(entry); m != nil {
		return m[1]
	}
	body, _, _ := strings.Cut(entry, "(")
	return strings.TrimSpace(body)
}

func parseEntry(entry string, pos int) (Record, error) {
	tokens, err := tokenize(entryBody(entry))
	if err != nil {
		return Record{}, &ParseError{Entry: entry, Position: pos, Reason: "cannot tokenize", Err: err}
	}
	if len(tokens) == 0 {
		return Record{}, &ParseError{Entry: entry, Position: pos, Reason: "missing signal name"}
	}
	if len(tokens)%2 == 0 {
		return Record{}, &ParseError{
			Entry:    entry,
			Position: pos,
			Reason:   fmt.Sprintf("parameter %q has no value", tokens[len(tokens)-1]),
		}
	}

	rec := Record{Signal: tokens[0]}
	for i := 1; i < len(tokens); i += 2 {
		key := tokens[i]
		if reserved[key] {
			return Record{}, &ParseError{Entry: entry, Position: pos, Reason: fmt.Sprintf("parameter name %q is reserved", key)}
		}
		val, err := parseValue(tokens[i+1])
		if err != nil {
			return Record{}, &ParseError{
				Entry:    entry,
				Position: pos,
				Reason:   fmt.Sprintf("parameter %q has non-numeric value %q", key, tokens[i+1]),
				Err:      err,
			}
		}
		rec.set(key, val)
	}
	return rec, nil
}

// set keeps the first position of a repeated key and the last value.
func (r *Record) set(key string, v Value) {
	for i := range r.Params {
		if r.Params[i].Key == key {
			r.Params[i].Value = v
			return
		}
	}
	r.Params = append(r.Params, Param{Key: key, Value: v})
}

// tokenize splits on unquoted whitespace. Operators such as '<' or '|' are
// ordinary characters, so bus names like dout<3> stay one token.
func tokenize(s string) ([]string, error) {
	return shellquote.Split(s)
}

// parseValue reads a decimal integer, falling back to a float. Underscores
// are accepted only between digits and hexadecimal forms are rejected.
func parseValue(s string) (Value, error) {
	if strings.ContainsAny(s, "xX") {
		return Value{}, fmt.Errorf("hexadecimal literal %q", s)
	}
	if strings.Contains(s, "_") {
		if !digitSeparated(s) {
			return Value{}, fmt.Errorf("misplaced underscore in %q", s)
		}
		s = strings.ReplaceAll(s, "_", "")
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, err
	}
	return FloatValue(f), nil
}

// digitSeparated reports whether every '_' in s sits between two digits.
func digitSeparated(s string) bool {
	isDigit := func(b byte) bool { return b >= '0' && b <= '9' }
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			continue
		}
		if i == 0 || i == len(s)-1 || !isDigit(s[i-1]) || !isDigit(s[i+1]) {
			return false
		}
	}
	return true
}
