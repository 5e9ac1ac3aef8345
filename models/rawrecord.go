package models

import (
	"fmt"
	"strconv"
)

// ValueKind tags the type of a RawRecord field.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindList
)

// Value is one loosely-typed field extracted by an adapter. Only the
// normalizer interprets these; adapters never coerce or default them.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	List []string
}

// Str returns a string Value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Num returns a numeric Value.
func Num(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// List returns a string-list Value.
func List(items ...string) Value { return Value{Kind: KindList, List: items} }

// String renders the value for metadata passthrough.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindList:
		return fmt.Sprintf("%v", v.List)
	default:
		return v.Str
	}
}

// RawRecord is one vendor-shaped record produced by exactly one adapter.
// It is never persisted; the normalizer consumes it immediately.
type RawRecord struct {
	SourceID string
	Fields   map[string]Value
}

// NewRawRecord returns an empty record for the given source.
func NewRawRecord(sourceID string) *RawRecord {
	return &RawRecord{SourceID: sourceID, Fields: make(map[string]Value)}
}

// Set stores a field, skipping empty strings and empty lists so that
// "absent" stays distinguishable from "present but blank".
func (r *RawRecord) Set(key string, v Value) {
	switch v.Kind {
	case KindString:
		if v.Str == "" {
			return
		}
	case KindList:
		if len(v.List) == 0 {
			return
		}
	}
	r.Fields[key] = v
}

// Get returns the field and whether it was present.
func (r *RawRecord) Get(key string) (Value, bool) {
	v, ok := r.Fields[key]
	return v, ok
}
