// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides the configuration records samples are built from.
// A record is an externally parsed key-value structure; the getters in this
// package turn a missing or mistyped key into an *Error, which is the single
// error kind construction of a sample may fail with.
package config

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// Error reports a configuration key that is absent or of the wrong type.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// IsConfigurationError reports whether any error in err's chain is an *Error.
func IsConfigurationError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// Record is a parsed configuration record.
type Record struct {
	*structpb.Struct
}

// NewRecord creates a new record with the given key-value pairs.
func NewRecord(fields map[string]interface{}) (Record, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return Record{}, err
	}
	return Record{Struct: s}, nil
}

// Has tests whether the record contains the given key.
func (r Record) Has(key string) bool {
	_, ok := r.GetFields()[key]
	return ok
}

// Value returns the raw value of the given key.
func (r Record) Value(key string) (*structpb.Value, error) {
	v, ok := r.GetFields()[key]
	if !ok || v == nil {
		return nil, &Error{Key: key, Reason: "missing"}
	}
	return v, nil
}

// String returns the string value of the given key.
func (r Record) String(key string) (string, error) {
	v, err := r.Value(key)
	if err != nil {
		return "", err
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", mistyped(key, "string", v)
	}
	return s.StringValue, nil
}

// Strings returns the list of strings of the given key.
func (r Record) Strings(key string) ([]string, error) {
	v, err := r.Value(key)
	if err != nil {
		return nil, err
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, mistyped(key, "list", v)
	}
	out := make([]string, 0, len(list.ListValue.GetValues()))
	for index, elem := range list.ListValue.GetValues() {
		s, ok := elem.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, mistyped(fmt.Sprintf("%s[%d]", key, index), "string", elem)
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

// Float returns the numeric value of the given key.
func (r Record) Float(key string) (float64, error) {
	v, err := r.Value(key)
	if err != nil {
		return 0, err
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, mistyped(key, "number", v)
	}
	return n.NumberValue, nil
}

// Int returns the integral value of the given key.
func (r Record) Int(key string) (int64, error) {
	f, err := r.Float(key)
	if err != nil {
		return 0, err
	}
	if math.Trunc(f) != f || math.IsInf(f, 0) {
		return 0, &Error{Key: key, Reason: fmt.Sprintf("expected integer, got %v", f)}
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, &Error{Key: key, Reason: fmt.Sprintf("integer %v out of range", f)}
	}
	return int64(f), nil
}

// Bool returns the boolean value of the given key.
func (r Record) Bool(key string) (bool, error) {
	v, err := r.Value(key)
	if err != nil {
		return false, err
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, mistyped(key, "bool", v)
	}
	return b.BoolValue, nil
}

func mistyped(key, want string, v *structpb.Value) *Error {
	return &Error{Key: key, Reason: fmt.Sprintf("expected %s, got %s", want, Kind(v))}
}

// Kind names the type held by the given value.
func Kind(v *structpb.Value) string {
	switch v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "null"
	case *structpb.Value_NumberValue:
		return "number"
	case *structpb.Value_StringValue:
		return "string"
	case *structpb.Value_BoolValue:
		return "bool"
	case *structpb.Value_StructValue:
		return "struct"
	case *structpb.Value_ListValue:
		return "list"
	default:
		return "nothing"
	}
}
