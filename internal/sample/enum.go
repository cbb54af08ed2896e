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

package sample

import (
	"fmt"

	"github.com/9rum/meanalysis/internal/config"
	"google.golang.org/protobuf/types/known/structpb"
)

// Type classifies a sample by era and method.
type Type int32

const (
	NOME_8TEV Type = iota
	ME_8TEV
	NOME_13TEV
	ME_13TEV
)

var typeNames = [...]string{"NOME_8TEV", "ME_8TEV", "NOME_13TEV", "ME_13TEV"}

func (t Type) String() string {
	if 0 <= t && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

// Process classifies a sample by physics process.
type Process int32

const (
	TTHBB Process = iota
	TTJETS
)

var processNames = [...]string{"TTHBB", "TTJETS"}

func (p Process) String() string {
	if 0 <= p && int(p) < len(processNames) {
		return processNames[p]
	}
	return fmt.Sprintf("Process(%d)", int32(p))
}

// enum reads an enumerated value of the given key, given either by name or
// by ordinal.
func enum(rec config.Record, key string, names []string) (int32, error) {
	v, err := rec.Value(key)
	if err != nil {
		return 0, err
	}

	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		for ordinal, name := range names {
			if name == kind.StringValue {
				return int32(ordinal), nil
			}
		}
		return 0, &config.Error{Key: key, Reason: fmt.Sprintf("unknown value %q", kind.StringValue)}
	case *structpb.Value_NumberValue:
		ordinal, err := rec.Int(key)
		if err != nil {
			return 0, err
		}
		if ordinal < 0 || int64(len(names)) <= ordinal {
			return 0, &config.Error{Key: key, Reason: fmt.Sprintf("ordinal %d out of range", ordinal)}
		}
		return int32(ordinal), nil
	default:
		return 0, &config.Error{Key: key, Reason: fmt.Sprintf("expected name or ordinal, got %s", config.Kind(v))}
	}
}
