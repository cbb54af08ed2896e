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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"
)

// samplesKey is the top-level key holding the list of sample records.
const samplesKey = "samples"

// Load reads the sample list stored at the given path. YAML and JSON
// documents are supported, selected by the file extension.
func Load(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		records, err = ParseYAML(raw)
	case ".json":
		records, err = ParseJSON(raw)
	default:
		return nil, fmt.Errorf("%s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ParseYAML parses a YAML sample list.
func ParseYAML(raw []byte) ([]Record, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	root, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, err
	}
	return records(Record{Struct: root})
}

// ParseJSON parses a JSON sample list.
func ParseJSON(raw []byte) ([]Record, error) {
	root := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, root); err != nil {
		return nil, err
	}
	return records(Record{Struct: root})
}

// records extracts the sample records from the given document root.
func records(root Record) ([]Record, error) {
	v, err := root.Value(samplesKey)
	if err != nil {
		return nil, err
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, mistyped(samplesKey, "list", v)
	}

	out := make([]Record, 0, len(list.ListValue.GetValues()))
	for index, elem := range list.ListValue.GetValues() {
		s, ok := elem.GetKind().(*structpb.Value_StructValue)
		if !ok {
			return nil, mistyped(fmt.Sprintf("%s[%d]", samplesKey, index), "struct", elem)
		}
		out = append(out, Record{Struct: s.StructValue})
	}
	return out, nil
}
