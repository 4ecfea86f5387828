// Copyright 2025 venslabs
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

package bom

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	cyclonedx "github.com/CycloneDX/cyclonedx-go"
)

// ReadTemplate reads the metadata of a CycloneDX document used as the metadata template.
// JSON and XML documents are accepted; the encoding is detected from the content.
func ReadTemplate(path string) (*cyclonedx.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	r := bufio.NewReader(f)
	first, err := firstByte(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata template %s: %w", path, err)
	}
	var md *cyclonedx.Metadata
	switch first {
	case '{':
		md, err = streamMetadata(r)
	case '<':
		var b cyclonedx.BOM
		err = cyclonedx.NewBOMDecoder(r, cyclonedx.BOMFileFormatXML).Decode(&b)
		md = b.Metadata
	default:
		err = fmt.Errorf("unrecognized document encoding")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata template %s: %w", path, err)
	}
	if md == nil {
		md = &cyclonedx.Metadata{}
	}
	return md, nil
}

func firstByte(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			// whitespace or UTF-8 byte order mark
		default:
			return b[0], nil
		}
		if _, err := r.ReadByte(); err != nil {
			return 0, err
		}
	}
}

// streamMetadata decodes only the root "metadata" member of a JSON BOM and skips
// every other member without materializing it.
func streamMetadata(r io.Reader) (*cyclonedx.Metadata, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("invalid CycloneDX JSON: expected object start")
	}
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := t.(string)
		if !ok {
			return nil, fmt.Errorf("invalid key token")
		}
		if key != "metadata" {
			if err := skipValue(dec); err != nil {
				return nil, err
			}
			continue
		}
		var md cyclonedx.Metadata
		if err := dec.Decode(&md); err != nil {
			return nil, fmt.Errorf("invalid metadata object: %w", err)
		}
		return &md, nil
	}
	return nil, nil
}

// skipValue consumes the next JSON value in full (scalar, object, or array).
func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		if depth == 0 {
			return nil
		}
	}
}
