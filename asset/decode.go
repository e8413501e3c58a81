// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"io/ioutil"
	"path"
	"strings"

	"github.com/h2non/filetype"
	toml "github.com/pelletier/go-toml/v2"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
	yaml "gopkg.in/yaml.v3"
)

// Format is the encoding of a structured document.
type Format int

// Document formats
const (
	JSON Format = iota
	YAML
	TOML
)

func (f Format) String() string {
	switch f {
	case YAML:
		return "yaml"
	case TOML:
		return "toml"
	default:
		return "json"
	}
}

// FormatOf picks the document format from the locator extension.
// Anything unknown is treated as JSON.
func FormatOf(locator string) Format {
	switch strings.ToLower(path.Ext(locator)) {
	case ".yaml", ".yml":
		return YAML
	case ".toml":
		return TOML
	default:
		return JSON
	}
}

// Doc is a fetched structured document. It is validated on arrival and
// decoded into a concrete type by the consumer.
type Doc struct {
	Format Format
	Data   []byte
}

// Decode unmarshals the document into v.
func (d *Doc) Decode(v interface{}) error {
	switch d.Format {
	case YAML:
		return yaml.Unmarshal(d.Data, v)
	case TOML:
		return toml.Unmarshal(d.Data, v)
	default:
		return json.Unmarshal(d.Data, v)
	}
}

func decode(locator string, strategy Strategy, r io.Reader) (interface{}, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case Text:
		return string(data), nil
	case Image:
		return decodeImage(data)
	case Document:
		doc := &Doc{Format: FormatOf(locator), Data: data}
		if err := validate(doc); err != nil {
			return nil, fmt.Errorf("malformed %s document: %w", doc.Format, err)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unsupported fetch strategy %s", strategy)
	}
}

func decodeImage(data []byte) (image.Image, error) {
	if !filetype.IsImage(data) {
		return nil, ErrNotImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func validate(doc *Doc) error {
	switch doc.Format {
	case JSON:
		if !json.Valid(doc.Data) {
			var v interface{}
			// report the syntax error position
			return json.Unmarshal(doc.Data, &v)
		}
		return nil
	case TOML:
		var v map[string]interface{}
		return doc.Decode(&v)
	default:
		var v interface{}
		return doc.Decode(&v)
	}
}
