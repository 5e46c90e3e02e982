// Package stalling loads the stalling events of a playback from a YAML or
// JSON file.
//
//	streamId: 42
//	stalling:
//	  - [0, 1.2]
//	  - [10.5, 2]
//
// Each event is a pair of onset and duration in seconds.
package stalling

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/datarhei/p1203/encoding/json"
	"github.com/datarhei/p1203/report"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Document is the content of a stalling file.
type Document struct {
	StreamID *int        `json:"streamId,omitempty" jsonschema:"minimum=0,description=ID of the stream the events belong to"`
	Stalling [][]float64 `json:"stalling" jsonschema:"description=List of pairs of onset and duration in seconds"`
}

// Stalling are the loaded stalling events.
type Stalling struct {
	StreamID int // 0 if the file doesn't define a stream ID
	Events   []report.StallingEvent
}

// ErrInvalid is returned if the file doesn't describe valid stalling events.
var ErrInvalid = errors.New("invalid stalling events")

// Schema returns the JSON schema of a stalling file.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	schema := r.Reflect(&Document{})
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// Load reads the stalling events from the file.
func Load(path string) (Stalling, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stalling{}, err
	}

	s, err := Parse(data)
	if err != nil {
		return Stalling{}, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// Parse parses the stalling events from a YAML or JSON document.
func Parse(data []byte) (Stalling, error) {
	var raw interface{}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&raw); err != nil {
		return Stalling{}, fmt.Errorf("%w: %s", ErrInvalid, err)
	}

	if err := validate(raw); err != nil {
		return Stalling{}, err
	}

	// The document is valid, such that it can be decoded into the
	// document struct by the JSON decoder.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return Stalling{}, fmt.Errorf("%w: %s", ErrInvalid, err)
	}

	doc := Document{}
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return Stalling{}, fmt.Errorf("%w: %s", ErrInvalid, json.FormatError(normalized, err))
	}

	s := Stalling{
		Events: make([]report.StallingEvent, 0, len(doc.Stalling)),
	}

	if doc.StreamID != nil {
		s.StreamID = *doc.StreamID
	}

	for i, pair := range doc.Stalling {
		if len(pair) != 2 {
			return Stalling{}, fmt.Errorf("%w: event %d must be a pair of onset and duration, found %d values", ErrInvalid, i, len(pair))
		}

		if pair[0] < 0 || pair[1] < 0 {
			return Stalling{}, fmt.Errorf("%w: event %d must not have a negative onset or duration", ErrInvalid, i)
		}

		s.Events = append(s.Events, report.StallingEvent{
			Onset:    pair[0],
			Duration: pair[1],
		})
	}

	return s, nil
}

func validate(doc interface{}) error {
	schema, err := Schema().MarshalJSON()
	if err != nil {
		return err
	}

	schemaLoader := gojsonschema.NewStringLoader(string(schema))
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err)
	}

	if !result.Valid() {
		messages := []string{}
		for _, e := range result.Errors() {
			messages = append(messages, e.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(messages, "; "))
	}

	return nil
}
