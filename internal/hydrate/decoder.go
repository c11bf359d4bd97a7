// Package hydrate decodes the loosely typed records of an asset document into
// typed values. Records go through three stages: legacy keys are renamed,
// the payload is decoded through its JSON tags, and the result is validated.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-rendererdata/layering"
)

// Stage names the step of Decode that failed.
type Stage string

const (
	StageRename   Stage = "rename"
	StageDecode   Stage = "decode"
	StageValidate Stage = "validate"
)

// Source locates a record inside an asset document.
type Source struct {
	Asset string
	// Section is the document key holding the records, e.g. "objects".
	Section string
	Index   int
}

func (s Source) String() string {
	section := s.Section
	if section == "" {
		section = "records"
	}
	label := fmt.Sprintf("%s[%d]", section, s.Index)
	if s.Asset != "" {
		label = s.Asset + "/" + label
	}
	return label
}

// DecodeError reports the record and stage that failed.
type DecodeError struct {
	Source Source
	Stage  Stage
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("hydrate: %s %s: %v", e.Stage, e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Options configures a Decoder.
type Options[T any] struct {
	// Renames maps legacy keys to their current name. A legacy key is dropped
	// when the current key is already present.
	Renames map[string]string
	// Strict rejects keys that T does not declare.
	Strict bool
	// Validate checks the decoded record.
	Validate func(*T) error
}

// Decoder turns record payloads into T.
type Decoder[T any] struct {
	opts Options[T]
}

// New returns a decoder for T.
func New[T any](opts Options[T]) *Decoder[T] {
	return &Decoder[T]{opts: opts}
}

// Decode converts payload into T. The payload is not modified.
func (d *Decoder[T]) Decode(src Source, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, &DecodeError{Source: src, Stage: StageDecode, Err: fmt.Errorf("payload is nil")}
	}

	current, err := d.rename(layering.Map(payload))
	if err != nil {
		return zero, &DecodeError{Source: src, Stage: StageRename, Err: err}
	}

	// int64 identifiers are written as exact digits and decode back exactly.
	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, &DecodeError{Source: src, Stage: StageDecode, Err: err}
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.opts.Strict {
		decoder.DisallowUnknownFields()
	}
	var record T
	if err := decoder.Decode(&record); err != nil {
		return zero, &DecodeError{Source: src, Stage: StageDecode, Err: err}
	}

	if d.opts.Validate != nil {
		if err := d.opts.Validate(&record); err != nil {
			return zero, &DecodeError{Source: src, Stage: StageValidate, Err: err}
		}
	}
	return record, nil
}

func (d *Decoder[T]) rename(payload map[string]any) (map[string]any, error) {
	for legacy, key := range d.opts.Renames {
		if legacy == key {
			return nil, fmt.Errorf("key %q renamed to itself", key)
		}
		value, ok := payload[legacy]
		if !ok {
			continue
		}
		delete(payload, legacy)
		if _, set := payload[key]; !set {
			payload[key] = value
		}
	}
	return payload, nil
}
