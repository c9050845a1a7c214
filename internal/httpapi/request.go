package httpapi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/enesbasbug/async-translator/internal/language"
)

//go:embed translate_request.schema.json
var translateRequestSchemaJSON string

type translateRequest struct {
	Text      string   `json:"text"`
	Languages []string `json:"languages"`
}

// requestError carries the per-field problems of a rejected request body.
type requestError struct {
	Problems []string
}

func (e *requestError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// decodeTranslateRequest validates raw against the request schema and trims
// the language identifiers, which are otherwise kept as sent. Validation
// problems are returned as *requestError; anything else is an internal failure.
func decodeTranslateRequest(raw []byte) (translateRequest, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return translateRequest{}, &requestError{Problems: []string{"body: " + err.Error()}}
	}

	schema, err := loadSchema()
	if err != nil {
		return translateRequest{}, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return translateRequest{}, &requestError{Problems: validationProblems(ve)}
		}
		return translateRequest{}, fmt.Errorf("schema validation: %w", err)
	}

	var req translateRequest
	if err := json.Unmarshal(bytes.TrimSpace(raw), &req); err != nil {
		return translateRequest{}, &requestError{Problems: []string{"body: " + err.Error()}}
	}

	cleaned, badIndex, ok := language.CleanList(req.Languages)
	if !ok {
		return translateRequest{}, &requestError{Problems: []string{
			fmt.Sprintf("/languages/%d: blank or duplicate language %q", badIndex, req.Languages[badIndex]),
		}}
	}
	req.Languages = cleaned

	if strings.TrimSpace(req.Text) == "" {
		return translateRequest{}, &requestError{Problems: []string{"/text: must not be blank"}}
	}

	return req, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("translate_request.schema.json", strings.NewReader(translateRequestSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("translate_request.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

// validationProblems flattens the leaf causes of ve into "location: message"
// strings, sorted for stable output.
func validationProblems(ve *jsonschema.ValidationError) []string {
	var problems []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "/"
			}
			problems = append(problems, location+": "+e.Message)
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)

	sort.Strings(problems)
	return problems
}
