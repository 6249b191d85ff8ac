package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/desertthunder/imgset/internal/shared"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// maxBodyBytes caps JSON request bodies. Uploads use their own limit.
const maxBodyBytes = 1 << 20

// schemas holds the compiled request body schemas.
type schemas struct {
	label   *jsonschema.Schema
	csvfile *jsonschema.Schema
	dataset *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compile := func(name string) (*jsonschema.Schema, error) {
		data, err := schemaFiles.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		sch, err := jsonschema.CompileString(name, string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		return sch, nil
	}

	var (
		s   schemas
		err error
	)
	if s.label, err = compile("label.json"); err != nil {
		return nil, err
	}
	if s.csvfile, err = compile("csvfile.json"); err != nil {
		return nil, err
	}
	if s.dataset, err = compile("dataset.json"); err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeBody validates the JSON body of r against sch and then decodes it into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, sch *jsonschema.Schema, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read body: %v", shared.ErrInvalidInput, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: body is not valid JSON: %v", shared.ErrInvalidInput, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
