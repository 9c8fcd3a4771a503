package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemaByT  map[string]*jsonschema.Schema
	schemaErr  error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	files := map[string]string{
		TypeGenerate: "schemas/generate.schema.json",
		TypeResult:   "schemas/result.schema.json",
	}
	for _, name := range files {
		f, err := schemaFS.Open(name)
		if err != nil {
			schemaErr = err
			return
		}
		err = c.AddResource("mem://"+name, f)
		_ = f.Close()
		if err != nil {
			schemaErr = err
			return
		}
	}
	schemaByT = map[string]*jsonschema.Schema{}
	for typ, name := range files {
		s, err := c.Compile("mem://" + name)
		if err != nil {
			schemaErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		schemaByT[typ] = s
	}
}

// Validate checks a raw message against the schema of its type.
func Validate(msgType string, raw []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	s := schemaByT[msgType]
	if s == nil {
		return fmt.Errorf("no schema for message type %q", msgType)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
