package pdp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/services"
	"gopkg.in/yaml.v3"
)

const policySchemaURL = "https://arp.schemas.local/pdp/policy.schema.json"

// policySchema describes the shape of a policy file. Unknown keys are ignored.
const policySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "deny_actions": {
      "type": ["array", "null"],
      "items": {"type": "string"}
    },
    "require_approval_actions": {
      "type": ["array", "null"],
      "items": {"type": "string"}
    }
  }
}`

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

func loadPolicySchema() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(policySchemaURL, strings.NewReader(policySchema)); err != nil {
			compiledSchemaErr = fmt.Errorf("add policy schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = c.Compile(policySchemaURL)
	})
	return compiledSchema, compiledSchemaErr
}

// LoadPolicyFile reads and parses the policy file at path.
// The file is read on every call; there is no cache.
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadPolicyFile(path string) (*models.PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.ErrPolicyFileUnreadable.Wrap(err).WithDetail("path", path)
	}
	return ParsePolicyFile(data, isYAMLPath(path))
}

// ParsePolicyFile decodes a policy document already in memory
func ParsePolicyFile(data []byte, asYAML bool) (*models.PolicyFile, error) {
	var doc interface{}
	if asYAML {
		normalized, err := yamlToJSON(data)
		if err != nil {
			return nil, services.ErrPolicyFileMalformed.Wrap(err)
		}
		data = normalized
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, services.ErrPolicyFileMalformed.Wrap(err)
	}
	if dec.More() {
		return nil, services.ErrPolicyFileMalformed.Wrap(errors.New("trailing data after policy document"))
	}

	if _, ok := doc.(map[string]interface{}); !ok {
		return nil, services.ErrPolicyFileNotObject.WithDetail("type", jsonTypeName(doc))
	}

	schema, err := loadPolicySchema()
	if err != nil {
		return nil, services.WrapInternal("policy schema unavailable", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, services.ErrPolicyFileInvalid.Wrap(err)
	}

	var policy models.PolicyFile
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, services.ErrPolicyFileMalformed.Wrap(err)
	}
	return &policy, nil
}

// yamlToJSON re-encodes a YAML document as JSON so both formats share one validation path
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("policy document is not representable as JSON: %w", err)
	}
	return out, nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
