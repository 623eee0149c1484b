package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var ErrTypedDataNotValid = errors.New("typed data does not match EIP-712 schema")

var TypedDataSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"types", "primaryType", "domain", "message"},
	"properties": map[string]interface{}{
		"types": map[string]interface{}{
			"type": "object",
			"additionalProperties": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []string{"name", "type"},
					"properties": map[string]interface{}{
						"name": map[string]interface{}{"type": "string"},
						"type": map[string]interface{}{"type": "string"},
					},
				},
			},
		},
		"primaryType": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"domain": map[string]interface{}{
			"type": "object",
		},
		"message": map[string]interface{}{
			"type": "object",
		},
	},
}

var (
	typedDataSchemaOnce sync.Once
	typedDataSchema     *gojsonschema.Schema
	typedDataSchemaErr  error
)

func compiledTypedDataSchema() (*gojsonschema.Schema, error) {
	typedDataSchemaOnce.Do(func() {
		typedDataSchema, typedDataSchemaErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(TypedDataSchema))
	})
	return typedDataSchema, typedDataSchemaErr
}

// parseTypedData accepts the typed data either as a JSON string or as an
// already decoded object, checks it against the schema and makes sure it
// can be hashed.
func parseTypedData(param interface{}) (*apitypes.TypedData, error) {
	var raw []byte
	switch v := param.(type) {
	case string:
		raw = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}

	schema, err := compiledTypedDataSchema()
	if err != nil {
		return nil, err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrTypedDataNotValid, strings.Join(details, "; "))
	}

	var typedData apitypes.TypedData
	if err := json.Unmarshal(raw, &typedData); err != nil {
		return nil, err
	}
	if typedData.Types == nil {
		typedData.Types = apitypes.Types{}
	}
	if _, ok := typedData.Types["EIP712Domain"]; !ok {
		typedData.Types["EIP712Domain"] = domainTypes(typedData.Domain)
	}
	if _, _, err := apitypes.TypedDataAndHash(typedData); err != nil {
		return nil, err
	}
	return &typedData, nil
}

// domainTypes derives the EIP712Domain type from the fields the domain sets.
func domainTypes(domain apitypes.TypedDataDomain) []apitypes.Type {
	var types []apitypes.Type
	if domain.Name != "" {
		types = append(types, apitypes.Type{Name: "name", Type: "string"})
	}
	if domain.Version != "" {
		types = append(types, apitypes.Type{Name: "version", Type: "string"})
	}
	if domain.ChainId != nil {
		types = append(types, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if domain.VerifyingContract != "" {
		types = append(types, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if domain.Salt != "" {
		types = append(types, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	return types
}
