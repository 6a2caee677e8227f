package http

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"

	"github.com/aussiebroadwan/userspace/pkg/httpx"
)

// reservedFields never reach the extras: they are either request fields or
// core account fields.
var reservedFields = []string{"id", "verified"}

// decodeFlat decodes a flat JSON object into core and returns the remaining
// fields, which are the caller-defined profile extras.
func decodeFlat(w http.ResponseWriter, r *http.Request, core any, coreFields ...string) (map[string]json.RawMessage, error) {
	var raw json.RawMessage
	if err := httpx.DecodeJSON(w, r, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, core); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	var rest map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rest); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	for _, k := range coreFields {
		delete(rest, k)
	}
	for _, k := range reservedFields {
		delete(rest, k)
	}
	return rest, nil
}

// mergeExtras overlays fields on base and decodes the result as X. Fields
// that X does not declare are dropped.
func mergeExtras[X any](base X, fields map[string]json.RawMessage) (X, error) {
	var out X

	merged := make(map[string]json.RawMessage)
	encoded, err := json.Marshal(base)
	if err != nil {
		return out, err
	}
	if string(encoded) != "null" {
		if err := json.Unmarshal(encoded, &merged); err != nil {
			return out, fmt.Errorf("extras must encode as a JSON object: %w", err)
		}
	}
	maps.Copy(merged, fields)

	encoded, err = json.Marshal(merged)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return out, fmt.Errorf("decode extras: %w", err)
	}
	return out, nil
}
