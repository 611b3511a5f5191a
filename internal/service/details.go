package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pinkalP4120/order-metafields/internal/domain"
)

// parseDetails decodes a details_json value. Blank input is an empty object.
func parseDetails(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("details_json is %T, not an object", v)
	}
	return m, nil
}

// parseSubmittedIDs decodes submitted_variant_ids. Elements keep their stored JSON type
// (string or json.Number) so a rewrite does not change ids written as numbers.
func parseSubmittedIDs(raw string) ([]any, error) {
	if strings.TrimSpace(raw) == "" {
		return []any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var list []any
	if err := dec.Decode(&list); err != nil {
		return nil, err
	}
	if list == nil {
		return nil, fmt.Errorf("submitted_variant_ids is null")
	}
	for _, e := range list {
		switch e.(type) {
		case string, json.Number:
		default:
			return nil, fmt.Errorf("unexpected %T in submitted_variant_ids", e)
		}
	}
	return list, nil
}

// idStrings renders submitted ids as strings
func idStrings(ids []any) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = domain.FormatValue(id)
	}
	return out
}

// mergeDetails folds fields into details[key]. With MergeStrategyMerge the existing entry's
// keys survive unless overwritten; a non-object entry is discarded.
func mergeDetails(details map[string]any, key string, fields domain.FieldSet, strategy domain.MergeStrategy) {
	entry := map[string]any{}
	if strategy == domain.MergeStrategyMerge {
		if existing, ok := details[key].(map[string]any); ok {
			for k, v := range existing {
				entry[k] = v
			}
		}
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	details[key] = entry
}

// containsID matches id against stored ids of either JSON type
func containsID(ids []any, id string) bool {
	for _, v := range ids {
		if domain.FormatValue(v) == id {
			return true
		}
	}
	return false
}

func findMetafield(list []domain.Metafield, namespace, key string) *domain.Metafield {
	for i := range list {
		if list[i].Namespace == namespace && list[i].Key == key {
			return &list[i]
		}
	}
	return nil
}
