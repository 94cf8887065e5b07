package llm

// BuildExtractionJSONSchema returns the JSON-Schema (draft 2020-12 subset) the service's
// output must satisfy before normalization. It only pins the structure: value coercion
// (currency strings, negative amounts, blank names) is Normalize's job.
func BuildExtractionJSONSchema() map[string]any {
	amount := map[string]any{"type": []any{"number", "string", "null"}}
	text := map[string]any{"type": []any{"string", "null"}}

	pkg := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": []any{"string", "number", "null"}},
			"cost": amount,
			"rawPlacements": map[string]any{
				"type":  []any{"array", "string", "null"},
				"items": map[string]any{"type": []any{"string", "number", "null"}},
			},
		},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fundingGoal":    amount,
			"term":           text,
			"impact":         text,
			"totalSupported": amount,
			"packages": map[string]any{
				"type":  []any{"array", "null"},
				"items": pkg,
			},
		},
	}
}
