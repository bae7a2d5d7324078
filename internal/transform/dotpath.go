package transform

// flattenForTemplate produces the flattened view used by template
// application (spec.md §4.3 stage 5): every nested key maps to both its
// leaf value and, for object values, the whole object under its full
// dotted name. Mirrors webhook_server.py's _flatten_dict.
func flattenForTemplate(data map[string]any) map[string]any {
	out := map[string]any{}
	flattenInto(data, out, "")
	return out
}

func flattenInto(data map[string]any, out map[string]any, prefix string) {
	for key, value := range data {
		newKey := key
		if prefix != "" {
			newKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(nested, out, newKey)
			out[newKey] = nested
		} else {
			out[newKey] = value
		}
	}
}
