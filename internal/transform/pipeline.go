// Package transform implements the pure, five-stage transformation
// pipeline described in spec.md §4.3: field mapping, inclusion filter,
// type transforms, field injection, template application.
//
// Stages 1-4 operate on raw JSON bytes via gjson/sjson dotted-path
// accessors, mirroring internal/core/providers/universal.go's
// applyFieldMapTransform from the teacher gateway. Stage 5 (template
// application) needs to walk an arbitrary tree and substitute against a
// flattened view, so it operates on a decoded map[string]any instead.
package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"webhookgw/internal/store"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// Apply runs the five fixed stages over payload in order, regardless of
// which spec keys are set, and returns the transformed payload. It is
// pure and deterministic: the same inputs always give the same output.
// Re-applying it to its own output is not a no-op in general: a format:
// transform wraps the already formatted value again, and a field mapping
// with merge_mapped false looks for source fields that are no longer there.
//
// A failed path write inside a stage is logged and the stage goes on with
// the body it has; if the preprocessed body cannot be decoded, the
// original payload is used, not the output of the last stage that
// succeeded. A cast that fails yields the zero value and a template
// placeholder with no matching field is left in place; neither is
// logged. No transform failure aborts the request.
func Apply(payload map[string]any, pre *store.PreprocessSpec, templateName string, templates map[string]map[string]any, log *zap.Logger) map[string]any {
	if log == nil {
		log = zap.NewNop()
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		log.Error("transform: failed to marshal payload, skipping preprocess", zap.Error(err))
		body = []byte("{}")
	}

	if pre != nil {
		body = applyFieldMapping(body, pre, log)
		body = applyInclusionFilter(body, pre, log)
		body = applyTypeTransforms(body, pre, log)
		body = applyFieldInjection(body, pre, log)
	}

	var result map[string]any
	if err := sonic.Unmarshal(body, &result); err != nil {
		log.Error("transform: failed to unmarshal after preprocess, reverting to original payload", zap.Error(err))
		result = payload
	}

	if templateName != "" {
		if tmpl, ok := templates[templateName]; ok {
			result = applyTemplate(tmpl, result)
		}
	}

	return result
}

// applyFieldMapping is stage 1. Builds `mapped` from field_mapping, then
// either shallow-merges it over the input (mapped wins at top level) or
// replaces the input with it entirely, per merge_mapped.
func applyFieldMapping(body []byte, pre *store.PreprocessSpec, log *zap.Logger) []byte {
	if len(pre.FieldMapping) == 0 {
		return body
	}

	mapped := []byte("{}")
	for targetPath, sourcePath := range pre.FieldMapping {
		value := gjson.GetBytes(body, sourcePath)
		if !value.Exists() {
			continue
		}
		var err error
		mapped, err = setGJSONValue(mapped, targetPath, value)
		if err != nil {
			log.Error("transform: field_mapping set failed", zap.String("target", targetPath), zap.Error(err))
		}
	}

	if !pre.MergeMappedOrDefault() {
		return mapped
	}

	result := body
	mappedTop := gjson.ParseBytes(mapped)
	var setErr error
	mappedTop.ForEach(func(key, value gjson.Result) bool {
		result, setErr = setGJSONValue(result, key.String(), value)
		if setErr != nil {
			log.Error("transform: field_mapping merge failed", zap.String("key", key.String()), zap.Error(setErr))
		}
		return true
	})
	return result
}

// applyInclusionFilter is stage 2: keep only include_fields, preserving
// nested structure, silently omitting missing paths.
func applyInclusionFilter(body []byte, pre *store.PreprocessSpec, log *zap.Logger) []byte {
	if len(pre.IncludeFields) == 0 {
		return body
	}

	filtered := []byte("{}")
	for _, path := range pre.IncludeFields {
		value := gjson.GetBytes(body, path)
		if !value.Exists() {
			continue
		}
		var err error
		filtered, err = setGJSONValue(filtered, path, value)
		if err != nil {
			log.Error("transform: include_fields set failed", zap.String("path", path), zap.Error(err))
		}
	}
	return filtered
}

// applyTypeTransforms is stage 3: to_string, to_int, to_float, to_bool,
// format:<tmpl>.
func applyTypeTransforms(body []byte, pre *store.PreprocessSpec, log *zap.Logger) []byte {
	if len(pre.Transformations) == 0 {
		return body
	}

	result := body
	for path, kind := range pre.Transformations {
		value := gjson.GetBytes(result, path)
		if !value.Exists() {
			continue
		}

		var err error
		switch {
		case kind == "to_string":
			result, err = sjson.SetBytes(result, path, valueToString(value))
		case kind == "to_int":
			result, err = sjson.SetBytes(result, path, valueToInt(value))
		case kind == "to_float":
			result, err = sjson.SetBytes(result, path, valueToFloat(value))
		case kind == "to_bool":
			result, err = sjson.SetBytes(result, path, valueToBool(value))
		case strings.HasPrefix(kind, "format:"):
			formatStr := strings.TrimPrefix(kind, "format:")
			rendered := strings.ReplaceAll(formatStr, "{value}", valueToString(value))
			result, err = sjson.SetBytes(result, path, rendered)
		default:
			continue
		}
		if err != nil {
			log.Error("transform: type transform failed", zap.String("path", path), zap.String("kind", kind), zap.Error(err))
		}
	}
	return result
}

// applyFieldInjection is stage 4: add_fields literals, creating parents.
func applyFieldInjection(body []byte, pre *store.PreprocessSpec, log *zap.Logger) []byte {
	if len(pre.AddFields) == 0 {
		return body
	}

	result := body
	for path, literal := range pre.AddFields {
		var err error
		result, err = sjson.SetBytes(result, path, literal)
		if err != nil {
			log.Error("transform: add_fields set failed", zap.String("path", path), zap.Error(err))
		}
	}
	return result
}

// applyTemplate is stage 5: walk the template tree, substituting {name}
// placeholders from a flattened view of the stage-4 payload. The
// substituted tree replaces the payload entirely. Missing placeholders
// leave the template string unchanged.
func applyTemplate(tmpl map[string]any, payload map[string]any) map[string]any {
	flattened := flattenForTemplate(payload)
	result := make(map[string]any, len(tmpl))
	for key, value := range tmpl {
		result[key] = substituteTemplateValue(value, flattened)
	}
	return result
}

func substituteTemplateValue(value any, data map[string]any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = substituteTemplateValue(inner, data)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = substituteTemplateValue(inner, data)
		}
		return out
	case string:
		if !strings.Contains(v, "{") {
			return v
		}
		return placeholderRe.ReplaceAllStringFunc(v, func(match string) string {
			key := match[1 : len(match)-1]
			if val, ok := data[key]; ok {
				return valueToDisplayString(val)
			}
			return match
		})
	default:
		return v
	}
}

// setGJSONValue writes a gjson.Result into body at path, preserving its
// original JSON type (string/number/bool/raw), following
// applyFieldMapTransform's value-type switch.
func setGJSONValue(body []byte, path string, value gjson.Result) ([]byte, error) {
	switch value.Type {
	case gjson.String:
		return sjson.SetBytes(body, path, value.String())
	case gjson.Number:
		return sjson.SetBytes(body, path, value.Float())
	case gjson.True, gjson.False:
		return sjson.SetBytes(body, path, value.Bool())
	case gjson.Null:
		return sjson.SetBytes(body, path, nil)
	default:
		return sjson.SetRawBytes(body, path, []byte(value.Raw))
	}
}

func valueToString(v gjson.Result) string {
	return v.String()
}

func valueToInt(v gjson.Result) int64 {
	switch v.Type {
	case gjson.Number:
		return v.Int()
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case gjson.True:
		return 1
	case gjson.False:
		return 0
	default:
		return 0
	}
}

func valueToFloat(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return 0
		}
		return f
	case gjson.True:
		return 1
	case gjson.False:
		return 0
	default:
		return 0
	}
}

func valueToBool(v gjson.Result) bool {
	if v.Type == gjson.String {
		s := strings.ToLower(strings.TrimSpace(v.String()))
		return s == "true" || s == "yes" || s == "1" || s == "y"
	}
	return v.Bool()
}

func valueToDisplayString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
