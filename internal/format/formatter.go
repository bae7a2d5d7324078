// Package format implements the per-target Target Formatter described in
// spec.md §4.6: it converts a transformed message into the wire shape a
// specific outbound target expects.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"webhookgw/internal/store"
)

// ForTarget produces the outbound JSON body for target, following the
// first-match-wins table in spec.md §4.6.
func ForTarget(message map[string]any, target store.Target, log *zap.Logger) any {
	if log == nil {
		log = zap.NewNop()
	}

	switch target.FormatType {
	case store.FormatTypeTemplate:
		if target.Format != nil {
			return substituteDollarTemplate(target.Format, scalarUnion(message))
		}
	case store.FormatTypeText:
		if formatMap, ok := target.Format.(map[string]any); ok {
			return renderTextFormat(message, formatMap, log)
		}
	}

	urlLower := strings.ToLower(target.URL)
	switch {
	case target.Type == store.TargetTypeWeChat || strings.Contains(urlLower, "wechat"):
		return map[string]any{
			"msgtype": "text",
			"text": map[string]any{
				"content": description(message),
			},
		}

	case target.Type == store.TargetTypeWeChatPersonal:
		if target.WxID == "" {
			log.Warn("format: wechat_personal target missing wxid", zap.String("target", target.Name))
			return map[string]any{}
		}
		return map[string]any{
			"type": "sendText",
			"data": map[string]any{
				"wxid": target.WxID,
				"msg":  description(message),
			},
		}

	case target.Type == store.TargetTypeFeishu || strings.Contains(urlLower, "feishu"):
		return map[string]any{
			"msg_type": "text",
			"content": map[string]any{
				"text": description(message),
			},
		}

	case target.Type == store.TargetTypeDingTalk || strings.Contains(urlLower, "dingtalk"):
		return map[string]any{
			"msgtype": "text",
			"text": map[string]any{
				"content": description(message),
			},
		}

	default:
		return message
	}
}

// description returns message.description, degrading to a stringified
// form of the whole message when absent, per spec.md §4.6.
func description(message map[string]any) string {
	if desc, ok := message["description"].(string); ok {
		return desc
	}
	return fmt.Sprintf("%v", message)
}

// scalarUnion is the union of top-level scalar fields of message and
// top-level scalar fields of message["data"], used by the template/text
// format branches.
func scalarUnion(message map[string]any) map[string]any {
	out := map[string]any{}
	addScalars(out, message)
	if data, ok := message["data"].(map[string]any); ok {
		addScalars(out, data)
	}
	return out
}

func addScalars(out map[string]any, from map[string]any) {
	for key, value := range from {
		switch value.(type) {
		case string, bool, float64, int, int64, nil:
			out[key] = value
		}
	}
}

// substituteDollarTemplate walks target.format, substituting $name tokens
// in every string leaf from data.
func substituteDollarTemplate(node any, data map[string]any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = substituteDollarTemplate(inner, data)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = substituteDollarTemplate(inner, data)
		}
		return out
	case string:
		if !strings.Contains(v, "$") {
			return v
		}
		result := v
		for key, value := range data {
			result = strings.ReplaceAll(result, "$"+key, scalarToString(value))
		}
		return result
	default:
		return v
	}
}

// renderTextFormat looks up format[event_type] (falling back to
// format["default"]), renders it against the scalar union with {name}
// interpolation, and wraps the result as {"text": rendered}. A missing
// key falls back to {"text": message.description}.
func renderTextFormat(message map[string]any, formatMap map[string]any, log *zap.Logger) map[string]any {
	eventType, _ := message["event_type"].(string)
	if eventType == "" {
		eventType = "unknown"
	}

	tmplAny, ok := formatMap[eventType]
	if !ok {
		tmplAny, ok = formatMap["default"]
	}
	tmpl, ok := tmplAny.(string)
	if !ok {
		return map[string]any{"text": description(message)}
	}

	data := scalarUnion(message)
	rendered, missing := renderBraceTemplate(tmpl, data)
	if missing != "" {
		log.Warn("format: text format missing field", zap.String("field", missing))
		return map[string]any{"text": description(message)}
	}
	return map[string]any{"text": rendered}
}

// renderBraceTemplate performs Python-str.format-style {name} substitution.
// It returns the first missing key name, if any, so the caller can apply
// the spec's KeyError fallback.
func renderBraceTemplate(tmpl string, data map[string]any) (string, string) {
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' {
			end := strings.IndexByte(tmpl[i:], '}')
			if end == -1 {
				out.WriteString(tmpl[i:])
				break
			}
			key := tmpl[i+1 : i+end]
			value, ok := data[key]
			if !ok {
				return "", key
			}
			out.WriteString(scalarToString(value))
			i += end + 1
			continue
		}
		out.WriteByte(tmpl[i])
		i++
	}
	return out.String(), ""
}

func scalarToString(v any) string {
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
