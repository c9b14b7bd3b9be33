package oracle

import (
	"errors"
	"strings"

	"FaceScan/internal/entity"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNoJSON         = errors.New("cannot find valid JSON in response")
	ErrMissingVerdict = errors.New("response has no correctPosition verdict")
)

// nested envelopes deeper than this are treated as garbage
const maxUnwrapDepth = 4

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.Index(text, "\n"); nl != -1 {
		// drop the language tag, e.g. ```json
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// decodeObject finds the JSON object inside an oracle answer. Besides a plain
// object it accepts code fences, prose around the object, arrays of
// {type,text} blocks, arrays wrapping the object and double-encoded strings.
func decodeObject(text string, depth int) (map[string]interface{}, error) {
	if depth > maxUnwrapDepth {
		return nil, ErrNoJSON
	}

	text = stripFences(text)
	if text == "" {
		return nil, ErrNoJSON
	}

	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		jsonStart := strings.Index(text, "{")
		jsonEnd := strings.LastIndex(text, "}")
		if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
			return nil, ErrNoJSON
		}
		if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &v); err != nil {
			return nil, ErrNoJSON
		}
	}

	return fromValue(v, depth)
}

func fromValue(v interface{}, depth int) (map[string]interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		if text, ok := blockText(t); ok {
			return decodeObject(text, depth+1)
		}
		return t, nil
	case []interface{}:
		var sb strings.Builder
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				if text, ok := blockText(m); ok {
					sb.WriteString(text)
				}
			}
		}
		if sb.Len() > 0 {
			return decodeObject(sb.String(), depth+1)
		}
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				return m, nil
			}
		}
		return nil, ErrNoJSON
	case string:
		return decodeObject(t, depth+1)
	default:
		return nil, ErrNoJSON
	}
}

// blockText reports whether m is a content block like {"type":"text","text":"..."}.
func blockText(m map[string]interface{}) (string, bool) {
	if len(m) > 2 {
		return "", false
	}
	if _, typed := m["type"]; !typed {
		return "", false
	}
	text, ok := m["text"].(string)
	return text, ok
}

func parsePoseVerdict(text string) (bool, string, error) {
	obj, err := decodeObject(text, 0)
	if err != nil {
		return false, "", err
	}

	raw, ok := obj["correctPosition"]
	if !ok {
		raw, ok = obj["correct_position"]
	}
	correct, isBool := raw.(bool)
	if !ok || !isBool {
		return false, "", ErrMissingVerdict
	}

	message, _ := obj["message"].(string)
	return correct, strings.TrimSpace(message), nil
}

func parseMetrics(text string) (entity.RawMetrics, error) {
	obj, err := decodeObject(text, 0)
	if err != nil {
		return nil, err
	}

	if !hasAnyMetric(obj) {
		for _, key := range []string{"metrics", "scores", "result"} {
			if nested, ok := obj[key].(map[string]interface{}); ok && hasAnyMetric(nested) {
				obj = nested
				break
			}
		}
	}

	return entity.RawMetrics(obj), nil
}

func hasAnyMetric(obj map[string]interface{}) bool {
	for _, key := range entity.ScoredMetrics {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}
