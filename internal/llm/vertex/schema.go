package vertex

import "encoding/json"

func schemaJSON(v map[string]any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
