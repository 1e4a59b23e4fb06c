package node

import (
	"encoding/json"
	"strings"
)

// ExtractJSON 从模型输出中截取第一个 JSON 值（对象或数组）。
// 模型可能在 JSON 前后夹杂说明文字或 ``` 代码块标记。
func ExtractJSON(s string) string {
	raw := strings.TrimSpace(stripCodeFence(s))
	if raw == "" {
		return raw
	}

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start := -1
	end := -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	if json.Valid([]byte(raw)) {
		return raw
	}
	return strings.TrimSpace(s)
}

func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.Index(t, "\n"); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(t), "```")
}
