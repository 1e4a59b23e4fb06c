package node

import "strings"

// IsResponseFormatUnsupportedError 判断上游是否拒绝了 response_format 参数
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "response_format"):
		return true
	case strings.Contains(msg, "json_object") && strings.Contains(msg, "not supported"):
		return true
	case strings.Contains(msg, "unknown parameter") && strings.Contains(msg, "response"):
		return true
	default:
		return false
	}
}
