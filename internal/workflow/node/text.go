package node

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncateByRunes 保留前 maxRunes 个字符，不切断多字节字符
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if len(s) <= maxRunes {
		return s
	}
	i, n := 0, 0
	for i < len(s) && n < maxRunes {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n++
	}
	return s[:i]
}

// ClipForLog 去掉首尾空白后截断模型输出，被截掉的字符数附在末尾
func ClipForLog(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	clipped := TruncateByRunes(s, maxRunes)
	if rest := utf8.RuneCountInString(s) - utf8.RuneCountInString(clipped); rest > 0 {
		return fmt.Sprintf("%s…(+%d chars)", clipped, rest)
	}
	return clipped
}
