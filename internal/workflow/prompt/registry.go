package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	// PromptTutorV1 system 指令 + 课程上下文（FString 变量）
	PromptTutorV1 PromptID = "tutor_v1"
	// PromptGradingV1 仅 system 指令，user 内容由调用方拼接
	PromptGradingV1 PromptID = "grading_v1"
)

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

// ChatTemplate 返回 system 指令 + 上下文两条 system 消息组成的模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, contextPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	if contextPath == "" {
		return nil, fmt.Errorf("prompt %s has no context template", id)
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	contextText, err := readEmbeddedText(contextPath)
	if err != nil {
		return nil, err
	}

	// system 指令不做变量替换，转义后作为字面量
	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(escapeFString(system)),
		schema.SystemMessage(contextText),
	)
	r.cache[id] = tpl
	return tpl, nil
}

// SystemText 返回不含变量的 system 指令原文
func (r *Registry) SystemText(id PromptID) (string, error) {
	systemPath, _, err := resolvePromptFiles(id)
	if err != nil {
		return "", err
	}
	return readEmbeddedText(systemPath)
}

func resolvePromptFiles(id PromptID) (systemFile string, contextFile string, err error) {
	switch id {
	case PromptTutorV1:
		return "templates/tutor_v1.system.txt", "templates/tutor_v1.context.txt", nil
	case PromptGradingV1:
		return "templates/grading_v1.system.txt", "", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func escapeFString(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}
