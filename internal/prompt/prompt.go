package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	systemOpen = `<message role="system">`
	userOpen   = `<message role="user">`
	closeTag   = `</message>`
)

//go:embed prompt.yaml
var defaultTemplateYAML []byte

// TemplateFormatError reports a template without usable system/user message blocks.
type TemplateFormatError struct {
	Missing string
}

func (e *TemplateFormatError) Error() string {
	return fmt.Sprintf("prompt template is missing the %s message block", e.Missing)
}

// Messages is the rendered system and user instruction pair.
type Messages struct {
	System string
	User   string
}

// Placeholder is one {{Key}} substitution. Slice values are comma-joined.
type Placeholder struct {
	Key   string
	Value any
}

type templateFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Prompt      string `yaml:"prompt"`
}

// Builder renders translation prompts from a message template.
type Builder struct {
	name     string
	template string
}

// Default returns a builder backed by the embedded template.
func Default() (*Builder, error) {
	return Parse(defaultTemplateYAML)
}

// Load reads a YAML template file. An empty path selects the embedded template.
func Load(path string) (*Builder, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt template %s: %w", path, err)
	}
	builder, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("prompt template %s: %w", path, err)
	}
	return builder, nil
}

// Parse decodes a YAML document whose "prompt" key holds the message template.
func Parse(raw []byte) (*Builder, error) {
	var file templateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode prompt yaml: %w", err)
	}
	return &Builder{name: strings.TrimSpace(file.Name), template: file.Prompt}, nil
}

// FromTemplate builds a Builder from a raw message template, bypassing YAML.
func FromTemplate(template string) *Builder {
	return &Builder{template: template}
}

func (b *Builder) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Validate checks the template delimiters without rendering anything.
func (b *Builder) Validate() error {
	_, _, err := b.split()
	return err
}

// Build renders the translation prompt for text into targetLanguage.
func (b *Builder) Build(text, targetLanguage string) (Messages, error) {
	return b.Render(
		Placeholder{Key: "text", Value: text},
		Placeholder{Key: "language", Value: targetLanguage},
	)
}

// Render substitutes placeholders into the user block, in the given order.
// The system block is returned verbatim. Values are not escaped.
func (b *Builder) Render(placeholders ...Placeholder) (Messages, error) {
	system, user, err := b.split()
	if err != nil {
		return Messages{}, err
	}
	for _, p := range placeholders {
		user = strings.ReplaceAll(user, "{{"+p.Key+"}}", formatValue(p.Value))
	}
	return Messages{System: system, User: user}, nil
}

func (b *Builder) split() (string, string, error) {
	if b == nil {
		return "", "", &TemplateFormatError{Missing: "system"}
	}
	system, ok := messageBlock(b.template, systemOpen)
	if !ok {
		return "", "", &TemplateFormatError{Missing: "system"}
	}
	user, ok := messageBlock(b.template, userOpen)
	if !ok {
		return "", "", &TemplateFormatError{Missing: "user"}
	}
	return system, user, nil
}

func messageBlock(template, open string) (string, bool) {
	_, after, found := strings.Cut(template, open)
	if !found {
		return "", false
	}
	body, _, found := strings.Cut(after, closeTag)
	if !found {
		return "", false
	}
	return strings.TrimSpace(body), true
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
