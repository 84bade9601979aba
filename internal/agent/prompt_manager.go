package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rahul/stratagent/pkg/config"
)

// Template keys. Each key is also the file name (plus ".md") that overrides
// the built-in template in the prompts directory.
const (
	TemplateSystem    = "system"
	TemplateIdea      = "idea"
	TemplateElements  = "elements"
	TemplateMarketing = "marketing"
	TemplateStrategy  = "strategy"
)

// Placeholders substituted by BuildPrompt.
const (
	PlaceholderIdea              = "{{idea}}"
	PlaceholderRefinedIdea       = "{{refined_idea}}"
	PlaceholderKeyElements       = "{{key_elements}}"
	PlaceholderMarketingStrategy = "{{marketing_strategy}}"
)

var defaultTemplates = map[string]string{
	TemplateSystem: config.DefaultSystemPrompt,
	TemplateIdea: `Refine this business idea into a clear, compelling concept.
Describe the problem it solves, the target customer, the value proposition and what makes it different.

Business idea:
{{idea}}`,
	TemplateElements: `Identify the key elements and processes needed to bring this business idea to life:
the product or service offering, core operations, resources, partners and revenue streams.

Refined idea:
{{refined_idea}}`,
	TemplateMarketing: `Define marketing strategies for this product or service.
Cover positioning, target segments, channels, pricing, messaging and launch tactics.

Key elements:
{{key_elements}}`,
	TemplateStrategy: `Prepare a comprehensive business strategy and plan for this idea.
Include goals, a phased roadmap, operations, financial outlook, risks and the metrics to track.

Refined idea:
{{refined_idea}}

Key elements:
{{key_elements}}

Marketing strategy:
{{marketing_strategy}}`,
}

// Inputs carries the stage outputs available for substitution.
type Inputs struct {
	Idea              string
	RefinedIdea       string
	KeyElements       string
	MarketingStrategy string
}

// BuildPrompt substitutes inputs into tmpl verbatim. Values are not escaped
// or truncated, and placeholders inside substituted values are not expanded.
func BuildPrompt(tmpl string, in Inputs) string {
	r := strings.NewReplacer(
		PlaceholderIdea, in.Idea,
		PlaceholderRefinedIdea, in.RefinedIdea,
		PlaceholderKeyElements, in.KeyElements,
		PlaceholderMarketingStrategy, in.MarketingStrategy,
	)
	return r.Replace(tmpl)
}

// PromptManager resolves stage templates. Files in Directory take precedence
// over the built-in defaults and are re-read on every call, so a template
// can be edited while a session is running.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// Template returns the template text for key.
func (pm *PromptManager) Template(key string) (string, error) {
	def, known := defaultTemplates[key]
	if pm.Directory != "" {
		path := filepath.Join(pm.Directory, key+".md")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if text := strings.TrimSpace(string(data)); text != "" {
				return text, nil
			}
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("failed to read prompt %s: %w", path, err)
		}
	}
	if !known {
		return "", fmt.Errorf("no prompt template for %q", key)
	}
	return def, nil
}

// SystemPrompt returns the system-role instruction, falling back to
// fallback (then the built-in default) when no system.md override exists.
func (pm *PromptManager) SystemPrompt(fallback string) (string, error) {
	if pm.Directory != "" {
		path := filepath.Join(pm.Directory, TemplateSystem+".md")
		data, err := os.ReadFile(path)
		if err == nil && strings.TrimSpace(string(data)) != "" {
			return strings.TrimSpace(string(data)), nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read prompt %s: %w", path, err)
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return config.DefaultSystemPrompt, nil
}

// Build resolves the template for key and fills it with in.
func (pm *PromptManager) Build(key string, in Inputs) (string, error) {
	tmpl, err := pm.Template(key)
	if err != nil {
		return "", err
	}
	return BuildPrompt(tmpl, in), nil
}
