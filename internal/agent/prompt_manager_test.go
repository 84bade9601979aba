package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/stratagent/pkg/config"
)

func TestBuildPrompt_SubstitutesVerbatim(t *testing.T) {
	tmpl := "Idea: {{idea}} | Refined: {{refined_idea}} | Elements: {{key_elements}} | Marketing: {{marketing_strategy}} | {{unknown}}"
	in := Inputs{
		Idea:              "T",
		RefinedIdea:       "<b>R</b> & {{idea}}",
		KeyElements:       "E",
		MarketingStrategy: "M",
	}

	got := BuildPrompt(tmpl, in)
	want := "Idea: T | Refined: <b>R</b> & {{idea}} | Elements: E | Marketing: M | {{unknown}}"
	if got != want {
		t.Errorf("BuildPrompt mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildPrompt_NoLengthLimit(t *testing.T) {
	long := strings.Repeat("x", 100000)
	got := BuildPrompt("{{idea}}", Inputs{Idea: long})
	if got != long {
		t.Errorf("Expected %d chars, got %d", len(long), len(got))
	}
}

func TestPromptManager_Defaults(t *testing.T) {
	pm := NewPromptManager("")

	for _, key := range []string{TemplateIdea, TemplateElements, TemplateMarketing, TemplateStrategy} {
		tmpl, err := pm.Template(key)
		if err != nil {
			t.Fatalf("Template(%s) failed: %v", key, err)
		}
		if !strings.Contains(tmpl, "{{") {
			t.Errorf("Template %s has no placeholder", key)
		}
	}

	strategy, _ := pm.Template(TemplateStrategy)
	for _, ph := range []string{PlaceholderRefinedIdea, PlaceholderKeyElements, PlaceholderMarketingStrategy} {
		if !strings.Contains(strategy, ph) {
			t.Errorf("Strategy template missing %s", ph)
		}
	}

	if _, err := pm.Template("nope"); err == nil {
		t.Error("Expected error for unknown template")
	}
}

func TestPromptManager_DirectoryOverrides(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"idea.md":   "Custom refine: {{idea}}",
		"system.md": "Custom system",
		"extra.md":  "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	pm := NewPromptManager(dir)

	prompt, err := pm.Build(TemplateIdea, Inputs{Idea: "boxes"})
	if err != nil {
		t.Fatal(err)
	}
	if prompt != "Custom refine: boxes" {
		t.Errorf("Unexpected prompt: %q", prompt)
	}

	// Files that are absent fall back to the built-in template.
	elements, err := pm.Template(TemplateElements)
	if err != nil {
		t.Fatal(err)
	}
	if elements != defaultTemplates[TemplateElements] {
		t.Error("Expected default elements template")
	}

	system, err := pm.SystemPrompt("from config")
	if err != nil {
		t.Fatal(err)
	}
	if system != "Custom system" {
		t.Errorf("Expected system.md override, got %q", system)
	}
}

func TestPromptManager_SystemPromptFallback(t *testing.T) {
	pm := NewPromptManager(t.TempDir())

	got, err := pm.SystemPrompt("from config")
	if err != nil {
		t.Fatal(err)
	}
	if got != "from config" {
		t.Errorf("Expected config fallback, got %q", got)
	}

	got, _ = pm.SystemPrompt("")
	if got != config.DefaultSystemPrompt {
		t.Errorf("Expected built-in system prompt, got %q", got)
	}
}

func TestPromptManager_ShippedVariant(t *testing.T) {
	pm := NewPromptManager(filepath.Join("..", "..", "prompts", "detailed"))

	want := map[string][]string{
		TemplateIdea:      {PlaceholderIdea},
		TemplateElements:  {PlaceholderRefinedIdea},
		TemplateMarketing: {PlaceholderKeyElements},
		TemplateStrategy:  {PlaceholderRefinedIdea, PlaceholderKeyElements, PlaceholderMarketingStrategy},
	}
	for key, placeholders := range want {
		tmpl, err := pm.Template(key)
		if err != nil {
			t.Fatalf("Template(%s) failed: %v", key, err)
		}
		if tmpl == defaultTemplates[key] {
			t.Errorf("Expected %s to come from the variant directory", key)
		}
		for _, ph := range placeholders {
			if !strings.Contains(tmpl, ph) {
				t.Errorf("%s template missing %s", key, ph)
			}
		}
	}
}
