package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rahul/stratagent/internal/agent"
	"github.com/rahul/stratagent/pkg/config"
)

// echoCompleter returns the prompt it was given, prefixed by a counter.
type echoCompleter struct {
	calls    int
	requests []agent.Request
}

func (e *echoCompleter) Complete(ctx context.Context, req agent.Request) (agent.Response, error) {
	e.calls++
	e.requests = append(e.requests, req)
	return agent.Response{Text: fmt.Sprintf("#%d %s", e.calls, req.Prompt)}, nil
}

type failingCompleter struct {
	calls int
}

func (f *failingCompleter) Complete(ctx context.Context, req agent.Request) (agent.Response, error) {
	f.calls++
	return agent.Response{}, errors.New("503 service unavailable")
}

type recordingPresenter struct {
	displayed map[Stage]string
	warnings  []string
	errors    []string
	busy      int
	refreshed int
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{displayed: make(map[Stage]string)}
}

func (p *recordingPresenter) Display(stage Stage, text string) { p.displayed[stage] = text }
func (p *recordingPresenter) DisplayWarning(text string)       { p.warnings = append(p.warnings, text) }
func (p *recordingPresenter) DisplayError(text string)         { p.errors = append(p.errors, text) }
func (p *recordingPresenter) Refresh(results Results)          { p.refreshed++ }
func (p *recordingPresenter) Busy(label string) func() {
	p.busy++
	return func() {}
}

type memJournal struct {
	runs   []string
	resets int
}

func (j *memJournal) RecordRun(sessionID, stage, prompt, output string) error {
	j.runs = append(j.runs, stage)
	return nil
}

func (j *memJournal) RecordReset(sessionID string) error {
	j.resets++
	return nil
}

func testSettings() config.WorkflowConfig {
	return config.WorkflowConfig{
		SystemPrompt: config.DefaultSystemPrompt,
		MaxTokens:    config.DefaultMaxTokens,
	}
}

func newTestController(completer agent.Completer) (*Controller, *recordingPresenter) {
	p := newRecordingPresenter()
	state := NewState()
	state.SetCredential("sk-test")
	return NewController(state, completer, agent.NewPromptManager(""), p, testSettings()), p
}

func TestController_PrerequisiteMissing(t *testing.T) {
	ops := map[Stage]func(*Controller) error{
		StageElements:  func(c *Controller) error { return c.AnalyzeElements(context.Background()) },
		StageMarketing: func(c *Controller) error { return c.DefineMarketing(context.Background()) },
		StageStrategy:  func(c *Controller) error { return c.BuildStrategy(context.Background()) },
	}

	for stage, op := range ops {
		t.Run(stage.String(), func(t *testing.T) {
			comp := &echoCompleter{}
			c, p := newTestController(comp)

			// Fill every stage except the prerequisite.
			prev, _ := stage.Prerequisite()
			for _, s := range Stages() {
				if s != prev {
					c.State.Set(s, "existing "+s.String())
				}
			}
			before := c.State.Snapshot()

			err := op(c)
			if !errors.Is(err, ErrPrerequisiteMissing) {
				t.Fatalf("Expected ErrPrerequisiteMissing, got %v", err)
			}
			var perr *PrerequisiteError
			if !errors.As(err, &perr) || perr.Missing != prev || perr.Stage != stage {
				t.Errorf("Unexpected prerequisite error: %v", err)
			}
			if comp.calls != 0 {
				t.Errorf("Expected no completion call, got %d", comp.calls)
			}
			for _, s := range Stages() {
				a, aok := before.Get(s)
				b, bok := c.State.Get(s)
				if a != b || aok != bok {
					t.Errorf("State changed for %s", s)
				}
			}
			if len(p.warnings) != 1 || !strings.Contains(p.warnings[0], "complete the previous step first") {
				t.Errorf("Unexpected warnings: %v", p.warnings)
			}
			if !IsAdvisory(err) {
				t.Error("Expected advisory error")
			}
		})
	}
}

func TestController_EmptyIdea(t *testing.T) {
	comp := &echoCompleter{}
	c, p := newTestController(comp)

	err := c.RefineIdea(context.Background(), "   \n")
	if !errors.Is(err, ErrEmptyIdea) || !errors.Is(err, ErrPrerequisiteMissing) {
		t.Fatalf("Expected ErrEmptyIdea, got %v", err)
	}
	if comp.calls != 0 || len(p.warnings) != 1 {
		t.Errorf("Expected advisory without call, calls=%d warnings=%v", comp.calls, p.warnings)
	}
}

func TestController_RefineIdeaInterpolates(t *testing.T) {
	comp := &echoCompleter{}
	c, p := newTestController(comp)

	if err := c.RefineIdea(context.Background(), "T"); err != nil {
		t.Fatal(err)
	}

	got, ok := c.State.Get(StageIdea)
	if !ok || !strings.Contains(got, "T") {
		t.Errorf("Expected stored result to contain idea text, got %q", got)
	}
	if p.displayed[StageIdea] != got {
		t.Error("Expected result to be displayed")
	}
	if p.busy != 1 {
		t.Errorf("Expected one busy indication, got %d", p.busy)
	}

	req := comp.requests[0]
	if req.System != config.DefaultSystemPrompt || req.Temperature != 0.7 || req.MaxTokens != 1000 {
		t.Errorf("Unexpected request parameters: %+v", req)
	}
	if req.Credential != "sk-test" {
		t.Errorf("Expected credential to be passed, got %q", req.Credential)
	}
}

func TestController_CompletionFailureLeavesStateUnchanged(t *testing.T) {
	for _, stage := range Stages() {
		t.Run(stage.String(), func(t *testing.T) {
			comp := &failingCompleter{}
			c, p := newTestController(comp)

			for s := StageIdea; s < stage; s++ {
				c.State.Set(s, "prior "+s.String())
			}

			err := c.Run(context.Background(), stage, "idea")

			var cerr *CompletionError
			if !errors.As(err, &cerr) || cerr.Stage != stage {
				t.Fatalf("Expected CompletionError for %s, got %v", stage, err)
			}
			if IsAdvisory(err) {
				t.Error("Completion failure must not be advisory")
			}
			if _, ok := c.State.Get(stage); ok {
				t.Errorf("Expected %s to stay absent", stage)
			}
			for s := StageIdea; s < stage; s++ {
				if v, _ := c.State.Get(s); v != "prior "+s.String() {
					t.Errorf("Prior stage %s changed: %q", s, v)
				}
			}
			if len(p.errors) != 1 || !strings.Contains(p.errors[0], "503") {
				t.Errorf("Unexpected error messages: %v", p.errors)
			}

			// Retry succeeds once the service recovers.
			c.Completer = &echoCompleter{}
			if err := c.Run(context.Background(), stage, "idea"); err != nil {
				t.Fatalf("Retry failed: %v", err)
			}
			if _, ok := c.State.Get(stage); !ok {
				t.Error("Expected result after retry")
			}
		})
	}
}

func TestController_FailureKeepsPreviousResult(t *testing.T) {
	c, _ := newTestController(&failingCompleter{})
	c.State.Set(StageIdea, "old")

	if err := c.RefineIdea(context.Background(), "new idea"); err == nil {
		t.Fatal("Expected failure")
	}
	if v, _ := c.State.Get(StageIdea); v != "old" {
		t.Errorf("Expected old result to survive, got %q", v)
	}
}

func TestController_RerunOverwrites(t *testing.T) {
	comp := &echoCompleter{}
	c, _ := newTestController(comp)
	ctx := context.Background()

	if err := c.RefineIdea(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	if err := c.RefineIdea(ctx, "second"); err != nil {
		t.Fatal(err)
	}

	got, _ := c.State.Get(StageIdea)
	if !strings.HasPrefix(got, "#2 ") || strings.Contains(got, "first") {
		t.Errorf("Expected second completion only, got %q", got)
	}
}

func TestController_EndToEnd(t *testing.T) {
	comp := &echoCompleter{}
	c, _ := newTestController(comp)
	journal := &memJournal{}
	c.Journal = journal
	ctx := context.Background()

	idea := "A subscription box for left-handed tools"
	if err := c.RefineIdea(ctx, idea); err != nil {
		t.Fatal(err)
	}
	r, _ := c.State.Get(StageIdea)

	if err := c.AnalyzeElements(ctx); err != nil {
		t.Fatal(err)
	}
	e, _ := c.State.Get(StageElements)
	if !strings.Contains(comp.requests[1].Prompt, r) {
		t.Error("Elements prompt must contain the refined idea")
	}

	if err := c.DefineMarketing(ctx); err != nil {
		t.Fatal(err)
	}
	m, _ := c.State.Get(StageMarketing)
	if !strings.Contains(comp.requests[2].Prompt, e) {
		t.Error("Marketing prompt must contain the key elements")
	}

	if err := c.BuildStrategy(ctx); err != nil {
		t.Fatal(err)
	}
	s, _ := c.State.Get(StageStrategy)
	final := comp.requests[3].Prompt
	for _, part := range []string{r, e, m} {
		if !strings.Contains(final, part) {
			t.Errorf("Strategy prompt missing %q", part)
		}
	}

	for i, v := range []string{r, e, m, s} {
		if v == "" {
			t.Errorf("Stage %d result is empty", i)
		}
		if !strings.HasPrefix(v, fmt.Sprintf("#%d ", i+1)) {
			t.Errorf("Stage %d ran out of order: %q", i, v)
		}
	}
	if strings.Join(journal.runs, ",") != "idea,elements,marketing,strategy" {
		t.Errorf("Unexpected journal: %v", journal.runs)
	}
}

func TestController_RunAllStopsAtFirstFailure(t *testing.T) {
	c, _ := newTestController(&echoCompleter{})
	if err := c.RunAll(context.Background(), "idea"); err != nil {
		t.Fatal(err)
	}
	if c.State.Completed() != 4 {
		t.Errorf("Expected 4 stages, got %d", c.State.Completed())
	}

	c.State.Reset()
	if err := c.RunAll(context.Background(), ""); !errors.Is(err, ErrEmptyIdea) {
		t.Errorf("Expected ErrEmptyIdea, got %v", err)
	}
	if c.State.Completed() != 0 {
		t.Error("Expected nothing to run")
	}
}

func TestController_Reset(t *testing.T) {
	c, p := newTestController(&echoCompleter{})
	journal := &memJournal{}
	c.Journal = journal

	if err := c.RunAll(context.Background(), "idea"); err != nil {
		t.Fatal(err)
	}
	c.Reset()

	for _, s := range Stages() {
		if _, ok := c.State.Get(s); ok {
			t.Errorf("Expected %s absent after reset", s)
		}
	}
	if c.State.Credential() != "sk-test" {
		t.Error("Reset must keep the credential")
	}
	if p.refreshed != 1 || journal.resets != 1 {
		t.Errorf("Expected refresh and journal entry, got %d/%d", p.refreshed, journal.resets)
	}
}

func TestController_NoCredential(t *testing.T) {
	comp := &echoCompleter{}
	c, p := newTestController(comp)
	c.State.SetCredential("")

	err := c.RefineIdea(context.Background(), "idea")
	if !errors.Is(err, agent.ErrNoCredential) {
		t.Fatalf("Expected ErrNoCredential, got %v", err)
	}
	if comp.calls != 0 || len(p.warnings) != 1 {
		t.Errorf("Expected warning without call, calls=%d warnings=%v", comp.calls, p.warnings)
	}
}

func TestController_TemplateOverride(t *testing.T) {
	comp := &echoCompleter{}
	c, _ := newTestController(comp)
	c.Prompts = agent.NewPromptManager(t.TempDir())

	if err := c.RefineIdea(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(comp.requests[0].Prompt, "Refine this business idea") {
		t.Errorf("Expected default template when directory is empty: %q", comp.requests[0].Prompt)
	}
}
