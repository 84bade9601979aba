package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rahul/stratagent/internal/agent"
	"github.com/rahul/stratagent/internal/observability"
	"github.com/rahul/stratagent/pkg/config"
)

// Presenter is the rendering surface a controller reports to.
type Presenter interface {
	Display(stage Stage, text string)
	DisplayWarning(text string)
	DisplayError(text string)
	// Busy is shown while a completion call blocks; the returned func
	// clears it.
	Busy(label string) (done func())
	// Refresh redraws every stage, e.g. after a reset.
	Refresh(results Results)
}

// Journal records completed stages. Failures are logged, never surfaced.
type Journal interface {
	RecordRun(sessionID, stage, prompt, output string) error
	RecordReset(sessionID string) error
}

var templateKeys = [numStages]string{
	agent.TemplateIdea,
	agent.TemplateElements,
	agent.TemplateMarketing,
	agent.TemplateStrategy,
}

// Controller runs the four stages against one State. Every user action
// maps to one method; none of them is fatal and each leaves the state
// retryable.
type Controller struct {
	State     *State
	Completer agent.Completer
	Prompts   *agent.PromptManager
	Presenter Presenter
	Settings  config.WorkflowConfig

	// Optional collaborators.
	Journal   Journal
	Logger    *observability.Logger
	SessionID string
	ModelName string
}

func NewController(state *State, completer agent.Completer, prompts *agent.PromptManager, presenter Presenter, settings config.WorkflowConfig) *Controller {
	if state == nil {
		state = NewState()
	}
	if prompts == nil {
		prompts = agent.NewPromptManager("")
	}
	return &Controller{
		State:     state,
		Completer: completer,
		Prompts:   prompts,
		Presenter: presenter,
		Settings:  settings,
	}
}

// RefineIdea runs the first stage on the raw idea text.
func (c *Controller) RefineIdea(ctx context.Context, idea string) error {
	if strings.TrimSpace(idea) == "" {
		return c.advise(StageIdea, ErrEmptyIdea, "Please enter your business idea first.")
	}
	return c.execute(ctx, StageIdea, agent.Inputs{Idea: idea})
}

// AnalyzeElements identifies key elements of the refined idea.
func (c *Controller) AnalyzeElements(ctx context.Context) error {
	return c.run(ctx, StageElements)
}

// DefineMarketing derives a marketing strategy from the key elements.
func (c *Controller) DefineMarketing(ctx context.Context) error {
	return c.run(ctx, StageMarketing)
}

// BuildStrategy combines the three earlier results into the final plan.
func (c *Controller) BuildStrategy(ctx context.Context) error {
	return c.run(ctx, StageStrategy)
}

// Run dispatches to the operation for stage. idea is only read by StageIdea.
func (c *Controller) Run(ctx context.Context, stage Stage, idea string) error {
	switch stage {
	case StageIdea:
		return c.RefineIdea(ctx, idea)
	case StageElements:
		return c.AnalyzeElements(ctx)
	case StageMarketing:
		return c.DefineMarketing(ctx)
	case StageStrategy:
		return c.BuildStrategy(ctx)
	}
	return fmt.Errorf("unknown stage %d", stage)
}

// RunAll runs every stage in order from idea, stopping at the first failure.
func (c *Controller) RunAll(ctx context.Context, idea string) error {
	for _, stage := range Stages() {
		if err := c.Run(ctx, stage, idea); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears all stage results, keeps the credential and redraws.
func (c *Controller) Reset() {
	c.State.Reset()
	c.Logger.LogReset(c.SessionID)
	if c.Journal != nil {
		if err := c.Journal.RecordReset(c.SessionID); err != nil {
			log.Printf("Warning: failed to journal reset: %v", err)
		}
	}
	if c.Presenter != nil {
		c.Presenter.Refresh(c.State.Snapshot())
	}
}

func (c *Controller) run(ctx context.Context, stage Stage) error {
	prev, _ := stage.Prerequisite()
	if _, ok := c.State.Get(prev); !ok {
		err := &PrerequisiteError{Stage: stage, Missing: prev}
		return c.advise(stage, err, fmt.Sprintf("Please complete the previous step first: %s.", prev.Title()))
	}
	return c.execute(ctx, stage, c.inputs())
}

// inputs collects every result present; templates pick what they need.
func (c *Controller) inputs() agent.Inputs {
	get := func(s Stage) string {
		v, _ := c.State.Get(s)
		return v
	}
	return agent.Inputs{
		RefinedIdea:       get(StageIdea),
		KeyElements:       get(StageElements),
		MarketingStrategy: get(StageMarketing),
	}
}

func (c *Controller) execute(ctx context.Context, stage Stage, in agent.Inputs) error {
	if !c.State.HasCredential() {
		return c.advise(stage, agent.ErrNoCredential, "Please add your OpenAI API key to continue.")
	}

	prompt, err := c.Prompts.Build(templateKeys[stage], in)
	if err != nil {
		return c.fail(stage, err)
	}
	system, err := c.Prompts.SystemPrompt(c.Settings.SystemPrompt)
	if err != nil {
		return c.fail(stage, err)
	}

	c.Logger.LogStage(c.SessionID, stage.String(), "started")

	done := observability.BeginTask(stage.Title())
	var clearBusy func()
	if c.Presenter != nil {
		clearBusy = c.Presenter.Busy(stage.Title())
	}
	start := time.Now()
	resp, err := c.Completer.Complete(ctx, agent.Request{
		System:      system,
		Prompt:      prompt,
		Temperature: c.Settings.SamplingTemperature(),
		MaxTokens:   c.Settings.MaxTokens,
		Credential:  c.State.Credential(),
	})
	if clearBusy != nil {
		clearBusy()
	}
	done()

	if err != nil {
		return c.fail(stage, err)
	}

	c.State.Set(stage, resp.Text)

	c.Logger.LogLLM(c.SessionID, stage.String(), system, prompt, resp.Text, time.Since(start))
	if resp.PromptTokens > 0 || resp.CompletionTokens > 0 {
		c.Logger.LogCost(c.SessionID, stage.String(), resp.PromptTokens, resp.CompletionTokens, c.ModelName)
	}
	c.Logger.LogStage(c.SessionID, stage.String(), "completed")

	if c.Journal != nil {
		if err := c.Journal.RecordRun(c.SessionID, stage.String(), prompt, resp.Text); err != nil {
			log.Printf("Warning: failed to journal %s: %v", stage, err)
		}
	}
	if c.Presenter != nil {
		c.Presenter.Display(stage, resp.Text)
	}
	return nil
}

func (c *Controller) advise(stage Stage, err error, message string) error {
	c.Logger.LogAdvisory(c.SessionID, stage.String(), message)
	if c.Presenter != nil {
		c.Presenter.DisplayWarning(message)
	}
	return err
}

func (c *Controller) fail(stage Stage, err error) error {
	cerr := &CompletionError{Stage: stage, Err: err}
	c.Logger.LogError(c.SessionID, stage.String(), err)
	if c.Presenter != nil {
		c.Presenter.DisplayError(fmt.Sprintf("%s failed: %v", stage.Title(), err))
	}
	return cerr
}

// IsAdvisory reports whether err is a non-fatal refusal to run a stage:
// a missing prerequisite or a missing credential.
func IsAdvisory(err error) bool {
	return errors.Is(err, ErrPrerequisiteMissing) || errors.Is(err, agent.ErrNoCredential)
}
