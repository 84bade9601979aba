package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request is a gateway command to be evaluated, e.g. an import of a URL.
type Request struct {
	Command string
	Target  string
	ChatID  string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates gateway commands against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies whole commands by name and targets by pattern
// or, when RestrictHosts is set, by the address they name.
type DefaultPolicyEngine struct {
	DeniedCommands map[string]bool
	DeniedTargets  []*regexp.Regexp
	RestrictHosts  bool
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedCommands: make(map[string]bool),
		DeniedTargets:  make([]*regexp.Regexp, 0),
	}
}

// NewImportPolicy blocks imports from loopback, link-local and private
// network hosts so chat users cannot make the server read internal pages.
// Names that only resolve to such hosts are refused later, at dial time.
func NewImportPolicy() *DefaultPolicyEngine {
	e := NewDefaultPolicyEngine()
	e.RestrictHosts = true
	return e
}

func (e *DefaultPolicyEngine) DenyCommand(name string) {
	e.DeniedCommands[name] = true
}

func (e *DefaultPolicyEngine) DenyTargets(pattern string) error {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return err
	}
	e.DeniedTargets = append(e.DeniedTargets, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedCommands[req.Command] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Command '%s' is restricted by system policy", req.Command),
		}, nil
	}

	if e.RestrictHosts && req.Target != "" && RestrictedURL(req.Target) {
		return Result{
			Effect: EffectDeny,
			Reason: "Target is a restricted address",
		}, nil
	}

	for _, re := range e.DeniedTargets {
		if re.MatchString(req.Target) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Target matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
