package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/stratagent/internal/governance"
	"github.com/rahul/stratagent/internal/observability"
	"github.com/rahul/stratagent/internal/tools"
	"github.com/rahul/stratagent/internal/workflow"
)

const HelpText = `Business Strategy Agent: define your business idea and let the agent refine it into a full strategy.

Step 1  /idea <your business idea>   refine the idea (plain text works too)
Step 2  /elements                    identify key elements and processes
Step 3  /marketing                   define marketing strategies
Step 4  /strategy                    prepare the business strategy and plan

/all <idea>        run all four steps
/import <url>      refine an idea taken from a web page
/show              show every step
/export [md|html]  save the plan to the workspace
/reset             start over
/help              this message`

// Command is a parsed user action.
type Command struct {
	Name string
	Args string
}

// ParseCommand splits "/name args" (or "!name args"). Text without a
// command prefix is an idea. Telegram's "/name@bot" suffix is dropped.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{Name: "help"}
	}
	if text[0] != '/' && text[0] != '!' {
		return Command{Name: "idea", Args: text}
	}

	head, rest, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	// Allow the idea to start on the next line.
	if nl := strings.IndexByte(head, '\n'); nl >= 0 {
		rest = head[nl+1:] + " " + rest
		head = head[:nl]
	}
	return Command{
		Name: strings.ToLower(head),
		Args: strings.TrimSpace(rest),
	}
}

var stageCommands = map[string]workflow.Stage{
	"idea":      workflow.StageIdea,
	"refine":    workflow.StageIdea,
	"elements":  workflow.StageElements,
	"marketing": workflow.StageMarketing,
	"strategy":  workflow.StageStrategy,
}

// Dispatcher maps commands from any surface onto session controllers.
type Dispatcher struct {
	Sessions *Sessions
	Importer *tools.IdeaImporter
	Exporter *tools.Exporter
	Logger   *observability.Logger
	// Policy, when set, may refuse commands before they run.
	Policy governance.PolicyEngine
}

// Handle runs one user message for chatID, reporting through p. The
// returned error is the controller's outcome and is informational: the
// presenter has already shown it.
func (d *Dispatcher) Handle(ctx context.Context, gateway, chatID, text string, p workflow.Presenter) error {
	cmd := ParseCommand(text)
	d.Logger.LogGateway(gateway, chatID, cmd.Name)

	if d.Policy != nil {
		req := governance.Request{Command: cmd.Name, ChatID: chatID}
		if cmd.Name == "import" {
			req.Target = cmd.Args
		}
		res, err := d.Policy.Evaluate(ctx, req)
		if err != nil {
			p.DisplayError(fmt.Sprintf("policy check failed: %v", err))
			return err
		}
		if res.Effect == governance.EffectDeny {
			p.DisplayWarning(res.Reason)
			return nil
		}
	}

	sess := d.Sessions.Get(chatID, p)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctrl := sess.Controller
	// The surface may hand over a fresh presenter per message.
	ctrl.Presenter = p

	if stage, ok := stageCommands[cmd.Name]; ok {
		return ctrl.Run(ctx, stage, cmd.Args)
	}

	switch cmd.Name {
	case "all":
		return ctrl.RunAll(ctx, cmd.Args)
	case "show":
		p.Refresh(ctrl.State.Snapshot())
	case "reset":
		ctrl.Reset()
	case "import":
		return d.importIdea(ctx, ctrl, cmd.Args, p)
	case "export":
		return d.export(ctrl, cmd.Args, p)
	case "start", "help":
		p.DisplayWarning(HelpText)
	default:
		p.DisplayWarning(fmt.Sprintf("Unknown command %q.\n\n%s", cmd.Name, HelpText))
	}
	return nil
}

func (d *Dispatcher) importIdea(ctx context.Context, ctrl *workflow.Controller, rawURL string, p workflow.Presenter) error {
	if d.Importer == nil {
		p.DisplayWarning("Importing from a URL is not enabled.")
		return nil
	}
	if rawURL == "" {
		p.DisplayWarning("Usage: /import <url>")
		return nil
	}

	done := p.Busy("Importing " + rawURL)
	idea, err := d.Importer.Fetch(ctx, rawURL)
	done()
	if err != nil {
		p.DisplayError(fmt.Sprintf("Import failed: %v", err))
		return err
	}
	return ctrl.RefineIdea(ctx, idea)
}

func (d *Dispatcher) export(ctrl *workflow.Controller, arg string, p workflow.Presenter) error {
	if d.Exporter == nil {
		p.DisplayWarning("Export is not enabled.")
		return nil
	}
	format, err := tools.ParseFormat(arg)
	if err != nil {
		p.DisplayWarning(err.Error())
		return nil
	}
	if ctrl.State.Completed() == 0 {
		p.DisplayWarning("Nothing to export yet. Start with /idea.")
		return nil
	}

	path, err := d.Exporter.Write("Business Strategy", Sections(ctrl.State.Snapshot()), format)
	if err != nil {
		p.DisplayError(fmt.Sprintf("Export failed: %v", err))
		return err
	}
	p.DisplayWarning("Plan exported to " + path)
	return nil
}

// Sections converts stage results into export sections in stage order.
func Sections(results workflow.Results) []tools.Section {
	var out []tools.Section
	for _, s := range workflow.Stages() {
		body, ok := results.Get(s)
		out = append(out, tools.Section{Title: s.Title(), Body: body, Present: ok})
	}
	return out
}

// FormatResults renders all stages as plain text for chat surfaces.
func FormatResults(results workflow.Results) string {
	var sb strings.Builder
	for i, s := range workflow.Stages() {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Step %d: %s\n", i+1, s.Title())
		if body, ok := results.Get(s); ok {
			sb.WriteString(body)
		} else {
			sb.WriteString("(not yet generated)")
		}
	}
	return sb.String()
}

// SplitMessage cuts text into chunks of at most limit bytes, preferring
// line breaks and never splitting a UTF-8 sequence.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
