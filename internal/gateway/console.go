package gateway

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rahul/stratagent/internal/workflow"
)

// ConsoleChatID identifies the single console session.
const ConsoleChatID = "console"

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	busyStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
)

// ConsoleGateway is a line-oriented terminal surface over one session.
type ConsoleGateway struct {
	In         io.Reader
	Out        io.Writer
	Dispatcher *Dispatcher
	// ReadSecret reads the API key without echo. Nil disables /key.
	ReadSecret func(prompt string) (string, error)

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

func NewConsoleGateway(ctx context.Context, in io.Reader, out io.Writer, dispatcher *Dispatcher) *ConsoleGateway {
	ctx, cancel := context.WithCancel(ctx)
	return &ConsoleGateway{
		In:         in,
		Out:        out,
		Dispatcher: dispatcher,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start runs the prompt loop until input ends, /quit, or the context is
// cancelled. Reads happen on their own goroutine so a cancel is seen even
// while waiting for a line.
func (c *ConsoleGateway) Start() error {
	defer c.cancel()

	p := &consolePresenter{out: c.Out, mu: &c.mu}
	p.DisplayWarning(HelpText + "\n/key              enter your OpenAI API key\n/quit             leave")

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.In)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-c.ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		c.mu.Lock()
		fmt.Fprint(c.Out, promptStyle.Render("stratagent> "))
		c.mu.Unlock()

		var line string
		select {
		case <-c.ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line = <-lines:
		}
		if c.ctx.Err() != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch ParseCommand(line).Name {
		case "quit", "exit":
			return nil
		case "key":
			c.readKey(p)
			continue
		}

		_ = c.Dispatcher.Handle(c.ctx, "console", ConsoleChatID, line, p)
	}
}

func (c *ConsoleGateway) readKey(p *consolePresenter) {
	if c.ReadSecret == nil {
		p.DisplayWarning("Set OPENAI_API_KEY or the provider api_key in the config file.")
		return
	}
	key, err := c.ReadSecret("Enter your OpenAI API key: ")
	if err != nil {
		p.DisplayError(fmt.Sprintf("failed to read key: %v", err))
		return
	}
	key = strings.TrimSpace(key)
	if key == "" {
		p.DisplayWarning("Please add your OpenAI API key to continue.")
		return
	}

	sess := c.Dispatcher.Sessions.Get(ConsoleChatID, p)
	sess.mu.Lock()
	sess.Controller.State.SetCredential(key)
	sess.mu.Unlock()
	p.DisplayWarning("API key set for this session.")
}

// Send prints text; chatID is ignored since the console has one session.
func (c *ConsoleGateway) Send(chatID string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.Out, text)
	return err
}

func (c *ConsoleGateway) Stop() error {
	c.cancel()
	return nil
}

type consolePresenter struct {
	out io.Writer
	mu  *sync.Mutex
}

func (p *consolePresenter) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

func (p *consolePresenter) Display(stage workflow.Stage, text string) {
	p.println(headerStyle.Render(fmt.Sprintf("\nStep %d: %s", int(stage)+1, stage.Title())) + "\n\n" + text + "\n")
}

func (p *consolePresenter) DisplayWarning(text string) {
	p.println(warningStyle.Render(text))
}

func (p *consolePresenter) DisplayError(text string) {
	p.println(errorStyle.Render("Error: " + text))
}

func (p *consolePresenter) Busy(label string) func() {
	p.println(busyStyle.Render(label + "..."))
	return func() {}
}

func (p *consolePresenter) Refresh(results workflow.Results) {
	for _, s := range workflow.Stages() {
		body, ok := results.Get(s)
		if !ok {
			body = "(not yet generated)"
		}
		p.Display(s, body)
	}
}
