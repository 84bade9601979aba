package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rahul/stratagent/internal/agent"
	"github.com/rahul/stratagent/internal/gateway"
	"github.com/rahul/stratagent/internal/observability"
	"github.com/rahul/stratagent/internal/store"
	"github.com/rahul/stratagent/internal/tools"
	"github.com/rahul/stratagent/pkg/config"
)

type rootOptions struct {
	configPath string
	envFile    string
}

// loadConfig reads the dotenv file (if any) and then the config file,
// falling back to defaults when the config file does not exist.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: failed to load %s: %v", o.envFile, err)
	}
	return config.LoadOrDefault(o.configPath)
}

type app struct {
	dispatcher *gateway.Dispatcher
	journal    *store.Journal
	logger     *observability.Logger
	closers    []io.Closer
}

func (r *app) Close() {
	for _, c := range r.closers {
		_ = c.Close()
	}
}

// newRuntime wires the completion client, templates, journal and tools
// shared by every gateway. Events go to events (stdout when nil).
func newRuntime(cfg *config.Config, credential string, events io.Writer) (*app, error) {
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		return nil, errors.New("no enabled provider found in config")
	}

	var factory agent.ModelFactory
	switch pName {
	case "openai", "openrouter":
		factory = agent.NewOpenAIFactory(pCfg)
	default:
		return nil, fmt.Errorf("provider %s not yet implemented", pName)
	}

	rt := &app{
		logger: observability.NewLogger(events, cfg.App.LogDir),
	}

	if cfg.Memory.Type == "sqlite" {
		if dir := filepath.Dir(cfg.Memory.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		journal, err := store.NewJournal(cfg.Memory.Path)
		if err != nil {
			return nil, err
		}
		rt.journal = journal
		rt.closers = append(rt.closers, journal)
	}

	cf := &gateway.ControllerFactory{
		Completer:  agent.NewLLMCompleter(factory),
		Prompts:    agent.NewPromptManager(cfg.Workflow.PromptsDir),
		Settings:   cfg.Workflow,
		Credential: credential,
		ModelName:  pCfg.Model,
		Logger:     rt.logger,
	}
	if rt.journal != nil {
		cf.Journal = rt.journal
	}

	importer := tools.NewIdeaImporter()
	if cfg.Import.RenderJavaScript {
		importer.Renderer = tools.NewChromeRenderer(cfg.Import.ChromePath)
	}

	rt.dispatcher = &gateway.Dispatcher{
		Sessions: gateway.NewSessions(cf),
		Importer: importer,
		Exporter: tools.NewExporter(cfg.App.Workspace),
		Logger:   rt.logger,
	}
	return rt, nil
}

// openEventLog appends structured events under the log directory, used
// by the console so events do not interleave with the conversation.
func openEventLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}
