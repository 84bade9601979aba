package gateway

import (
	"log"
	"sync"

	"github.com/rahul/stratagent/internal/agent"
	"github.com/rahul/stratagent/internal/observability"
	"github.com/rahul/stratagent/internal/workflow"
	"github.com/rahul/stratagent/pkg/config"
)

// SessionJournal is the part of the journal a session needs.
type SessionJournal interface {
	workflow.Journal
	StartSession(chatID string) (string, error)
}

// ControllerFactory holds what every session shares: the completion client,
// the templates, the fixed sampling settings and the credential.
type ControllerFactory struct {
	Completer  agent.Completer
	Prompts    *agent.PromptManager
	Settings   config.WorkflowConfig
	Credential string
	ModelName  string
	Journal    SessionJournal
	Logger     *observability.Logger
}

// New builds a controller with a fresh State for chatID.
func (f *ControllerFactory) New(chatID string, p workflow.Presenter) *workflow.Controller {
	state := workflow.NewState()
	state.SetCredential(f.Credential)

	c := workflow.NewController(state, f.Completer, f.Prompts, p, f.Settings)
	c.Logger = f.Logger
	c.ModelName = f.ModelName
	c.SessionID = chatID

	if f.Journal != nil {
		id, err := f.Journal.StartSession(chatID)
		if err != nil {
			log.Printf("Warning: failed to start journal session for %s: %v", chatID, err)
		} else {
			c.SessionID = id
			c.Journal = f.Journal
		}
	}
	return c
}

// Session is one chat's workflow. Its mutex makes the chat single-writer.
type Session struct {
	mu         sync.Mutex
	ChatID     string
	Controller *workflow.Controller
}

// Sessions keeps one Session per chat.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  *ControllerFactory
}

func NewSessions(factory *ControllerFactory) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// Get returns the session for chatID, creating it with presenter p on first use.
func (s *Sessions) Get(chatID string, p workflow.Presenter) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[chatID]; ok {
		return sess
	}
	sess := &Session{
		ChatID:     chatID,
		Controller: s.factory.New(chatID, p),
	}
	s.sessions[chatID] = sess
	return sess
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
