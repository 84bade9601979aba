package gateway

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rahul/stratagent/internal/workflow"
)

// chatPresenter renders workflow output as chat messages. Chat platforms
// cap message size, so long results are split.
type chatPresenter struct {
	send   func(text string) error
	typing func() error
	limit  int
	// typingEvery re-sends the typing action; platforms expire it after a
	// few seconds.
	typingEvery time.Duration
}

func (p *chatPresenter) post(text string) {
	for _, chunk := range SplitMessage(text, p.limit) {
		if err := p.send(chunk); err != nil {
			log.Printf("Error sending message: %v", err)
			return
		}
	}
}

func (p *chatPresenter) Display(stage workflow.Stage, text string) {
	p.post(fmt.Sprintf("Step %d: %s\n\n%s", int(stage)+1, stage.Title(), text))
}

func (p *chatPresenter) DisplayWarning(text string) {
	p.post(text)
}

func (p *chatPresenter) DisplayError(text string) {
	p.post("Error: " + text)
}

func (p *chatPresenter) Refresh(results workflow.Results) {
	p.post(FormatResults(results))
}

func (p *chatPresenter) Busy(label string) func() {
	if p.typing == nil {
		return func() {}
	}
	every := p.typingEvery
	if every <= 0 {
		every = 4 * time.Second
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			if err := p.typing(); err != nil {
				log.Printf("Error sending typing action: %v", err)
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}
