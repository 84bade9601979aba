package gateway

import "sync"

// chatQueue runs jobs one at a time per chat, in submission order, while
// different chats proceed in parallel. A chat's worker exits once its
// queue drains.
type chatQueue struct {
	mu      sync.Mutex
	pending map[string][]func()
	wg      sync.WaitGroup
}

func newChatQueue() *chatQueue {
	return &chatQueue{pending: make(map[string][]func())}
}

func (q *chatQueue) Submit(chatID string, job func()) {
	q.mu.Lock()
	jobs, running := q.pending[chatID]
	q.pending[chatID] = append(jobs, job)
	q.mu.Unlock()

	if !running {
		q.wg.Add(1)
		go q.drain(chatID)
	}
}

func (q *chatQueue) drain(chatID string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		jobs := q.pending[chatID]
		if len(jobs) == 0 {
			delete(q.pending, chatID)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[chatID] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}

// Wait blocks until every submitted job has run.
func (q *chatQueue) Wait() {
	q.wg.Wait()
}
