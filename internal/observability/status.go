package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle Role = "IDLE"
	// RoleBusy marks a blocking completion call in flight.
	RoleBusy Role = "BUSY"
)

// Status is a snapshot of the process-wide workflow activity.
type Status struct {
	Role          Role
	ActiveTask    string
	InFlight      int
	Finished      int
	LastHeartbeat time.Time
}

var (
	statusMu     sync.RWMutex
	globalStatus = Status{
		Role:          RoleIdle,
		LastHeartbeat: time.Now(),
	}
)

// BeginTask marks a completion call as started and returns the func that
// ends it. Several sessions may be busy at once on chat gateways.
func BeginTask(task string) func() {
	statusMu.Lock()
	globalStatus.InFlight++
	globalStatus.Role = RoleBusy
	globalStatus.ActiveTask = task
	statusMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			statusMu.Lock()
			defer statusMu.Unlock()
			globalStatus.Finished++
			globalStatus.InFlight--
			if globalStatus.InFlight <= 0 {
				globalStatus.InFlight = 0
				globalStatus.Role = RoleIdle
				globalStatus.ActiveTask = ""
			}
		})
	}
}

// CurrentStatus returns a copy of the current status.
func CurrentStatus() Status {
	statusMu.RLock()
	defer statusMu.RUnlock()
	return globalStatus
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
