package workflow

// Results is a copy of the four stage outputs. A nil entry means absent.
type Results [numStages]*string

// Get returns the stored text for a stage and whether it is present.
func (r Results) Get(stage Stage) (string, bool) {
	if !stage.valid() || r[stage] == nil {
		return "", false
	}
	return *r[stage], true
}

// State is the per-session store: the four stage results plus the
// credential used to reach the completion service. It is owned by a single
// interactive session and is not safe for concurrent mutation.
type State struct {
	results    Results
	credential string
}

func NewState() *State {
	return &State{}
}

func (s *State) Get(stage Stage) (string, bool) {
	return s.results.Get(stage)
}

// Set overwrites the result for a stage unconditionally.
func (s *State) Set(stage Stage, text string) {
	if !stage.valid() {
		return
	}
	s.results[stage] = &text
}

// Reset clears all four results. The credential is kept.
func (s *State) Reset() {
	s.results = Results{}
}

func (s *State) HasCredential() bool {
	return s.credential != ""
}

func (s *State) Credential() string {
	return s.credential
}

func (s *State) SetCredential(value string) {
	s.credential = value
}

// Snapshot returns a copy of the results that later writes cannot affect.
func (s *State) Snapshot() Results {
	var out Results
	for i, r := range s.results {
		if r != nil {
			v := *r
			out[i] = &v
		}
	}
	return out
}

// Completed reports how many consecutive stages, starting at the first,
// have a result.
func (s *State) Completed() int {
	n := 0
	for _, r := range s.results {
		if r == nil {
			break
		}
		n++
	}
	return n
}
