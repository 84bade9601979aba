package workflow

// Stage identifies one of the four ordered steps of the strategy workflow.
type Stage int

const (
	StageIdea Stage = iota
	StageElements
	StageMarketing
	StageStrategy

	numStages
)

var stageKeys = [numStages]string{"idea", "elements", "marketing", "strategy"}

var stageTitles = [numStages]string{
	"Refined Business Idea",
	"Key Elements",
	"Marketing Strategy",
	"Business Strategy and Plan",
}

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{StageIdea, StageElements, StageMarketing, StageStrategy}
}

// ParseStage maps a stage key back to its Stage.
func ParseStage(key string) (Stage, bool) {
	for i, k := range stageKeys {
		if k == key {
			return Stage(i), true
		}
	}
	return 0, false
}

func (s Stage) valid() bool {
	return s >= StageIdea && s < numStages
}

// String returns the stable key used in templates, logs and the journal.
func (s Stage) String() string {
	if !s.valid() {
		return "unknown"
	}
	return stageKeys[s]
}

func (s Stage) Title() string {
	if !s.valid() {
		return "Unknown Stage"
	}
	return stageTitles[s]
}

// Prerequisite returns the stage whose result must exist before s can run.
// StageIdea has none; it only needs the raw idea text.
func (s Stage) Prerequisite() (Stage, bool) {
	if !s.valid() || s == StageIdea {
		return 0, false
	}
	return s - 1, true
}
