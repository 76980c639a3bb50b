package install

import "strconv"

// Step is where the wizard is. It travels with each request as a hidden
// form field; nothing is stored server side.
type Step int

const (
	StepConnection Step = iota + 1
	StepSchema
	StepFinalize
	StepDone
)

const (
	ActionTestDatabase    = "test_database"
	ActionInstallDatabase = "install_database"
	ActionCompleteInstall = "complete_installation"
)

func (s Step) String() string {
	switch s {
	case StepConnection:
		return "Database connection"
	case StepSchema:
		return "Install database"
	case StepFinalize:
		return "Finish installation"
	case StepDone:
		return "Done"
	}
	return "Unknown"
}

// ParseStep reads a submitted step, defaulting to StepConnection.
func ParseStep(v string) Step {
	n, err := strconv.Atoi(v)
	if err != nil || n < int(StepConnection) || n > int(StepDone) {
		return StepConnection
	}
	return Step(n)
}

// Outcome is the result of one wizard action.
type Outcome struct {
	Step     Step     `json:"step"`
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Details  []string `json:"details,omitempty"`
	Redirect string   `json:"redirect,omitempty"`
}
