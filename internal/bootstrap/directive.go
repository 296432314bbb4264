package bootstrap

import "fmt"

// Stage orders directives. A sequence never goes back to an earlier stage.
type Stage int

const (
	StageGuard Stage = iota
	StageCredentials
	StageInstall
	StageDownload
	StageAgent
	StageSecret
	StageExecution
	StageReadiness
	StageConsensus
)

var stageNames = map[Stage]string{
	StageGuard:       "guard",
	StageCredentials: "credentials",
	StageInstall:     "install",
	StageDownload:    "download",
	StageAgent:       "agent",
	StageSecret:      "secret",
	StageExecution:   "execution",
	StageReadiness:   "readiness",
	StageConsensus:   "consensus",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Directive is one step of the startup script.
type Directive struct {
	Stage Stage
	Name  string
	// Command is the shell text run for this step.
	Command string
	// Produces lists local paths this step writes.
	Produces []string
	// Consumes lists local paths this step reads.
	Consumes []string
}
