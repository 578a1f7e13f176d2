package usecase

import (
	"context"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/agents"
)

// Agent is anything that can run as a pipeline step.
type Agent interface {
	Run(ctx context.Context, ac *models.AnalysisContext) (*models.AnalysisContext, error)
}

// AgentSet holds the five analysis agents in pipeline order.
type AgentSet struct {
	Behavior  Agent
	Watcher   Agent
	Narrator  Agent
	Persona   Agent
	Moderator Agent
}

// Steps returns the fixed pipeline. Only the market watcher is async; it is
// the one step that waits on the council.
func (a AgentSet) Steps() []Step {
	return []Step{
		{Name: agents.BehaviorMonitorName, Capability: Sync, Run: runOf(a.Behavior)},
		{Name: agents.MarketWatcherName, Capability: Async, Run: runOf(a.Watcher)},
		{Name: agents.NarratorName, Capability: Sync, Run: runOf(a.Narrator)},
		{Name: agents.PersonaName, Capability: Sync, Run: runOf(a.Persona)},
		{Name: agents.ModeratorName, Capability: Sync, Run: runOf(a.Moderator)},
	}
}

func runOf(a Agent) StepFunc {
	if a == nil {
		return nil
	}
	return a.Run
}
