// ABOUTME: Agent capacity registry with strict capacity invariants
// ABOUTME: currentConversations never exceeds maxConversations, spare capacity never negative

package routing

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrAgentNotFound indicates the specified agent was not found.
var ErrAgentNotFound = errors.New("agent not found")

// ErrAgentAtCapacity indicates the agent cannot take another conversation.
var ErrAgentAtCapacity = errors.New("agent at capacity")

// AgentStatus describes an agent's availability.
type AgentStatus string

const (
	StatusAvailable AgentStatus = "available"
	StatusBusy      AgentStatus = "busy"
	StatusAway      AgentStatus = "away"
	StatusOffline   AgentStatus = "offline"
)

// SkillLevel grades an agent's proficiency in one skill.
type SkillLevel string

const (
	LevelExpert       SkillLevel = "expert"
	LevelIntermediate SkillLevel = "intermediate"
	LevelBeginner     SkillLevel = "beginner"
)

// skillWeight maps proficiency to the skill-based strategy's weights.
func skillWeight(l SkillLevel) float64 {
	switch l {
	case LevelExpert:
		return 3
	case LevelIntermediate:
		return 2
	case LevelBeginner:
		return 1
	default:
		return 0
	}
}

// Agent is one capacity-limited worker.
type Agent struct {
	ID                   string
	TeamID               string
	Status               AgentStatus
	Skills               []string
	SkillLevels          map[string]SkillLevel
	MaxConversations     int
	CurrentConversations int
}

// Available reports spare capacity. Never negative.
func (a *Agent) Available() int {
	spare := a.MaxConversations - a.CurrentConversations
	if spare < 0 {
		return 0
	}
	return spare
}

// HasSkill reports whether the agent lists the skill.
func (a *Agent) HasSkill(skill string) bool {
	for _, s := range a.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// agentRegistry tracks agents and their live capacity. Private to the
// routing engine; mutations happen only through engine operations.
type agentRegistry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	logger *slog.Logger
}

func newAgentRegistry(logger *slog.Logger) *agentRegistry {
	return &agentRegistry{
		agents: make(map[string]*Agent),
		logger: logger,
	}
}

// upsert registers or replaces an agent. Capacity counters are clamped so
// the invariant current <= max holds on entry.
func (r *agentRegistry) upsert(agent *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := *agent
	if a.CurrentConversations > a.MaxConversations {
		a.CurrentConversations = a.MaxConversations
	}
	if a.CurrentConversations < 0 {
		a.CurrentConversations = 0
	}
	r.agents[a.ID] = &a
	r.logger.Info("agent registered",
		"agent_id", a.ID,
		"team_id", a.TeamID,
		"status", a.Status,
		"max_conversations", a.MaxConversations)
}

// setStatus updates an agent's availability.
func (r *agentRegistry) setStatus(agentID string, status AgentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	a.Status = status
	return nil
}

// reserve takes one capacity slot. Fails rather than break the invariant.
func (r *agentRegistry) reserve(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	if a.CurrentConversations >= a.MaxConversations {
		return ErrAgentAtCapacity
	}
	a.CurrentConversations++
	return nil
}

// release frees one capacity slot, flooring at zero.
func (r *agentRegistry) release(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	if a.CurrentConversations > 0 {
		a.CurrentConversations--
	}
	return nil
}

// get returns a copy of one agent.
func (r *agentRegistry) get(agentID string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// eligible returns copies of every agent that can take the item: status
// available, spare capacity, team match when required, and at least one
// overlapping skill when skill matching is on.
func (r *agentRegistry) eligible(item *QueueItem, skillMatching bool) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Agent
	for _, a := range r.agents {
		if a.Status != StatusAvailable || a.Available() == 0 {
			continue
		}
		if item.PreferredTeamID != "" && a.TeamID != item.PreferredTeamID {
			continue
		}
		if skillMatching && len(item.RequiredSkills) > 0 {
			overlap := false
			for _, skill := range item.RequiredSkills {
				if a.HasSkill(skill) {
					overlap = true
					break
				}
			}
			if !overlap {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// snapshot returns copies of all agents.
func (r *agentRegistry) snapshot() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out
}
