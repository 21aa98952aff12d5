// ABOUTME: Agent selection strategies: round-robin, least-busy, skill-based
// ABOUTME: Each picks one agent from an eligible set, or none

package routing

import "sort"

const (
	StrategyRoundRobin = "round_robin"
	StrategyLeastBusy  = "least_busy"
	StrategySkillBased = "skill_based"
)

// selectRoundRobin rotates through eligible agents per team. The cursor
// map lives on the engine so rotation survives across sweeps.
func selectRoundRobin(eligible []*Agent, cursors map[string]int, teamID string) *Agent {
	if len(eligible) == 0 {
		return nil
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	idx := cursors[teamID] % len(eligible)
	cursors[teamID] = idx + 1
	return eligible[idx]
}

// selectLeastBusy picks the agent with the most spare capacity. Ties go
// to the lexically first ID for determinism.
func selectLeastBusy(eligible []*Agent) *Agent {
	var best *Agent
	for _, a := range eligible {
		if best == nil ||
			a.Available() > best.Available() ||
			(a.Available() == best.Available() && a.ID < best.ID) {
			best = a
		}
	}
	return best
}

// selectSkillBased picks the agent with the highest average proficiency
// across the required skills. Missing skills score zero. Ties fall back
// to least-busy.
func selectSkillBased(eligible []*Agent, requiredSkills []string) *Agent {
	if len(requiredSkills) == 0 {
		return selectLeastBusy(eligible)
	}

	var best *Agent
	bestScore := -1.0
	for _, a := range eligible {
		total := 0.0
		for _, skill := range requiredSkills {
			total += skillWeight(a.SkillLevels[skill])
		}
		score := total / float64(len(requiredSkills))
		switch {
		case score > bestScore:
			best, bestScore = a, score
		case score == bestScore && best != nil:
			if a.Available() > best.Available() ||
				(a.Available() == best.Available() && a.ID < best.ID) {
				best = a
			}
		}
	}
	return best
}
