package manager

import "github.com/exxeleron/yak/internal/config"

// plan computes the startup order: a Kahn topological sort over the
// requires edges, seeded and tie-broken by configuration insertion order
// so the result is deterministic for a given file.
func plan(inv *config.Inventory) ([]string, error) {
	dependants := map[string][]string{}
	pending := map[string]int{}

	for _, uid := range inv.Order {
		cfg := inv.ByUID[uid].Base()
		if _, self := cfg.Requires[uid]; self {
			return nil, depErr("self dependency found for component", uid)
		}
		dependants[uid] = nil
		pending[uid] = len(cfg.Requires)
	}

	var queue []string
	for _, uid := range inv.Order {
		cfg := inv.ByUID[uid].Base()
		if len(cfg.Requires) == 0 {
			queue = append(queue, uid)
			continue
		}
		// Dependants accumulate in insertion order of the requiring side,
		// which keeps the queue (and the plan) deterministic.
		for required := range cfg.Requires {
			if _, known := pending[required]; !known {
				return nil, depErr("dependency to unmanaged component found in "+uid+" ->", required)
			}
			dependants[required] = append(dependants[required], uid)
		}
	}

	ordered := make([]string, 0, len(inv.Order))
	for len(queue) > 0 {
		uid := queue[0]
		queue = queue[1:]
		ordered = append(ordered, uid)

		for _, dependant := range dependants[uid] {
			pending[dependant]--
			if pending[dependant] == 0 {
				queue = append(queue, dependant)
			}
		}
	}

	if len(ordered) != len(inv.Order) {
		var stale []string
		for _, uid := range inv.Order {
			if pending[uid] > 0 {
				stale = append(stale, uid)
			}
		}
		return nil, depErr("cannot determine startup order for components", stale...)
	}

	return ordered, nil
}
