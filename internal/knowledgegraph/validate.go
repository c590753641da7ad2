package knowledgegraph

import "fmt"

// Validate reports structural problems in a graph. None of them are fatal:
// duplicates resolve to the first node and dangling edges are not drawn.
func Validate(g Graph) []string {
	var problems []string

	seen := make(map[int]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %d", n.ID))
		}
		seen[n.ID] = true
	}

	edgeSeen := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.Source == e.Target {
			problems = append(problems, fmt.Sprintf("edge %s is a self loop", e.ID))
		}
		if !seen[e.Source] {
			problems = append(problems, fmt.Sprintf("edge %s references missing source %d", e.ID, e.Source))
		}
		if !seen[e.Target] {
			problems = append(problems, fmt.Sprintf("edge %s references missing target %d", e.ID, e.Target))
		}
		if edgeSeen[e.ID] {
			problems = append(problems, fmt.Sprintf("duplicate edge %s", e.ID))
		}
		edgeSeen[e.ID] = true
	}

	return problems
}
