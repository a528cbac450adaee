package internal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

// patternRank is the render order of pattern families. Unlisted ids rank last.
var patternRank = map[string]int{
	"style-base":    0,
	"state-manager": 1,
	"app-core":      1,
	"app-shell":     2,
	"navigation":    3,
	"entity-card":   4,
}

const unrankedPattern = 10

// PatternRank returns the static render priority of a pattern id.
func PatternRank(patternID string) int {
	if r, ok := patternRank[patternID]; ok {
		return r
	}
	switch {
	case strings.HasPrefix(patternID, "input-"):
		return 5
	case strings.HasPrefix(patternID, "view-"):
		return 6
	case strings.HasPrefix(patternID, "action-"):
		return 7
	}
	return unrankedPattern
}

// SortReferences returns refs stably sorted by PatternRank. The input is not modified.
func SortReferences(refs []appforge.PatternReference) []appforge.PatternReference {
	out := append([]appforge.PatternReference(nil), refs...)
	sort.SliceStable(out, func(i, j int) bool {
		return PatternRank(out[i].PatternID) < PatternRank(out[j].PatternID)
	})
	return out
}

// DependencyErrorType categorizes dependency errors.
type DependencyErrorType int

const (
	// DependencyErrorMissing means a declared dependency is not in the library.
	DependencyErrorMissing DependencyErrorType = iota
	// DependencyErrorCycle means patterns depend on each other in a loop.
	DependencyErrorCycle
	// DependencyErrorTemplate means a template body failed to parse.
	DependencyErrorTemplate
)

// DependencyError describes a library consistency problem.
type DependencyError struct {
	PatternID    string
	MissingDepID string
	CycleIDs     []string
	Cause        error
	Type         DependencyErrorType
}

func (e DependencyError) Error() string {
	switch e.Type {
	case DependencyErrorMissing:
		return fmt.Sprintf("pattern %s: missing dependency %s", e.PatternID, e.MissingDepID)
	case DependencyErrorCycle:
		return fmt.Sprintf("dependency cycle: %s", strings.Join(e.CycleIDs, " -> "))
	case DependencyErrorTemplate:
		return fmt.Sprintf("pattern %s: %v", e.PatternID, e.Cause)
	default:
		return fmt.Sprintf("pattern %s: unknown dependency error", e.PatternID)
	}
}

// Code maps the error to an appforge error code.
func (e DependencyError) Code() string {
	switch e.Type {
	case DependencyErrorMissing:
		return appforge.ErrCodeMissingDependency
	case DependencyErrorCycle:
		return appforge.ErrCodeDependencyCycle
	default:
		return appforge.ErrCodeRenderFailed
	}
}

// TopologicalSort orders patterns so every pattern follows its dependencies.
// Dependencies outside the given set are ignored. Patterns caught in a cycle,
// or depending on one, cannot be ordered; they are logged and returned in dropped.
// Peers are ordered by id so the result is deterministic.
func TopologicalSort(patterns []*appforge.Pattern) (ordered []*appforge.Pattern, dropped []string) {
	byID := make(map[string]*appforge.Pattern, len(patterns))
	for _, p := range patterns {
		byID[p.ID] = p
	}

	inDegree := make(map[string]int, len(byID))
	dependents := make(map[string][]string, len(byID))
	for id, p := range byID {
		if _, ok := inDegree[id]; !ok {
			inDegree[id] = 0
		}
		seen := NewSet[string]()
		for _, dep := range p.Dependencies {
			if _, ok := byID[dep]; !ok || seen.Contains(dep) {
				continue
			}
			seen.Add(dep)
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byID[current])

		next := dependents[current]
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
		sort.Strings(queue)
	}

	if len(ordered) != len(byID) {
		for id, d := range inDegree {
			if d > 0 {
				dropped = append(dropped, id)
			}
		}
		sort.Strings(dropped)
		zap.S().Warnw("dropping patterns involved in a dependency cycle", "patterns", dropped)
	}
	return ordered, dropped
}

// DetectCycle returns one dependency cycle as a path, or nil.
func DetectCycle(patterns []*appforge.Pattern) []string {
	graph := make(map[string][]string, len(patterns))
	ids := make([]string, 0, len(patterns))
	for _, p := range patterns {
		graph[p.ID] = p.Dependencies
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(patterns))
	parent := make(map[string]string, len(patterns))
	var cyclePath []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		color[node] = gray
		for _, neighbor := range graph[node] {
			if _, ok := graph[neighbor]; !ok {
				continue
			}
			if color[neighbor] == gray {
				cyclePath = []string{neighbor}
				for cur := node; cur != neighbor; cur = parent[cur] {
					cyclePath = append([]string{cur}, cyclePath...)
				}
				cyclePath = append([]string{neighbor}, cyclePath...)
				return true
			}
			if color[neighbor] == white {
				parent[neighbor] = node
				if dfs(neighbor) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white && dfs(id) {
			return cyclePath
		}
	}
	return nil
}

// ValidatePatterns checks that every dependency exists, that the graph is
// acyclic and that every template parses.
func ValidatePatterns(patterns []*appforge.Pattern) []DependencyError {
	known := NewSet[string]()
	for _, p := range patterns {
		known.Add(p.ID)
	}

	var errs []DependencyError
	for _, p := range patterns {
		for _, dep := range p.Dependencies {
			if !known.Contains(dep) {
				errs = append(errs, DependencyError{PatternID: p.ID, MissingDepID: dep, Type: DependencyErrorMissing})
			}
		}
		if _, err := compilePattern(p); err != nil {
			errs = append(errs, DependencyError{PatternID: p.ID, Cause: err, Type: DependencyErrorTemplate})
		}
	}
	if cycle := DetectCycle(patterns); cycle != nil {
		errs = append(errs, DependencyError{PatternID: cycle[0], CycleIDs: cycle, Type: DependencyErrorCycle})
	}
	return errs
}

// ValidateLibrary runs ValidatePatterns over a whole library.
func ValidateLibrary(lib *PatternLibrary) []DependencyError {
	return ValidatePatterns(lib.Patterns())
}
