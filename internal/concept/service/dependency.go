package service

import (
	"fmt"
	"sort"

	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	"github.com/nominalabs/nomina/internal/formula"
)

// OrderByDependency returns the concepts in deterministic evaluation order:
// all perceptions, then all deductions. Within a kind, a concept whose formula
// references another concept's code evaluates after it (Kahn's algorithm);
// ties break by priority then code. Deductions may reference perception codes
// freely since every perception is already evaluated; a perception referencing
// a deduction, or any reference cycle, is a configuration error raised before
// a single employee is processed.
func OrderByDependency(engine *formula.Engine, concepts []conceptdomain.Concept) ([]conceptdomain.Concept, error) {
	byCode := make(map[string]*conceptdomain.Concept, len(concepts))
	for i := range concepts {
		byCode[concepts[i].Code] = &concepts[i]
	}

	deps := make(map[string][]string, len(concepts))
	for _, c := range concepts {
		expr, err := engine.Compile(c.Formula)
		if err != nil {
			return nil, fmt.Errorf("%w: concept %s: %v", conceptdomain.ErrInvalidFormula, c.Code, err)
		}
		for _, ident := range formula.Identifiers(expr) {
			ref, ok := byCode[ident]
			if !ok {
				continue // employee or period field, resolved at evaluation time
			}
			if ref.Code == c.Code {
				return nil, fmt.Errorf("%w: concept %s references itself", conceptdomain.ErrCyclicDependency, c.Code)
			}
			if c.Kind == conceptdomain.KindPerception && ref.Kind == conceptdomain.KindDeduction {
				return nil, fmt.Errorf("%w: perception %s references deduction %s", conceptdomain.ErrCyclicDependency, c.Code, ref.Code)
			}
			deps[c.Code] = append(deps[c.Code], ref.Code)
		}
	}

	perceptions := sortKind(concepts, conceptdomain.KindPerception)
	deductions := sortKind(concepts, conceptdomain.KindDeduction)

	ordered, err := topoSort(perceptions, deps, conceptdomain.KindPerception)
	if err != nil {
		return nil, err
	}
	orderedDeductions, err := topoSort(deductions, deps, conceptdomain.KindDeduction)
	if err != nil {
		return nil, err
	}
	return append(ordered, orderedDeductions...), nil
}

func sortKind(concepts []conceptdomain.Concept, kind conceptdomain.Kind) []conceptdomain.Concept {
	var out []conceptdomain.Concept
	for _, c := range concepts {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// topoSort runs Kahn's algorithm over one kind. Cross-kind edges (deduction →
// perception) are always satisfied and ignored here.
func topoSort(concepts []conceptdomain.Concept, deps map[string][]string, kind conceptdomain.Kind) ([]conceptdomain.Concept, error) {
	inKind := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		inKind[c.Code] = true
	}

	indegree := make(map[string]int, len(concepts))
	dependents := make(map[string][]string)
	for _, c := range concepts {
		for _, dep := range deps[c.Code] {
			if !inKind[dep] {
				continue
			}
			indegree[c.Code]++
			dependents[dep] = append(dependents[dep], c.Code)
		}
	}

	var ready []conceptdomain.Concept
	for _, c := range concepts {
		if indegree[c.Code] == 0 {
			ready = append(ready, c)
		}
	}

	byCode := make(map[string]conceptdomain.Concept, len(concepts))
	for _, c := range concepts {
		byCode[c.Code] = c
	}

	ordered := make([]conceptdomain.Concept, 0, len(concepts))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)
		for _, dependent := range dependents[next.Code] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertSorted(ready, byCode[dependent])
			}
		}
	}

	if len(ordered) != len(concepts) {
		var stuck []string
		for code, n := range indegree {
			if n > 0 {
				stuck = append(stuck, code)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %s cycle involving %v", conceptdomain.ErrCyclicDependency, kind, stuck)
	}
	return ordered, nil
}

func insertSorted(ready []conceptdomain.Concept, c conceptdomain.Concept) []conceptdomain.Concept {
	at := sort.Search(len(ready), func(i int) bool {
		if ready[i].Priority != c.Priority {
			return ready[i].Priority > c.Priority
		}
		return ready[i].Code > c.Code
	})
	ready = append(ready, conceptdomain.Concept{})
	copy(ready[at+1:], ready[at:])
	ready[at] = c
	return ready
}
