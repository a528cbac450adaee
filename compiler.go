package appforge

// Compiler turns a specification into a single self-contained document.
type Compiler interface {
	// Validate never fails; a nil spec yields a NO_SPEC error result.
	Validate(spec *Specification) ValidationResult
	MatchPatterns(spec *Specification) []PatternReference
	// Build refuses specifications that do not validate.
	Build(spec *Specification, refs []PatternReference) *BuildResult
}

// SpecParser converts raw model output into a normalized specification.
// Notes describe shape drift that was tolerated during normalization.
type SpecParser interface {
	Parse(raw string) (spec *Specification, notes []string, err error)
}
