package appforge

// PatternRegistry provides read-only access to the pattern library.
type PatternRegistry interface {
	// GetPattern returns the pattern with the given id.
	GetPattern(id string) (*Pattern, bool)
	// ListPatterns returns pattern ids in sorted order.
	ListPatterns() []string
}
