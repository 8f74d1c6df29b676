package domain

// Operation identifies one of the two pipeline variants.
type Operation string

const (
	// OpSearch ranks the gallery against a single uploaded image.
	OpSearch Operation = "search"
	// OpCompare scores two uploaded images against each other.
	OpCompare Operation = "compare"
)

// Arity returns the number of uploads the operation consumes.
func (o Operation) Arity() int {
	if o == OpCompare {
		return 2
	}
	return 1
}

// IsValid reports whether o is a known operation.
func (o Operation) IsValid() bool {
	return o == OpSearch || o == OpCompare
}

// Stage is a state of the per-request pipeline.
// A request moves strictly forward: Idle, Staged, Invoked, Extracted, Mapped.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageStaged    Stage = "staged"
	StageInvoked   Stage = "invoked"
	StageExtracted Stage = "extracted"
	StageMapped    Stage = "mapped"
)
