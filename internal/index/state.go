package index

// RunState identifies the phase an indexing run is in.
// A run moves Idle -> Extracting -> (Embedding -> Upserting)* ->
// Committing -> Done, or to Failed from any phase.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateExtracting RunState = "extracting"
	StateEmbedding  RunState = "embedding"
	StateUpserting  RunState = "upserting"
	StateCommitting RunState = "committing"
	StateDone       RunState = "done"
	StateFailed     RunState = "failed"
)

// Terminal reports whether the run has finished, successfully or not.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Phase selects which halves of an indexing run execute.
type Phase string

const (
	// PhaseAll runs the etl derivation then embedding.
	PhaseAll Phase = "all"
	// PhaseETL only fills in derived fields (embedding text,
	// category, compatible figures) and never touches the vector index.
	PhaseETL Phase = "etl"
	// PhaseEmbed only embeds and upserts rows that already carry
	// embedding text.
	PhaseEmbed Phase = "embed"
)

// Valid reports whether p names a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseAll, PhaseETL, PhaseEmbed:
		return true
	}
	return false
}
