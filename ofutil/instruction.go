package ofutil

import "github.com/netrack/openflow/ofp13"

// Instruction is one pipeline instruction a flow mod carries. Like
// Action, it is a logical value; the wire encoding of IT_APPLY_ACTIONS
// in this version of ofp13 depends on an ActionHeader type the package
// never defines (see InstructionActions in ofp13/flow.go), so ofutil
// does not round-trip through it and keeps its own instruction set
// instead.
type Instruction interface {
	instruction()
}

// GotoTableInstr advances the pipeline to Table.
type GotoTableInstr struct{ Table ofp13.Table }

func (GotoTableInstr) instruction() {}

// ApplyActionsInstr applies Actions immediately.
type ApplyActionsInstr struct{ Actions []Action }

func (ApplyActionsInstr) instruction() {}

// WriteMetadata sets pipeline metadata bits under Mask.
type WriteMetadata struct {
	Metadata uint64
	Mask     uint64
}

func (WriteMetadata) instruction() {}

// MeterInstr attaches a rate limiter to the flow.
type MeterInstr struct{ MeterID ofp13.Meter }

func (MeterInstr) instruction() {}
