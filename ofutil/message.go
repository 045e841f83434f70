package ofutil

import "github.com/netrack/openflow/ofp13"

// Message is anything a Table method or a Valve manager hands back to
// its caller for dispatch to the datapath: a flow mod, a meter mod, a
// group mod, a packet-out, or a table-features request. Translating these into wire bytes is the
// downstream encoder's job (see package doc).
type Message interface {
	message()
}

// FlowMod is a logical OFPT_FLOW_MOD: the table, match, priority,
// timeouts and instruction list a Table builds, carrying ofp13's own
// command/flag enums directly since those are plain values, not the
// package's broken composite structs.
type FlowMod struct {
	Table        ofp13.Table
	Command      ofp13.FlowModCommand
	Priority     uint16
	IdleTimeout  uint16
	HardTimeout  uint16
	Cookie       uint64
	CookieMask   uint64
	OutPort      ofp13.PortNo
	OutGroup     ofp13.Group
	Flags        ofp13.FlowModFlags
	Match        Match
	Instructions []Instruction
}

func (FlowMod) message() {}

// MeterMod is a logical OFPT_METER_MOD.
type MeterMod struct {
	Command ofp13.MeterModCommands
	Flags   ofp13.MeterFlags
	MeterID ofp13.Meter
	Bands   []ofp13.MeterBandHeader
}

func (MeterMod) message() {}

// NoBuffer marks a PacketOut/packet-in as carrying its own Data rather
// than referencing a buffer held by the datapath, mirroring OFP_NO_BUFFER
// (0xffffffff); ofp13 does not export this sentinel so ofutil defines
// its own, consistent with its G_ANY/M_ALL/Q_ALL siblings.
const NoBuffer uint32 = 0xffffffff

// PacketOut is a logical OFPT_PACKET_OUT: inject a controller-built
// frame into the pipeline via Actions, mirroring valve.py's use of
// packet_out to emit ARP requests/replies and IPv6 ND/RA frames. Data
// is raw wire bytes from the external packet builder (spec.md's packet
// parser is an external collaborator; ofutil never constructs frame
// bytes itself).
type PacketOut struct {
	BufferID uint32
	InPort   ofp13.PortNo
	Actions  []Action
	Data     []byte
}

func (PacketOut) message() {}

// TableFeaturesMod names a table for OFPT_TABLE_FEATURES (naming only;
// ofp13.TableFeatures' name field is unexported so even the downstream
// encoder must build the wire struct itself from this value).
type TableFeaturesMod struct {
	TableID ofp13.Table
	Name    string
}

func (TableFeaturesMod) message() {}
