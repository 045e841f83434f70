package ofutil

import "github.com/netrack/openflow/ofp13"

// Action is one apply-actions entry. Building the wire OXM/action-header
// encoding for these is the downstream encoder's job (see package doc);
// ofutil only carries the logical action the way valve_of.py's builder
// functions return action lists.
type Action interface {
	action()
}

// Output sends the packet out Port, copying MaxLen bytes to the
// controller when Port is ofp13.P_CONTROLLER (valve_of.output_port).
type Output struct {
	Port   ofp13.PortNo
	MaxLen uint16
}

func (Output) action() {}

// PushVLAN pushes an 802.1Q tag with the given TPID (valve_of.push_vlan_act's
// first step).
type PushVLAN struct{ EtherType uint16 }

func (PushVLAN) action() {}

// SetVLANVID rewrites the VLAN ID of the (just-pushed or existing) tag.
// ofp13's ActionSetField takes a []OXM whose element type isn't defined
// in this package version, so there is no confirmed wire struct to
// reuse here; SetVLANVID stays a logical marker for the encoder.
type SetVLANVID struct{ VID uint16 }

func (SetVLANVID) action() {}

// PopVLAN strips the outermost 802.1Q tag. ofp13 has no dedicated
// struct for OFPAT_POP_VLAN (it reuses the bare action header), so
// this too is a logical marker.
type PopVLAN struct{}

func (PopVLAN) action() {}

// DecTTL decrements the IP TTL/hop limit, used on routed frames unless
// the vendor variant disables it (some hardware can't decrement in the
// fast path).
type DecTTL struct{}

func (DecTTL) action() {}

// Group forwards the packet to a group table entry.
type Group struct{ GroupID uint32 }

func (Group) action() {}

// SetQueue maps the packet to QueueID.
type SetQueue struct{ QueueID uint32 }

func (SetQueue) action() {}

// OutputPort returns the single-action list for "send out port",
// mirroring valve_of.output_port.
func OutputPort(port ofp13.PortNo, maxLen uint16) []Action {
	return []Action{Output{Port: port, MaxLen: maxLen}}
}

// PushVLANAct returns the push-then-set-vid action pair valve_of.push_vlan_act
// builds when tagging a packet arriving on a native/untagged port.
func PushVLANAct(vid uint16) []Action {
	return []Action{
		PushVLAN{EtherType: ethTypeVLAN},
		SetVLANVID{VID: vid},
	}
}

const ethTypeVLAN = 0x8100
