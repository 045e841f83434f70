package config

import "net"

// Port is a single physical (or stack) interface on a DP, grounded on
// valve.py's port.native_vlan/tagged_vlans/acl_in/stack/mirror/
// permanent_learn/phys_up/running call sites.
type Port struct {
	Number uint32
	Name   string
	HWAddr net.HardwareAddr

	// NativeVLAN is the untagged VLAN this port belongs to, or nil if
	// the port only carries tagged traffic.
	NativeVLAN *VLAN
	// TaggedVLANs are the 802.1Q VLANs this port trunks.
	TaggedVLANs []*VLAN

	ACLIn int // index into DP.ACLs, or 0 for none

	// Stack, when non-nil, names the remote DP/port this link connects
	// to, making this port part of the stacking topology.
	Stack *StackLink

	// MirrorDestination, when true, makes this port a mirror sink; the
	// ports it mirrors traffic from are named by the peer ports whose
	// Mirror field points back here.
	MirrorDestination bool
	Mirror            []uint32 // port numbers whose traffic is copied here

	PermanentLearn bool
	MaxHosts       int
	LearnBanCount  int

	PhysUp bool
	// AdminUp models OFPPC_PORT_DOWN being clear in the switch's port
	// config; a port is Running only when both are true.
	AdminUp bool
}

// StackLink names the remote end of a stacking cable.
type StackLink struct {
	DP   string
	Port uint32
}

// Running reports whether the port is usable for flow installation:
// administratively up and carrying link, mirroring valve.py's
// port.running property.
func (p *Port) Running() bool {
	return p.AdminUp && p.PhysUp
}

// Tagged reports whether vid is one of this port's trunked VLANs.
func (p *Port) Tagged(vid int) bool {
	for _, v := range p.TaggedVLANs {
		if v.VID == vid {
			return true
		}
	}
	return false
}

// Native reports whether this port's untagged VLAN is vid.
func (p *Port) Native(vid int) bool {
	return p.NativeVLAN != nil && p.NativeVLAN.VID == vid
}

// StructuralEqual reports whether p and o describe the same port
// configuration, ignoring dynamic state (LearnBanCount, PhysUp). Used
// by the valve package's portConfigChanges to decide whether a port needs re-provisioning
// on reload, per spec.md's "structural key projection" approach
// (replacing valve.py's deepcopy-and-mutate-then-compare pattern).
func (p *Port) StructuralEqual(o *Port) bool {
	if p.Number != o.Number || p.Name != o.Name || p.ACLIn != o.ACLIn {
		return false
	}
	if p.PermanentLearn != o.PermanentLearn || p.MaxHosts != o.MaxHosts {
		return false
	}
	if p.MirrorDestination != o.MirrorDestination || len(p.Mirror) != len(o.Mirror) {
		return false
	}
	for i := range p.Mirror {
		if p.Mirror[i] != o.Mirror[i] {
			return false
		}
	}
	if vlanID(p.NativeVLAN) != vlanID(o.NativeVLAN) {
		return false
	}
	if len(p.TaggedVLANs) != len(o.TaggedVLANs) {
		return false
	}
	for i := range p.TaggedVLANs {
		if vlanID(p.TaggedVLANs[i]) != vlanID(o.TaggedVLANs[i]) {
			return false
		}
	}
	if (p.Stack == nil) != (o.Stack == nil) {
		return false
	}
	if p.Stack != nil && *p.Stack != *o.Stack {
		return false
	}
	return true
}

// ToConf renders the port back into a plain map, backing
// Valve.GetConfigDict and DP.ToConf.
func (p *Port) ToConf() map[string]interface{} {
	native := -1
	if p.NativeVLAN != nil {
		native = p.NativeVLAN.VID
	}
	tagged := make([]int, len(p.TaggedVLANs))
	for i, v := range p.TaggedVLANs {
		tagged[i] = v.VID
	}
	return map[string]interface{}{
		"name":        p.Name,
		"number":      p.Number,
		"native_vlan": native,
		"tagged_vlans": tagged,
		"running":     p.Running(),
	}
}

func vlanID(v *VLAN) int {
	if v == nil {
		return -1
	}
	return v.VID
}
