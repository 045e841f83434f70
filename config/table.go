package config

import (
	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/ofutil"
)

// Table is one stage of the pipeline a Valve programs: vlan, port_acl,
// vlan_acl, eth_src, ipv4_fib, ipv6_fib, eth_dst, flood, and so on.
// Grounded on valve.py's dp.tables[name], which every packet-handling
// method threads flow mods through rather than building raw messages
// by hand.
type Table struct {
	Name string
	ID   ofp13.Table

	// RestrictedMatchTypes, when non-nil, is the set of OXM fields this
	// table's pipeline position allows a rule to match on. Left opaque
	// by the distilled spec: the vendor variant only compares it
	// against the match fields a loaded pipeline file declares for the
	// table, it never defines the set itself.
	RestrictedMatchTypes []ofp13.OXMField
}

// Match returns fields unchanged; it exists so callers can write
// table.Match(ofutil.Match{...}) the way valve.py writes
// table.match(eth_src=...), keeping call sites symmetrical with
// FlowMod/FlowDel/FlowDrop.
func (t Table) Match(fields ofutil.Match) ofutil.Match {
	return fields
}

// FlowMod builds an OFPFC_ADD flow mod installing instructions at
// priority against match, mirroring valve.py's table.flowmod.
func (t Table) FlowMod(priority uint16, match ofutil.Match, inst []ofutil.Instruction, cookie uint64, idleTimeout, hardTimeout uint16) ofutil.FlowMod {
	return ofutil.FlowMod{
		Table:        t.ID,
		Command:      ofp13.FC_ADD,
		Priority:     priority,
		IdleTimeout:  idleTimeout,
		HardTimeout:  hardTimeout,
		Cookie:       cookie,
		Match:        match,
		Instructions: inst,
	}
}

// FlowDel builds a flow delete for match, strict or non-strict,
// mirroring valve.py's table.flowdel.
func (t Table) FlowDel(match ofutil.Match, strict bool) ofutil.FlowMod {
	cmd := ofp13.FC_DELETE
	if strict {
		cmd = ofp13.FC_DELETE_STRICT
	}
	return ofutil.FlowMod{
		Table:    t.ID,
		Command:  cmd,
		Match:    match,
		OutPort:  ofp13.P_ANY,
		OutGroup: ofp13.Group(ofp13.G_ANY),
	}
}

// FlowDelOut builds a flow delete constrained to entries whose action
// set outputs to outPort, mirroring valve.py's table.flowdel(out_port=...)
// used to remove only the eth_dst entries pointing at a downed port.
func (t Table) FlowDelOut(match ofutil.Match, outPort ofp13.PortNo, strict bool) ofutil.FlowMod {
	fm := t.FlowDel(match, strict)
	fm.OutPort = outPort
	return fm
}

// FlowDrop installs a priority match with no instructions, relying on
// OpenFlow's implicit drop, mirroring valve.py's table.flowdrop.
func (t Table) FlowDrop(priority uint16, match ofutil.Match, cookie uint64) ofutil.FlowMod {
	return t.FlowMod(priority, match, nil, cookie, 0, 0)
}

// FlowController sends matching packets to the controller, mirroring
// valve.py's table.flowcontroller.
func (t Table) FlowController(priority uint16, match ofutil.Match, cookie uint64) ofutil.FlowMod {
	inst := []ofutil.Instruction{
		ofutil.ApplyActions(ofutil.OutputPort(ofp13.P_CONTROLLER, ofp13.CML_NO_BUFFER)),
	}
	return t.FlowMod(priority, match, inst, cookie, 0, 0)
}
