package valve

import (
	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

// ACLBuilder translates a declarative ACL rule into the match,
// instruction list, and any extra messages (meter installs) needed to
// program it, mirroring valve.py's valve_acl.build_acl_entry (spec.md
// §4.5). It holds no state: every call is pure given its arguments.
type ACLBuilder struct{}

// BuildACLEntry builds the flow components for rule. allowGoto is the
// instruction an "allow" rule terminates with (goto vlan or eth_src,
// chosen by the caller depending on whether this is a port_acl or
// vlan_acl binding); a "deny" rule gets no instructions, relying on
// OpenFlow's implicit drop. meters resolves a rule's meter binding to
// its installed ofp13.Meter id.
func (b *ACLBuilder) BuildACLEntry(rule config.Rule, allowGoto ofutil.Instruction, meters map[int]*config.Meter) (ofutil.Match, []ofutil.Instruction, []ofutil.Message) {
	match := ofutil.Match{
		InPort:  rule.InPort,
		EthSrc:  rule.EthSrc,
		EthDst:  rule.EthDst,
		EthType: rule.EthType,
		IPProto: rule.IPProto,
		NWSrc:   rule.NWSrc,
		NWDst:   rule.NWDst,
	}

	var inst []ofutil.Instruction
	if rule.Actions.Meter != 0 {
		if m, ok := meters[rule.Actions.Meter]; ok {
			inst = append(inst, ofutil.MeterInstr{MeterID: m.ID})
		}
	}

	var actions []ofutil.Action
	for _, port := range rule.Actions.Mirror {
		actions = append(actions, ofutil.Output{Port: ofp13.PortNo(port)})
	}
	if rule.Actions.Output != nil {
		actions = append(actions, ofutil.Output{Port: ofp13.PortNo(*rule.Actions.Output)})
	}
	if len(actions) > 0 {
		inst = append(inst, ofutil.ApplyActionsInstr{Actions: actions})
	}

	if rule.Actions.Allow {
		inst = append(inst, allowGoto)
	}

	return match, inst, nil
}

// BuildACL programs every rule of acl into table at descending
// priorities starting from highest, mirroring valve.py's
// _add_vlan_acl/_port_add_acl loops. allowGoto is passed through to
// BuildACLEntry for every rule.
func (b *ACLBuilder) BuildACL(table *config.Table, acl *config.ACL, highest uint16, allowGoto ofutil.Instruction, meters map[int]*config.Meter) []ofutil.Message {
	var msgs []ofutil.Message
	priority := highest
	for _, rule := range acl.Rules {
		match, inst, extra := b.BuildACLEntry(rule, allowGoto, meters)
		msgs = append(msgs, extra...)
		msgs = append(msgs, table.FlowMod(priority, match, inst, rule.Cookie, 0, 0))
		priority--
	}
	return msgs
}
