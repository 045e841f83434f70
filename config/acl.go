package config

import "net"

// Rule is one ACL rule: a set of match criteria and the action to take
// when a packet matches, mirroring the rule dicts valve.py's
// _add_vlan_acl/_port_add_acl iterate over (acl_in's rule list).
type Rule struct {
	// Match criteria. Zero-value fields are wildcards. Fields mirror
	// the packet attributes a rule can be written against in the
	// original YAML-era ACL syntax.
	InPort  *uint32
	EthSrc  net.HardwareAddr
	EthDst  net.HardwareAddr
	EthType *uint16
	IPProto *uint8
	NWSrc   *net.IPNet
	NWDst   *net.IPNet

	Actions RuleActions

	// Cookie overrides the flow cookie valve.py normally derives from
	// the DP; zero means "use the default".
	Cookie uint64
}

// RuleActions is what to do with a packet matching a Rule: allow
// (continue the pipeline), drop (deny, the zero value), mirror to
// ports, rate-limit through a meter, or redirect to a named output
// port.
type RuleActions struct {
	Allow  bool
	Meter  int // index into DP.Meters, or 0 for none
	Mirror []uint32
	Output *uint32 // explicit output port, overriding pipeline continuation
}

// ACL is a named, ordered list of Rules, mirroring valve.py's
// dp.acls[acl_num].rules.
type ACL struct {
	Name  string
	Rules []Rule
}

// ToConf renders the ACL back into a plain map, backing
// Valve.GetConfigDict and DP.ToConf.
func (a *ACL) ToConf() map[string]interface{} {
	return map[string]interface{}{
		"name":       a.Name,
		"rule_count": len(a.Rules),
	}
}

// StructuralEqual reports whether two ACLs have the same rule set in
// the same order; ACL rules carry no dynamic state so this is a plain
// deep comparison.
func (a *ACL) StructuralEqual(o *ACL) bool {
	if a.Name != o.Name || len(a.Rules) != len(o.Rules) {
		return false
	}
	for i := range a.Rules {
		if !a.Rules[i].structuralEqual(&o.Rules[i]) {
			return false
		}
	}
	return true
}

func (r *Rule) structuralEqual(o *Rule) bool {
	if r.Cookie != o.Cookie {
		return false
	}
	if !u32PtrEq(r.InPort, o.InPort) || !u16PtrEq(r.EthType, o.EthType) || !u8PtrEq(r.IPProto, o.IPProto) {
		return false
	}
	if r.EthSrc.String() != o.EthSrc.String() || r.EthDst.String() != o.EthDst.String() {
		return false
	}
	if ipNetStr(r.NWSrc) != ipNetStr(o.NWSrc) || ipNetStr(r.NWDst) != ipNetStr(o.NWDst) {
		return false
	}
	if r.Actions.Allow != o.Actions.Allow || r.Actions.Meter != o.Actions.Meter {
		return false
	}
	if len(r.Actions.Mirror) != len(o.Actions.Mirror) {
		return false
	}
	for i := range r.Actions.Mirror {
		if r.Actions.Mirror[i] != o.Actions.Mirror[i] {
			return false
		}
	}
	if (r.Actions.Output == nil) != (o.Actions.Output == nil) {
		return false
	}
	if r.Actions.Output != nil && *r.Actions.Output != *o.Actions.Output {
		return false
	}
	return true
}
