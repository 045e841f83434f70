package config

import "testing"

func TestACLStructuralEqual(t *testing.T) {
	a := &ACL{Name: "office-in", Rules: []Rule{
		{EthSrc: mac("00:11:22:33:44:55"), Actions: RuleActions{Allow: true}},
	}}
	b := &ACL{Name: "office-in", Rules: []Rule{
		{EthSrc: mac("00:11:22:33:44:55"), Actions: RuleActions{Allow: true}},
	}}
	if !a.StructuralEqual(b) {
		t.Error("identical ACLs reported structurally unequal")
	}
	b.Rules[0].Actions.Allow = false
	if a.StructuralEqual(b) {
		t.Error("ACLs with different rule actions reported structurally equal")
	}
}

func TestACLToConf(t *testing.T) {
	a := &ACL{Name: "office-in", Rules: []Rule{{}, {}}}
	conf := a.ToConf()
	if conf["rule_count"].(int) != 2 {
		t.Errorf("rule_count = %v, want 2", conf["rule_count"])
	}
}
