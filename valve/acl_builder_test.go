package valve

import (
	"testing"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

func TestBuildACLAllowTerminatesWithGoto(t *testing.T) {
	b := &ACLBuilder{}
	table := &config.Table{Name: "port_acl", ID: 1}
	acl := &config.ACL{Rules: []config.Rule{
		{Actions: config.RuleActions{Allow: true}},
	}}
	goTo := ofutil.GotoTable(2)

	msgs := b.BuildACL(table, acl, 0x3000, goTo, nil)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	fm := msgs[0].(ofutil.FlowMod)
	if len(fm.Instructions) != 1 || fm.Instructions[0] != goTo {
		t.Errorf("allow rule instructions = %v, want just the goto", fm.Instructions)
	}
}

func TestBuildACLDenyHasNoInstructions(t *testing.T) {
	b := &ACLBuilder{}
	table := &config.Table{Name: "port_acl", ID: 1}
	acl := &config.ACL{Rules: []config.Rule{{}}}

	msgs := b.BuildACL(table, acl, 0x3000, ofutil.GotoTable(2), nil)
	fm := msgs[0].(ofutil.FlowMod)
	if len(fm.Instructions) != 0 {
		t.Errorf("deny rule instructions = %v, want none (implicit drop)", fm.Instructions)
	}
}

func TestBuildACLDescendingPriority(t *testing.T) {
	b := &ACLBuilder{}
	table := &config.Table{Name: "port_acl", ID: 1}
	acl := &config.ACL{Rules: []config.Rule{
		{Actions: config.RuleActions{Allow: true}},
		{Actions: config.RuleActions{Allow: true}},
		{},
	}}

	msgs := b.BuildACL(table, acl, 100, ofutil.GotoTable(2), nil)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, m := range msgs {
		fm := m.(ofutil.FlowMod)
		want := uint16(100 - i)
		if fm.Priority != want {
			t.Errorf("rule %d priority = %d, want %d (descending from highest)", i, fm.Priority, want)
		}
	}
}

func TestBuildACLMeterBindingAddsMeterInstruction(t *testing.T) {
	b := &ACLBuilder{}
	table := &config.Table{Name: "port_acl", ID: 1}
	meters := map[int]*config.Meter{5: {ID: 7}}
	acl := &config.ACL{Rules: []config.Rule{
		{Actions: config.RuleActions{Meter: 5, Allow: true}},
	}}

	msgs := b.BuildACL(table, acl, 100, ofutil.GotoTable(2), meters)
	fm := msgs[0].(ofutil.FlowMod)
	mi, ok := fm.Instructions[0].(ofutil.MeterInstr)
	if !ok || mi.MeterID != 7 {
		t.Errorf("meter-bound rule instructions[0] = %+v, want MeterInstr{MeterID: 7}", fm.Instructions[0])
	}
}
