package config

import (
	"testing"

	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/ofutil"
)

func TestTableFlowModDefaults(t *testing.T) {
	table := Table{Name: "vlan", ID: ofp13.Table(0)}
	fm := table.FlowMod(100, ofutil.Wildcard, nil, 0, 0, 0)
	if fm.Table != ofp13.Table(0) || fm.Command != ofp13.FC_ADD || fm.Priority != 100 {
		t.Errorf("unexpected flow mod: %+v", fm)
	}
}

func TestTableFlowDelStrict(t *testing.T) {
	table := Table{Name: "vlan", ID: ofp13.Table(0)}
	fm := table.FlowDel(ofutil.Wildcard, true)
	if fm.Command != ofp13.FC_DELETE_STRICT {
		t.Errorf("Command = %v, want FC_DELETE_STRICT", fm.Command)
	}
}

func TestTableFlowController(t *testing.T) {
	table := Table{Name: "eth_src", ID: ofp13.Table(1)}
	fm := table.FlowController(200, ofutil.Wildcard, 42)
	if len(fm.Instructions) != 1 {
		t.Fatalf("len(Instructions) = %d, want 1", len(fm.Instructions))
	}
	aa, ok := fm.Instructions[0].(ofutil.ApplyActionsInstr)
	if !ok {
		t.Fatalf("Instructions[0] = %T, want ApplyActionsInstr", fm.Instructions[0])
	}
	out, ok := aa.Actions[0].(ofutil.Output)
	if !ok || out.Port != ofp13.P_CONTROLLER {
		t.Errorf("unexpected output action: %+v", aa.Actions[0])
	}
}
