package ofutil

import (
	"testing"

	"github.com/netrack/openflow/ofp13"
)

func TestIgnorePort(t *testing.T) {
	cases := []struct {
		port uint32
		want bool
	}{
		{1, false},
		{4094, false},
		{uint32(ofp13.P_MAX), true},
		{uint32(ofp13.P_CONTROLLER), true},
		{uint32(ofp13.P_LOCAL), true},
		{uint32(ofp13.P_ALL), true},
	}
	for _, c := range cases {
		if got := IgnorePort(c.port); got != c.want {
			t.Errorf("IgnorePort(%d) = %v, want %v", c.port, got, c.want)
		}
	}
}

func TestGotoTable(t *testing.T) {
	inst := GotoTable(ofp13.Table(3))
	got, ok := inst.(GotoTableInstr)
	if !ok {
		t.Fatalf("GotoTable returned %T, want GotoTableInstr", inst)
	}
	if got.Table != 3 {
		t.Errorf("Table = %d, want 3", got.Table)
	}
}

func TestApplyActionsOutput(t *testing.T) {
	inst := ApplyActions(OutputPort(ofp13.P_FLOOD, 0))
	aa, ok := inst.(ApplyActionsInstr)
	if !ok {
		t.Fatalf("ApplyActions returned %T, want ApplyActionsInstr", inst)
	}
	if len(aa.Actions) != 1 {
		t.Fatalf("len(Actions) = %d, want 1", len(aa.Actions))
	}
	out, ok := aa.Actions[0].(Output)
	if !ok {
		t.Fatalf("Actions[0] = %T, want Output", aa.Actions[0])
	}
	if out.Port != ofp13.P_FLOOD {
		t.Errorf("Port = %v, want P_FLOOD", out.Port)
	}
}

func TestPushVLANAct(t *testing.T) {
	actions := PushVLANAct(100)
	if len(actions) != 2 {
		t.Fatalf("len(actions) = %d, want 2", len(actions))
	}
	if _, ok := actions[0].(PushVLAN); !ok {
		t.Errorf("actions[0] = %T, want PushVLAN", actions[0])
	}
	set, ok := actions[1].(SetVLANVID)
	if !ok {
		t.Fatalf("actions[1] = %T, want SetVLANVID", actions[1])
	}
	if set.VID != 100 {
		t.Errorf("VID = %d, want 100", set.VID)
	}
}

func TestControllerPPSMeter(t *testing.T) {
	add := ControllerPPSMeterAdd(ofp13.Meter(1), 50)
	if add.Command != ofp13.MC_ADD || add.Flags != ofp13.MF_PKTPS {
		t.Errorf("unexpected meter add: %+v", add)
	}
	if len(add.Bands) != 1 || add.Bands[0].Rate != 50 {
		t.Errorf("unexpected bands: %+v", add.Bands)
	}
	del := ControllerPPSMeterDel(ofp13.Meter(1))
	if del.Command != ofp13.MC_DELETE {
		t.Errorf("unexpected meter del: %+v", del)
	}
}
