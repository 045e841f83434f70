package valve

import (
	"testing"

	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

func testFloodVLAN() (*config.DP, *config.VLAN) {
	dp := testDP()
	vlan := dp.VLANs[10]
	vlan.MirrorDestinationPorts = []uint32{99}
	return dp, vlan
}

func TestBuildFloodRulesMirrorsToDestinationPort(t *testing.T) {
	fm := &FloodManager{FloodTable: dp0Table("flood", 8), LowPriority: 0}
	dp, vlan := testFloodVLAN()

	msgs := fm.BuildFloodRules(dp, vlan, false)
	if len(msgs) != len(vlan.Ports()) {
		t.Fatalf("got %d flood flows, want one per member port (%d)", len(msgs), len(vlan.Ports()))
	}
	for _, m := range msgs {
		actions := m.(ofutil.FlowMod).Instructions[0].(ofutil.ApplyActionsInstr).Actions
		found := false
		for _, a := range actions {
			if out, ok := a.(ofutil.Output); ok && out.Port == ofp13.PortNo(99) {
				found = true
			}
		}
		if !found {
			t.Errorf("flood actions %v missing the mirror-destination output", actions)
		}
	}
}

func TestBuildFloodRulesPopsTagForNativeMember(t *testing.T) {
	fm := &FloodManager{FloodTable: dp0Table("flood", 8), LowPriority: 0}
	dp, vlan := testFloodVLAN()

	msgs := fm.BuildFloodRules(dp, vlan, false)
	for _, m := range msgs {
		fmod := m.(ofutil.FlowMod)
		ingress := fmod.Match.InPort
		actions := fmod.Instructions[0].(ofutil.ApplyActionsInstr).Actions
		for _, p := range vlan.Ports() {
			if p.Number != *ingress && p.Native(vlan.VID) {
				if _, ok := actions[0].(ofutil.PopVLAN); !ok {
					t.Errorf("flood actions toward native port %d = %v, want PopVLAN first", p.Number, actions)
				}
			}
		}
	}
}

func TestBuildGroupFloodRulesEmitsGroupModThenFlows(t *testing.T) {
	fm := &FloodManager{FloodTable: dp0Table("flood", 8), LowPriority: 0, GroupTable: true}
	dp, vlan := testFloodVLAN()

	msgs := fm.BuildFloodRules(dp, vlan, false)
	group, ok := msgs[0].(ofutil.GroupMod)
	if !ok {
		t.Fatalf("first message = %T, want ofutil.GroupMod", msgs[0])
	}
	if len(group.Buckets) != len(vlan.Ports()) {
		t.Errorf("group has %d buckets, want one per member port (%d)", len(group.Buckets), len(vlan.Ports()))
	}
	if len(msgs) != 1+len(vlan.Ports()) {
		t.Errorf("got %d messages, want 1 group + one flow per ingress port", len(msgs))
	}
	for _, m := range msgs[1:] {
		fmod := m.(ofutil.FlowMod)
		act := fmod.Instructions[0].(ofutil.ApplyActionsInstr).Actions[0].(ofutil.Group)
		if act.GroupID != group.GroupID {
			t.Errorf("flow references group %d, want %d", act.GroupID, group.GroupID)
		}
	}
}

func TestShouldFloodToStackPortRootFloodsEverywhere(t *testing.T) {
	fm := &FloodManager{}
	dp := testDP()
	dp.Stack = &config.StackLinks{RootDPName: dp.Name}
	p := dp.Ports[1]
	p.Stack = &config.StackLink{DP: "peer", Port: 1}

	if !fm.shouldFloodToStackPort(dp, p) {
		t.Error("root datapath must flood out every stack port")
	}
}

func TestShouldFloodToStackPortNonRootOnlyShortestPath(t *testing.T) {
	fm := &FloodManager{}
	dp := testDP()
	dp.Stack = &config.StackLinks{RootDPName: "root-dp", PortsByPeer: map[string]uint32{"root-dp": 1}}
	dp.Name = "leaf-dp"

	shortestPath := dp.Ports[1]
	shortestPath.Stack = &config.StackLink{DP: "root-dp", Port: 1}
	otherStack := dp.Ports[2]
	otherStack.Stack = &config.StackLink{DP: "other-dp", Port: 1}

	if !fm.shouldFloodToStackPort(dp, shortestPath) {
		t.Error("the shortest-path-to-root stack port must flood")
	}
	if fm.shouldFloodToStackPort(dp, otherStack) {
		t.Error("a non-shortest-path stack port must not flood (loop avoidance)")
	}
}

func dp0Table(name string, id ofp13.Table) *config.Table {
	return &config.Table{Name: name, ID: id}
}
