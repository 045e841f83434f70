package valve

import (
	"testing"

	"github.com/faucetgo/valve/config"
)

func TestACLConfigChangesDetectsContentChange(t *testing.T) {
	old := testDP()
	old.ACLs[1] = &config.ACL{Name: "a", Rules: []config.Rule{{Actions: config.RuleActions{Allow: true}}}}
	newDP := testDP()
	newDP.ACLs[1] = &config.ACL{Name: "a", Rules: []config.Rule{{Actions: config.RuleActions{Allow: false}}}}

	changed := aclConfigChanges(old, newDP)
	if !changed[1] {
		t.Error("aclConfigChanges missed a content change on acl id 1")
	}
}

func TestACLConfigChangesNoneWhenIdentical(t *testing.T) {
	old := testDP()
	old.ACLs[1] = &config.ACL{Name: "a", Rules: []config.Rule{{Actions: config.RuleActions{Allow: true}}}}
	newDP := testDP()
	newDP.ACLs[1] = &config.ACL{Name: "a", Rules: []config.Rule{{Actions: config.RuleActions{Allow: true}}}}

	changed := aclConfigChanges(old, newDP)
	if len(changed) != 0 {
		t.Errorf("aclConfigChanges reported changes for identical ACLs: %v", changed)
	}
}

func TestVLANConfigChangesDeleteAndAdd(t *testing.T) {
	old := testDP()
	newDP := testDP()
	delete(newDP.VLANs, 10)
	newVLAN := &config.VLAN{VID: 20, Name: "vlan20", HostCache: map[string]*config.HostCacheEntry{}}
	newDP.VLANs[20] = newVLAN

	deleted, changed := vlanConfigChanges(old, newDP)
	if len(deleted) != 1 || deleted[0].VID != 10 {
		t.Errorf("vlanConfigChanges deleted = %v, want just VID 10", deleted)
	}
	if len(changed) != 1 || changed[0].VID != 20 {
		t.Errorf("vlanConfigChanges changed = %v, want just VID 20", changed)
	}
}

func TestVLANConfigChangesMergesDynOnStructuralMatch(t *testing.T) {
	old := testDP()
	old.VLANs[10].HostCache["aa:aa:aa:aa:aa:aa"] = &config.HostCacheEntry{Port: 1}
	newDP := testDP() // structurally identical VLAN 10, empty host cache

	_, changed := vlanConfigChanges(old, newDP)
	if len(changed) != 0 {
		t.Errorf("structurally identical VLAN reported as changed: %v", changed)
	}
	if _, ok := newDP.VLANs[10].HostCache["aa:aa:aa:aa:aa:aa"]; !ok {
		t.Error("vlanConfigChanges did not merge dynamic state forward")
	}
}

func TestPortConfigChangesAllPortsChanged(t *testing.T) {
	old := testDP()
	newDP := testDP()
	newDP.Ports[1].MaxHosts = 5
	newDP.Ports[2].MaxHosts = 5

	_, _, _, allChanged := portConfigChanges(old, newDP, map[int]bool{})
	if !allChanged {
		t.Error("portConfigChanges did not flag allPortsChanged when every port changed")
	}
}

func TestPortConfigChangesPartialIsNotAllChanged(t *testing.T) {
	old := testDP()
	newDP := testDP()
	newDP.Ports[1].MaxHosts = 5

	_, changed, _, allChanged := portConfigChanges(old, newDP, map[int]bool{})
	if allChanged {
		t.Error("portConfigChanges flagged allPortsChanged for a single-port change")
	}
	if len(changed) != 1 || changed[0].Number != 1 {
		t.Errorf("portConfigChanges changed = %v, want just port 1", changed)
	}
}
