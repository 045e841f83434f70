package valve

import (
	"fmt"

	"github.com/faucetgo/valve/config"
	"github.com/faucetgo/valve/ofutil"
)

// configChanges is the diff between the running DP and a candidate
// replacement, mirroring valve.py's _get_config_changes/_get_*_config_changes
// trio. Computed once, then applied in one fixed order by
// applyConfigChanges.
type configChanges struct {
	changedACLs map[int]bool

	deletedVLANs []*config.VLAN
	changedVLANs []*config.VLAN // keyed against newDP; re-added fresh (MergeDyn only applies to unchanged VLANs)

	deletedPorts []*config.Port
	changedPorts []*config.Port // structurally different, or newly added
	aclOnlyPorts []*config.Port // structurally identical but ACLIn resolves to a changed ACL

	allPortsChanged bool
}

// aclConfigChanges reports which ACL ids differ in content between old
// and new, mirroring valve.py's _get_acl_config_changes.
func aclConfigChanges(oldDP, newDP *config.DP) map[int]bool {
	changed := map[int]bool{}
	for id, newACL := range newDP.ACLs {
		oldACL, ok := oldDP.ACLs[id]
		if !ok || !oldACL.StructuralEqual(newACL) {
			changed[id] = true
		}
	}
	for id := range oldDP.ACLs {
		if _, ok := newDP.ACLs[id]; !ok {
			changed[id] = true
		}
	}
	return changed
}

// vlanConfigChanges reports which VLANs were deleted and which were
// added or structurally changed, mirroring valve.py's
// _get_vlan_config_changes. Structurally-unchanged VLANs retained in
// newDP have their dynamic state (host/neighbor caches) carried
// forward via MergeDyn so hosts don't need to relearn.
func vlanConfigChanges(oldDP, newDP *config.DP) (deleted, changed []*config.VLAN) {
	for vid, oldVLAN := range oldDP.VLANs {
		if _, ok := newDP.VLANs[vid]; !ok {
			deleted = append(deleted, oldVLAN)
		}
	}
	for vid, newVLAN := range newDP.VLANs {
		oldVLAN, ok := oldDP.VLANs[vid]
		if !ok {
			changed = append(changed, newVLAN)
			continue
		}
		if !oldVLAN.StructuralEqual(newVLAN) {
			changed = append(changed, newVLAN)
			continue
		}
		newVLAN.MergeDyn(oldVLAN)
	}
	return deleted, changed
}

// portConfigChanges reports deleted/changed/ACL-only-changed ports and
// whether every port in newDP changed (the cold-start escape hatch),
// mirroring valve.py's _get_port_config_changes.
func portConfigChanges(oldDP, newDP *config.DP, changedACLs map[int]bool) (deleted, changed, aclOnly []*config.Port, allChanged bool) {
	changedSet := map[uint32]bool{}
	for num, oldPort := range oldDP.Ports {
		if _, ok := newDP.Ports[num]; !ok {
			deleted = append(deleted, oldPort)
		}
	}
	for num, newPort := range newDP.Ports {
		oldPort, ok := oldDP.Ports[num]
		if !ok {
			changed = append(changed, newPort)
			changedSet[num] = true
			continue
		}
		if !oldPort.StructuralEqual(newPort) {
			changed = append(changed, newPort)
			changedSet[num] = true
			continue
		}
		if changedACLs[newPort.ACLIn] {
			aclOnly = append(aclOnly, newPort)
		}
	}
	allChanged = len(newDP.Ports) > 0 && len(changedSet) == len(newDP.Ports)
	return deleted, changed, aclOnly, allChanged
}

func getConfigChanges(oldDP, newDP *config.DP) configChanges {
	changedACLs := aclConfigChanges(oldDP, newDP)
	deletedVLANs, changedVLANs := vlanConfigChanges(oldDP, newDP)
	deletedPorts, changedPorts, aclOnlyPorts, allChanged := portConfigChanges(oldDP, newDP, changedACLs)
	return configChanges{
		changedACLs:     changedACLs,
		deletedVLANs:    deletedVLANs,
		changedVLANs:    changedVLANs,
		deletedPorts:    deletedPorts,
		changedPorts:    changedPorts,
		aclOnlyPorts:    aclOnlyPorts,
		allPortsChanged: allChanged,
	}
}

// ReloadConfig replaces the running DP with newDP, applying the minimal
// set of flow mods needed to converge, or cold-starting when every
// port changed, mirroring valve.py's reload_config
// (spec.md §4.6 "Reload"). Returns whether a cold start occurred.
// A no-op (false, nil) when the DP isn't running yet.
func (v *Valve) ReloadConfig(newDP *config.DP) (bool, []ofutil.Message) {
	if !v.DP.Running {
		return false, nil
	}
	v.ConfigErrors = nil
	changes := getConfigChanges(v.DP, newDP)

	if changes.allPortsChanged {
		v.Logger.Info("every port changed, cold-starting")
		newDP.Running = false
		*v.DP = *newDP
		upPorts := make([]uint32, 0, len(v.DP.Ports))
		for num, p := range v.DP.Ports {
			if p.AdminUp {
				upPorts = append(upPorts, num)
			}
		}
		return true, v.DatapathConnect(v.DP.DPID, upPorts)
	}

	var msgs []ofutil.Message

	for _, p := range changes.deletedPorts {
		msgs = append(msgs, v.portDeleteFlows(p, v.ethSrcsLearnedOnPort(p.Number))...)
	}
	for _, vlan := range changes.deletedVLANs {
		msgs = append(msgs, v.delVLAN(vlan)...)
	}
	for _, p := range changes.changedPorts {
		if old, ok := v.DP.Ports[p.Number]; ok {
			msgs = append(msgs, v.portDeleteFlows(old, v.ethSrcsLearnedOnPort(p.Number))...)
		}
	}

	oldVLANByVID := v.DP.VLANs

	*v.DP = *newDP

	for _, vlan := range changes.changedVLANs {
		if old, ok := oldVLANByVID[vlan.VID]; ok {
			msgs = append(msgs, v.delVLAN(old)...)
		}
		msgs = append(msgs, v.addVLAN(vlan)...)
	}

	changedPortNums := make([]uint32, 0, len(changes.changedPorts))
	for _, p := range changes.changedPorts {
		changedPortNums = append(changedPortNums, p.Number)
	}
	if len(changedPortNums) > 0 {
		msgs = append(msgs, v.PortsAdd(changedPortNums, false)...)
	}

	for _, p := range changes.aclOnlyPorts {
		v.Logger.Info(fmt.Sprintf("reprogramming ACL on port %d", p.Number))
		msgs = append(msgs, v.portAddACL(p.Number, true)...)
	}

	return false, msgs
}
