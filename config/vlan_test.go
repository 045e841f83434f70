package config

import (
	"net"
	"testing"
	"time"
)

func TestVLANPorts(t *testing.T) {
	dp := testDP()
	vlan := dp.VLANs[100]
	ports := vlan.Ports()
	if len(ports) != 2 {
		t.Fatalf("len(Ports()) = %d, want 2", len(ports))
	}
}

func TestVLANStructuralEqual(t *testing.T) {
	dp := testDP()
	vlan := dp.VLANs[100]
	clone := *vlan
	if !vlan.StructuralEqual(&clone) {
		t.Error("identical VLANs reported structurally unequal")
	}
	clone.MaxHosts = 99
	if vlan.StructuralEqual(&clone) {
		t.Error("VLANs with different MaxHosts reported structurally equal")
	}
}

func TestVLANMergeDynKeepsLearnedHosts(t *testing.T) {
	prev := &VLAN{
		VID: 100,
		HostCache: map[string]*HostCacheEntry{
			"00:11:22:33:44:55": {Port: 1, CacheTime: time.Now()},
		},
	}
	next := &VLAN{VID: 100, HostCache: map[string]*HostCacheEntry{}}
	next.MergeDyn(prev)
	if len(next.HostCache) != 1 {
		t.Errorf("MergeDyn did not carry forward host cache: %+v", next.HostCache)
	}
}

func TestVLANIPVersions(t *testing.T) {
	vlan := &VLAN{
		FaucetVIPsByIPVersion: map[int][]*net.IPNet{
			4: {{IP: net.ParseIP("10.0.0.1"), Mask: net.CIDRMask(24, 32)}},
		},
	}
	ipvs := vlan.IPVersions()
	if len(ipvs) != 1 || ipvs[0] != 4 {
		t.Errorf("IPVersions() = %v, want [4]", ipvs)
	}
}
