package ofutil

import (
	"net"
	"testing"
)

func TestWildcardIsWildcard(t *testing.T) {
	if !Wildcard.IsWildcard() {
		t.Error("Wildcard.IsWildcard() = false, want true")
	}
}

func TestMatchIsWildcardFalse(t *testing.T) {
	m := Match{EthSrc: net.HardwareAddr{0, 1, 2, 3, 4, 5}}
	if m.IsWildcard() {
		t.Error("Match with EthSrc set reported IsWildcard() = true")
	}
}

func TestMatchEqual(t *testing.T) {
	mac := net.HardwareAddr{0, 1, 2, 3, 4, 5}
	a := Match{InPort: U32(1), EthSrc: mac, EthType: U16(0x0800)}
	b := Match{InPort: U32(1), EthSrc: mac, EthType: U16(0x0800)}
	if !a.Equal(b) {
		t.Error("identical matches reported unequal")
	}
	c := Match{InPort: U32(2), EthSrc: mac, EthType: U16(0x0800)}
	if a.Equal(c) {
		t.Error("matches with different InPort reported equal")
	}
}

func TestVLANMatch(t *testing.T) {
	a := Match{VLAN: &VLANMatch{VID: 100}}
	b := Match{VLAN: &VLANMatch{VID: 100}}
	if !a.Equal(b) {
		t.Error("identical VLAN matches reported unequal")
	}
	c := Match{VLAN: &VLANMatch{VID: 200}}
	if a.Equal(c) {
		t.Error("different VLAN matches reported equal")
	}
}
