package config

import "testing"

func TestPortRunning(t *testing.T) {
	p := &Port{AdminUp: true, PhysUp: true}
	if !p.Running() {
		t.Error("port with AdminUp and PhysUp should be running")
	}
	p.PhysUp = false
	if p.Running() {
		t.Error("port with link down should not be running")
	}
}

func TestPortNativeAndTagged(t *testing.T) {
	dp := testDP()
	p1 := dp.Ports[1]
	if !p1.Native(100) {
		t.Error("p1 should be native on vlan 100")
	}
	if p1.Tagged(100) {
		t.Error("p1 is untagged, should not report Tagged(100)")
	}
}

func TestPortStructuralEqual(t *testing.T) {
	dp := testDP()
	p1 := dp.Ports[1]
	clone := *p1
	if !p1.StructuralEqual(&clone) {
		t.Error("identical ports reported structurally unequal")
	}
	clone.PermanentLearn = true
	if p1.StructuralEqual(&clone) {
		t.Error("ports with different PermanentLearn reported structurally equal")
	}
}
