package ofutil

import "github.com/netrack/openflow/ofp13"

// GroupMod is a logical OFPT_GROUP_MOD. ofp13's own GroupMod/Bucket
// types (group.go and group_mod.go define two mutually inconsistent
// versions, both referencing the undefined ActionHeader type) aren't
// safe to construct from outside the package, so flood/route build
// this logical form instead; the downstream encoder owns turning it
// into wire bytes.
type GroupMod struct {
	Command ofp13.GroupModCommand
	Type    ofp13.GroupType
	GroupID uint32
	Buckets []Bucket
}

func (GroupMod) message() {}

// Bucket is one action set a group applies; for GT_ALL/GT_INDIRECT
// groups each bucket runs independently of the others, which is why
// flood uses a group per VLAN rather than one flat action list when a
// member needs its own push/pop VLAN sequence.
type Bucket struct {
	WatchPort  ofp13.PortNo
	WatchGroup uint32
	Actions    []Action
}
