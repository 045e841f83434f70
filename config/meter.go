package config

import (
	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/ofutil"
)

// Meter is a rate limiter bound to an ACL rule or the control-plane
// packet-in path, mirroring valve.py's dp.meters[meter_id] and
// meter.entry_msg.
type Meter struct {
	ID   ofp13.Meter
	Rate uint32 // packets or kilobits per second, per Flags
	Flags ofp13.MeterFlags
}

// EntryMsg builds the OFPT_METER_MOD that installs this meter,
// mirroring valve.py's meter.entry_msg.
func (m *Meter) EntryMsg() ofutil.MeterMod {
	return ofutil.MeterMod{
		Command: ofp13.MC_ADD,
		Flags:   m.Flags,
		MeterID: m.ID,
		Bands: []ofp13.MeterBandHeader{
			{Type: ofp13.MBT_DROP, Rate: m.Rate},
		},
	}
}
