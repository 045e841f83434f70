package ofutil

import "github.com/netrack/openflow/ofp13"

// GotoTable builds the "goto table" instruction, mirroring
// valve_of.goto_table.
func GotoTable(table ofp13.Table) Instruction {
	return GotoTableInstr{Table: table}
}

// ApplyActions builds the "apply these actions now" instruction,
// mirroring valve_of.apply_actions.
func ApplyActions(actions []Action) Instruction {
	return ApplyActionsInstr{Actions: actions}
}

// MeterDel deletes meterID, mirroring valve_of.meterdel.
func MeterDel(meterID ofp13.Meter) MeterMod {
	return MeterMod{Command: ofp13.MC_DELETE, MeterID: meterID}
}

// ControllerPPSMeterAdd installs a packet-per-second rate limiter on
// meterID that drops over-rate packets, mirroring
// valve_of.controller_pps_meteradd. pps is the allowed rate.
func ControllerPPSMeterAdd(meterID ofp13.Meter, pps uint32) MeterMod {
	return MeterMod{
		Command: ofp13.MC_ADD,
		Flags:   ofp13.MF_PKTPS,
		MeterID: meterID,
		Bands: []ofp13.MeterBandHeader{
			{Type: ofp13.MBT_DROP, Rate: pps},
		},
	}
}

// ControllerPPSMeterDel deletes the packet-in rate limiter meter,
// mirroring valve_of.controller_pps_meterdel.
func ControllerPPSMeterDel(meterID ofp13.Meter) MeterMod {
	return MeterDel(meterID)
}

// TableFeaturesMsg names table for an OFPT_TABLE_FEATURES request,
// mirroring valve_of.table_features.
func TableFeaturesMsg(table ofp13.Table, name string) TableFeaturesMod {
	return TableFeaturesMod{TableID: table, Name: name}
}

// IgnorePort reports whether port is a reserved/virtual OpenFlow port
// (LOCAL, CONTROLLER, ALL, FLOOD, ...) rather than a real datapath
// port, mirroring valve_of.ignore_port: any port number at or above
// ofp13.P_MAX is reserved.
func IgnorePort(port uint32) bool {
	return ofp13.PortNo(port) >= ofp13.P_MAX
}
