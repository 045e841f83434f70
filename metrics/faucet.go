// Package metrics exports a Valve's configuration and learning state as
// Prometheus gauges, mirroring valve.py's faucet_metrics usage and
// spec.md §6's metrics label contract. Grounded on
// grimm-is-flywall/internal/ebpf/metrics/prometheus.go's GaugeVec/
// Collector shape, enriched with github.com/prometheus/client_golang
// since the teacher itself carries no metrics layer.
package metrics

import (
	"fmt"
	"net"

	"github.com/netrack/openflow/ofp13"
	"github.com/prometheus/client_golang/prometheus"
)

// Faucet implements valve.MetricsSink against the standard Prometheus
// client. dp_id is exported as a hex string, vlan/port as integers, and
// learned_macs.n is a dense per-port index, per spec.md §6's metrics
// label contract.
type Faucet struct {
	ConfigDPName     *prometheus.GaugeVec
	ConfigTableNames *prometheus.GaugeVec
	VLANHostsLearned *prometheus.GaugeVec
	VLANLearnBans    *prometheus.GaugeVec
	VLANNeighbors    *prometheus.GaugeVec
	LearnedMACs      *prometheus.GaugeVec
	PortLearnBans    *prometheus.GaugeVec
}

// NewFaucet builds the metric family set without registering it; the
// caller registers with whatever prometheus.Registerer it uses.
func NewFaucet() *Faucet {
	return &Faucet{
		ConfigDPName: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "faucet_config_dp_name",
			Help: "DP name, always 1; dp_id/name identify the datapath",
		}, []string{"dp_id", "dp_name"}),
		ConfigTableNames: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "faucet_config_table_names",
			Help: "Pipeline table name to ID mapping; the value is the table ID",
		}, []string{"dp_id", "table_name"}),
		VLANHostsLearned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vlan_hosts_learned",
			Help: "Number of hosts learned on a VLAN",
		}, []string{"dp_id", "vlan"}),
		VLANLearnBans: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vlan_learn_bans",
			Help: "Number of times learning was banned on a VLAN",
		}, []string{"dp_id", "vlan"}),
		VLANNeighbors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vlan_neighbors",
			Help: "Number of resolved ARP/ND neighbors on a VLAN",
		}, []string{"dp_id", "vlan", "ipv"}),
		LearnedMACs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "learned_macs",
			Help: "Learned MAC address, encoded as a gauge value, at a dense per-port index",
		}, []string{"dp_id", "vlan", "port", "n"}),
		PortLearnBans: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "port_learn_bans",
			Help: "Number of times learning was banned on a port",
		}, []string{"dp_id", "port"}),
	}
}

// Collectors returns every metric family, for registration with a
// prometheus.Registerer.
func (f *Faucet) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		f.ConfigDPName, f.ConfigTableNames, f.VLANHostsLearned,
		f.VLANLearnBans, f.VLANNeighbors, f.LearnedMACs, f.PortLearnBans,
	}
}

func dpIDHex(dpID uint64) string {
	return fmt.Sprintf("%016x", dpID)
}

func (f *Faucet) SetConfigDPName(dpID uint64, name string) {
	f.ConfigDPName.WithLabelValues(dpIDHex(dpID), name).Set(1)
}

func (f *Faucet) SetConfigTableName(dpID uint64, tableID ofp13.Table, name string) {
	f.ConfigTableNames.WithLabelValues(dpIDHex(dpID), name).Set(float64(tableID))
}

// ResetLearnedMACs clears every learned_macs sample for dpID so a
// caller can repopulate a dense index without stale entries lingering,
// mirroring valve.py's update_metrics clear-then-set pattern.
func (f *Faucet) ResetLearnedMACs(dpID uint64) {
	f.LearnedMACs.DeletePartialMatch(prometheus.Labels{"dp_id": dpIDHex(dpID)})
}

func (f *Faucet) SetLearnedMAC(dpID uint64, vid int, port uint32, index int, mac net.HardwareAddr) {
	f.LearnedMACs.WithLabelValues(
		dpIDHex(dpID), fmt.Sprintf("%d", vid), fmt.Sprintf("%d", port), fmt.Sprintf("%d", index),
	).Set(float64(macToUint64(mac)))
}

func (f *Faucet) SetVLANHostsLearned(dpID uint64, vid int, n int) {
	f.VLANHostsLearned.WithLabelValues(dpIDHex(dpID), fmt.Sprintf("%d", vid)).Set(float64(n))
}

func (f *Faucet) SetVLANLearnBans(dpID uint64, vid int, n int) {
	f.VLANLearnBans.WithLabelValues(dpIDHex(dpID), fmt.Sprintf("%d", vid)).Set(float64(n))
}

func (f *Faucet) SetVLANNeighbors(dpID uint64, vid int, ipVersion int, n int) {
	f.VLANNeighbors.WithLabelValues(dpIDHex(dpID), fmt.Sprintf("%d", vid), fmt.Sprintf("%d", ipVersion)).Set(float64(n))
}

func (f *Faucet) SetPortLearnBans(dpID uint64, port uint32, n int) {
	f.PortLearnBans.WithLabelValues(dpIDHex(dpID), fmt.Sprintf("%d", port)).Set(float64(n))
}

// macToUint64 packs a 6-byte MAC into the low 48 bits of a uint64 so it
// can ride a Prometheus gauge value, mirroring how valve.py exports a
// MAC as the metric's sample value rather than a label (labels are
// expensive at hardware MAC cardinality).
func macToUint64(mac net.HardwareAddr) uint64 {
	var v uint64
	for _, b := range mac {
		v = v<<8 | uint64(b)
	}
	return v
}
