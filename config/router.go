package config

// Router groups a set of VLANs for inter-VLAN routing, mirroring
// valve.py's dp.routers map. It is carried as configuration only: the
// valve package does not read DP.Routers, and its route managers
// install VIP/FIB flows for every VLAN with configured VIPs and resolve
// gateways and advertise on every VLAN of the DP.
type Router struct {
	Name string
	// VLANs are the VIDs this router joins.
	VLANs []int

	// IPv4ICMPRateLimit/IPv6ICMPRateLimit are per-second limits on
	// control-plane ICMP replies, zero meaning unlimited. No route
	// manager reads them; control-plane replies are not rate-limited.
	IPv4ICMPRateLimit uint32
	IPv6ICMPRateLimit uint32
}

// StackLinks describes the physical stacking topology a DP belongs to:
// which port connects to which neighboring DP, used to compute the
// shortest path to the root DP for loop-free flooding.
type StackLinks struct {
	RootDPName string
	// PortsByPeer maps a neighboring DP's name to the local port
	// number cabled to it.
	PortsByPeer map[string]uint32
}
