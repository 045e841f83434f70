package valve

import "errors"

// ErrConfigContradiction is the typed initialization error
// addFaucetVIP raises when a VLAN combines stacking with L3 routing, a
// combination valve.py's _add_faucet_vips never supports (a stacked
// DP's edge ports don't own a routable VIP), mirroring spec.md §7's
// ConfigContradiction entry.
var ErrConfigContradiction = errors.New("faucetgo/valve: stacking and routing are mutually exclusive on a VLAN")
