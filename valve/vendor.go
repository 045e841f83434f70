package valve

import (
	"fmt"

	"github.com/netrack/openflow/ofp13"

	"github.com/faucetgo/valve/ofutil"
)

// TableFeature is one entry of a pipeline configuration file: a table's
// name and the OXM fields it declares support for. Loading the file
// itself is out of scope (spec.md §1) — a TableFeaturesLoader supplies
// this already-parsed.
type TableFeature struct {
	Name        string
	MatchFields []ofp13.OXMField
}

// TableFeaturesLoader reads a pipeline configuration file and returns
// its table list, mirroring valve.py's table-features JSON loader. The
// Valve never touches the filesystem; callers inject this.
type TableFeaturesLoader func(path string) ([]TableFeature, error)

// matchFieldSet builds a membership set for an unordered equality
// check between a loaded pipeline's declared fields and a table's
// configured RestrictedMatchTypes.
func matchFieldSet(fields []ofp13.OXMField) map[ofp13.OXMField]bool {
	set := make(map[ofp13.OXMField]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func matchFieldsEqual(a, b []ofp13.OXMField) bool {
	if len(a) != len(b) {
		return false
	}
	setA := matchFieldSet(a)
	for _, f := range b {
		if !setA[f] {
			return false
		}
	}
	return true
}

// switchFeatures loads pipelinePath via load, emits a table-features
// message per table, and logs (non-fatal) any table whose declared
// match fields disagree with the table's configured
// RestrictedMatchTypes — the PipelineMismatch case of spec.md §7.
// Mirrors valve.py's TfmValve.switch_features.
func (v *Valve) switchFeatures(pipelinePath string, load TableFeaturesLoader) []ofutil.Message {
	features, err := load(pipelinePath)
	if err != nil {
		v.Logger.Info(fmt.Sprintf("failed to load pipeline %q: %v", pipelinePath, err))
		return nil
	}

	byName := make(map[string]TableFeature, len(features))
	for _, f := range features {
		byName[f.Name] = f
	}

	var msgs []ofutil.Message
	for _, t := range v.DP.Tables {
		msgs = append(msgs, ofutil.TableFeaturesMsg(t.ID, t.Name))

		f, ok := byName[t.Name]
		if !ok {
			continue
		}
		if t.RestrictedMatchTypes != nil && !matchFieldsEqual(f.MatchFields, t.RestrictedMatchTypes) {
			v.Logger.Info(fmt.Sprintf(
				"pipeline table %q declares match fields %v, configured restricted_match_types are %v",
				t.Name, f.MatchFields, t.RestrictedMatchTypes))
		}
	}
	return msgs
}

// TfmValve is the "GenericTFM" hardware variant: on switch_features it
// loads a pipeline file and emits table-features messages, validating
// declared match types against the configured pipeline. Mirrors
// valve.py's TfmValve.
type TfmValve struct {
	*Valve
	PipelinePath string
	Load         TableFeaturesLoader
}

// SwitchFeatures emits this variant's table-features handshake,
// mirroring valve.py's TfmValve.switch_features.
func (tv *TfmValve) SwitchFeatures() []ofutil.Message {
	return tv.switchFeatures(tv.PipelinePath, tv.Load)
}

// ArubaValve is the Aruba hardware variant: same table-features
// handshake as TfmValve against a different pipeline file, plus
// DEC_TTL disabled because Aruba silicon can't decrement routed
// frames' TTL. Mirrors valve.py's ArubaValve.
type ArubaValve struct {
	*Valve
	PipelinePath string
	Load         TableFeaturesLoader
}

// SwitchFeatures emits this variant's table-features handshake,
// mirroring valve.py's ArubaValve.switch_features.
func (av *ArubaValve) SwitchFeatures() []ofutil.Message {
	return av.switchFeatures(av.PipelinePath, av.Load)
}

// NewVendorValve maps a hardware string to a vendor variant, mirroring
// valve.py's VALVE_CLASSES/valve_factory. hardware values
// Allied-Telesis, Lagopus, Netronome, NoviFlow, "Open vSwitch", and
// ZodiacFX (and anything else unrecognized) get no variant — the
// caller proceeds with the plain *Valve and no switch_features hook.
// GenericTFM and Aruba get their respective variants, the latter also
// disabling DEC_TTL via SetDecTTL.
func NewVendorValve(hardware string, v *Valve, tfmPipeline, arubaPipeline string, load TableFeaturesLoader) interface{ SwitchFeatures() []ofutil.Message } {
	switch hardware {
	case "GenericTFM":
		return &TfmValve{Valve: v, PipelinePath: tfmPipeline, Load: load}
	case "Aruba":
		v.SetDecTTL(false)
		return &ArubaValve{Valve: v, PipelinePath: arubaPipeline, Load: load}
	default:
		return nil
	}
}
