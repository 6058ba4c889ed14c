// internal/esign/builtin.go
package esign

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source records how a profile was resolved.
type Source string

const (
	SourceBuiltin  Source = "builtin"
	SourceCustom   Source = "custom"
	SourceInferred Source = "inferred"
)

// Tier names the builtin role tiers, strongest first.
type Tier string

const (
	TierAdmin    Tier = "admin"
	TierManager  Tier = "manager"
	TierStaff    Tier = "staff"
	TierExternal Tier = "external"
)

// tierOrder is the fixed fallback priority: admin-like beats manager-like
// beats staff-like beats external-like.
var tierOrder = []Tier{TierAdmin, TierManager, TierStaff, TierExternal}

// Profile is the resolved capability set for a role label.
type Profile struct {
	Label        string
	Source       Source
	Tier         Tier
	Capabilities CapabilitySet
}

// BuiltinTable is the fixed, versioned mapping of known role names to
// capability sets. Each tier is a strict subset of the one above it, which
// makes the never-escalate inference invariant hold by construction.
type BuiltinTable struct {
	Version  int
	profiles map[Tier]Profile
}

// defaultBuiltins is version 1 of the table.
func defaultBuiltins() *BuiltinTable {
	t := &BuiltinTable{Version: 1, profiles: map[Tier]Profile{}}
	t.set(TierAdmin, NewCapabilitySet(AllCapabilities...))
	t.set(TierManager, NewCapabilitySet(
		CapCreate, CapSend, CapView, CapCancel, CapSign, CapDownload,
		CapApprove, CapWorkflowCreate, CapBulkSend, CapAuditView,
	))
	t.set(TierStaff, NewCapabilitySet(CapCreate, CapSend, CapView, CapSign, CapDownload))
	t.set(TierExternal, NewCapabilitySet(CapView, CapSign, CapDownload))
	return t
}

func (t *BuiltinTable) set(tier Tier, caps CapabilitySet) {
	t.profiles[tier] = Profile{Label: string(tier), Source: SourceBuiltin, Tier: tier, Capabilities: caps}
}

// Lookup finds a builtin profile by exact (case-insensitive) label match.
func (t *BuiltinTable) Lookup(label string) (Profile, bool) {
	p, ok := t.profiles[Tier(strings.ToLower(label))]
	return p, ok
}

// ForTier returns the profile of a tier.
func (t *BuiltinTable) ForTier(tier Tier) Profile {
	return t.profiles[tier]
}

// builtinsDoc is the YAML shape of a table override file.
type builtinsDoc struct {
	Version  int                 `yaml:"version"`
	Profiles map[string][]string `yaml:"profiles"`
}

// LoadBuiltins returns the default table, or one parsed from the given
// YAML file when set. The file must define all four tiers and respect the
// tier-ordering containment rule.
func LoadBuiltins(path string) (*BuiltinTable, error) {
	if path == "" {
		return defaultBuiltins(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("esign: read builtin profiles: %w", err)
	}
	var doc builtinsDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("esign: parse builtin profiles: %w", err)
	}
	t := &BuiltinTable{Version: doc.Version, profiles: map[Tier]Profile{}}
	for _, tier := range tierOrder {
		names, ok := doc.Profiles[string(tier)]
		if !ok {
			return nil, fmt.Errorf("esign: builtin profiles file missing tier %q", tier)
		}
		caps := CapabilitySet{}
		for _, n := range names {
			c, err := ParseCapability(n)
			if err != nil {
				return nil, err
			}
			caps[c] = struct{}{}
		}
		t.set(tier, caps)
	}
	// Weaker tiers may never grant more than stronger ones.
	for i := 1; i < len(tierOrder); i++ {
		lower := t.profiles[tierOrder[i]].Capabilities
		upper := t.profiles[tierOrder[i-1]].Capabilities
		if !lower.SubsetOf(upper) {
			return nil, fmt.Errorf("esign: tier %s is not a subset of %s", tierOrder[i], tierOrder[i-1])
		}
	}
	return t, nil
}
