// internal/esign/classifier.go
package esign

import "strings"

// keyword families for fallback classification, checked in tier priority
// order. Case-insensitive substring match; the first matching family wins.
// An explicit, ordered rule list rather than string checks scattered
// through call sites, so every decision is reproducible and auditable.
var families = []struct {
	tier     Tier
	keywords []string
}{
	{TierAdmin, []string{"admin", "administrator", "owner", "root", "superuser"}},
	{TierManager, []string{"manager", "lead", "supervisor", "head", "director"}},
	{TierStaff, []string{"member", "staff", "employee", "agent", "user"}},
	{TierExternal, []string{"external", "customer", "client", "guest", "viewer", "signer"}},
}

// Classify assigns the nearest builtin tier to an unrecognized role label.
// Deterministic: the same label always yields the same tier. Labels that
// match no family land on the most restrictive tier.
func Classify(label string) Tier {
	l := strings.ToLower(label)
	for _, f := range families {
		for _, kw := range f.keywords {
			if strings.Contains(l, kw) {
				return f.tier
			}
		}
	}
	return TierExternal
}
