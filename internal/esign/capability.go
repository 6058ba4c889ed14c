package esign

import (
	"fmt"
	"sort"
)

// Capability is one discrete permitted action on the e-signature surface.
type Capability string

const (
	CapCreate         Capability = "create"
	CapSend           Capability = "send"
	CapView           Capability = "view"
	CapCancel         Capability = "cancel"
	CapSign           Capability = "sign"
	CapDownload       Capability = "download"
	CapManage         Capability = "manage"
	CapApprove        Capability = "approve"
	CapWorkflowCreate Capability = "workflow_create"
	CapWorkflowManage Capability = "workflow_manage"
	CapBulkSend       Capability = "bulk_send"
	CapAuditView      Capability = "audit_view"
)

// AllCapabilities is the closed enumeration; anything else is rejected at
// the boundary.
var AllCapabilities = []Capability{
	CapCreate, CapSend, CapView, CapCancel, CapSign, CapDownload,
	CapManage, CapApprove, CapWorkflowCreate, CapWorkflowManage,
	CapBulkSend, CapAuditView,
}

// ParseCapability validates a capability name from the wire.
func ParseCapability(s string) (Capability, error) {
	for _, c := range AllCapabilities {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("esign: unknown capability %q", s)
}

// CapabilitySet is an immutable-by-convention set of capabilities.
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// SubsetOf reports whether every capability in s is also in other.
func (s CapabilitySet) SubsetOf(other CapabilitySet) bool {
	for c := range s {
		if !other.Has(c) {
			return false
		}
	}
	return true
}

func (s CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Sorted returns the capabilities as a stable string slice for responses
// and persistence.
func (s CapabilitySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}
