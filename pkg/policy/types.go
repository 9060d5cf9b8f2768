package policy

import (
	"sort"
)

// GatePackage is the Rego package every admission policy must declare.
// The deny sets of all modules in the package are combined.
const GatePackage = "badges.gate"

// Policy represents an admission rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Source is the file the policy was read from. Empty for built-ins.
	Source string `json:"source,omitempty"`

	// Builtin marks policies shipped with the binary.
	Builtin bool `json:"builtin"`
}

// Capabilities records which execution capabilities are present on this
// machine, keyed by capability name ("cli", "browser").
type Capabilities map[string]bool

// Has reports whether the capability is available.
func (c Capabilities) Has(name string) bool {
	return c[name]
}

// Names returns the available capabilities in sorted order.
func (c Capabilities) Names() []string {
	var out []string
	for name, ok := range c {
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Input is the document evaluated by admission policies.
type Input struct {
	Account      string          `json:"account"`
	Handler      string          `json:"handler"`
	Phase        int             `json:"phase"`
	Targets      []string        `json:"targets"`
	Requires     []string        `json:"requires"`
	NeedsAccount bool            `json:"needs_account"`
	Capabilities map[string]bool `json:"capabilities"`
}
