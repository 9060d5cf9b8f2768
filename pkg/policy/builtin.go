package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		capabilityPolicy(),
		accountPolicy(),
	}
}

// capabilityPolicy denies handlers whose required capabilities are missing.
func capabilityPolicy() Policy {
	return Policy{
		Name:        "capabilities",
		Description: "Denies handlers that require a capability this machine does not have",
		Builtin:     true,
		Rego: `package badges.gate

import rego.v1

deny contains msg if {
	some cap in input.requires
	not input.capabilities[cap]
	msg := sprintf("capability %q unavailable", [cap])
}
`,
	}
}

// accountPolicy denies browser handlers and handlers that declare
// needs_account when no account is known, since profile pages and pushed
// resources are addressed by username.
func accountPolicy() Policy {
	return Policy{
		Name:        "account",
		Description: "Denies handlers that need an account when none is configured",
		Builtin:     true,
		Rego: `package badges.gate

import rego.v1

needs_account if "browser" in input.requires

needs_account if input.needs_account

deny contains "no account configured" if {
	needs_account
	input.account == ""
}
`,
	}
}
