// Package policy provides the Open Policy Agent (OPA) admission gate.
//
// Before a handler runs, the orchestrator asks the gate whether it may. The
// gate evaluates every module in the badges.gate Rego package against an
// input document describing the handler and the machine:
//
//	{
//	    "account":      "jane",
//	    "handler":      "Dark theme",
//	    "phase":        4,
//	    "targets":      ["vampire"],
//	    "requires":     ["browser"],
//	    "capabilities": {"cli": true, "browser": false}
//	}
//
// Each rule adds messages to the deny set. An empty set admits the handler;
// otherwise the sorted messages become the denial reason and the handler's
// targets are recorded as skipped.
//
// # Built-in Policies
//
//   - capabilities: denies when a required capability is missing
//   - account: denies browser handlers when no account is configured
//
// # Operator Policies
//
// Additional .rego files listed under "policies" in badges.cue are compiled
// together with the built-ins:
//
//	# No streak handlers from CI.
//	package badges.gate
//
//	deny contains "streaks run from a workstation only" if {
//	    input.phase == 5
//	}
package policy
