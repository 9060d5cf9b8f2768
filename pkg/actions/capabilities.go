package actions

import (
	"os/exec"

	"github.com/badgecollector/badgecollector/pkg/engine"
	"github.com/badgecollector/badgecollector/pkg/policy"
)

var lookPath = exec.LookPath

// DetectCapabilities checks this machine for the CLI binary and, when
// browser automation is enabled, a Chrome binary.
func DetectCapabilities(cliBinary string, browserEnabled bool, browserBin string) policy.Capabilities {
	caps := policy.Capabilities{
		engine.CapabilityCLI:     false,
		engine.CapabilityBrowser: false,
	}

	if cliBinary != "" {
		if _, err := lookPath(cliBinary); err == nil {
			caps[engine.CapabilityCLI] = true
		}
	}

	if browserEnabled {
		_, caps[engine.CapabilityBrowser] = LookBrowser(browserBin)
	}

	return caps
}
