package scenario

import (
	"errors"
	"fmt"
)

// Scenario names, in the order "all" runs them
const (
	Sep31                = "sep31_flow"
	Sep31WithSep38       = "sep31_flow_with_sep38"
	Sep38CreateQuoteName = "sep38_create_quote"
	OmnibusAllowlistName = "omnibus_allowlist"

	// All selects every scenario
	All = "all"
)

// ErrUnknownScenario is returned for names not in Names()
var ErrUnknownScenario = errors.New("unknown test")

// Names returns the scenario names in their fixed run order
func Names() []string {
	return []string{Sep31, Sep31WithSep38, Sep38CreateQuoteName, OmnibusAllowlistName}
}

func known(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// ParseNames validates a requested scenario list before anything runs. An
// empty list or a leading "all" selects every scenario.
func ParseNames(requested []string) ([]string, error) {
	if len(requested) == 0 || requested[0] == All {
		return Names(), nil
	}

	names := make([]string, 0, len(requested))
	for _, name := range requested {
		if !known(name) {
			return nil, fmt.Errorf("%w %s (available: %v)", ErrUnknownScenario, name, Names())
		}
		names = append(names, name)
	}
	return names, nil
}
