package mock

import (
	"context"
	"log"

	"guto-paylink/internal/phone"
)

// MockNameLookup answers name lookups locally so the whole flow runs
// without the verification service.
type MockNameLookup struct {
	verbose bool
	names   map[string]string
}

func NewMockNameLookup(verbose bool) *MockNameLookup {
	return &MockNameLookup{
		verbose: verbose,
		names:   make(map[string]string),
	}
}

// Register seeds a canonical number with a display name.
func (m *MockNameLookup) Register(canonicalPhone, name string) {
	m.names[canonicalPhone] = name
}

func (m *MockNameLookup) LookupName(ctx context.Context, canonicalPhone string) (string, bool) {
	if name, ok := m.names[canonicalPhone]; ok {
		if m.verbose {
			log.Printf("[MOCK] Name lookup: %s -> %s", canonicalPhone, name)
		}
		return name, true
	}

	// Unseeded numbers get a synthetic name keyed on the carrier so the
	// standalone flow still shows a believable prefill.
	carrier := phone.Carrier(canonicalPhone)
	if carrier == "unknown" {
		if m.verbose {
			log.Printf("[MOCK] Name lookup miss for %s", canonicalPhone)
		}
		return "", false
	}
	name := "TEST ACCOUNT " + canonicalPhone[len(canonicalPhone)-4:]
	if m.verbose {
		log.Printf("[MOCK] Name lookup: %s -> %s (%s)", canonicalPhone, name, carrier)
	}
	return name, true
}
