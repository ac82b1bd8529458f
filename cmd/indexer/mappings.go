package main

import "github.com/chainspool/indexer/hostexports"

// newRegisteredMappings builds the registry of compiled-in Mapping
// implementations this binary ships with. A real deployment registers
// its own generated mapping package here; none ship by default.
func newRegisteredMappings() *hostexports.Registry {
	return hostexports.NewRegistry()
}
