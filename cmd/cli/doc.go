// Package cli constructs the periodic-audit command-line interface. It wires
// the Cobra command hierarchy, the configuration loader and structured logging,
// then assembles one audit cycle from the internal packages.
package cli
