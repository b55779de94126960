// Package types defines the configuration data model shared by the boardcfg
// engine: symbols and their kinds, layers and layer stacks, the resolved symbol
// table, the sealed ResolvedConfig, and the diagnostic taxonomy reported by
// every stage.
package types
