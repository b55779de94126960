// Package boardcfg holds release metadata for the boardcfg tool.
package boardcfg

// Version is the boardcfg release version.
const Version = "0.1.0"

// ModulePath is the Go module path of boardcfg.
const ModulePath = "github.com/mesh-intelligence/boardcfg"
