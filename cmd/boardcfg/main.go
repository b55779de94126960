// Command boardcfg resolves layered board descriptors into build-time
// hardware configuration.
package main

import "github.com/mesh-intelligence/boardcfg/internal/cli"

func main() {
	cli.Execute()
}
