package cmd

import (
	"fmt"

	"bookrate/internal/platform"
)

// PlatformsCmd represents the platforms listing command
type PlatformsCmd struct{}

func (p *PlatformsCmd) Run() error {
	for _, name := range platform.Names() {
		region := "domestic"
		if platform.IsForeign(name) {
			region = "foreign"
		}
		entry, _ := platform.Lookup(name)
		fmt.Fprintf(outputWriter, "%-12s %-8s %d-point scale\n", name, region, entry.Scale)
	}
	return nil
}
