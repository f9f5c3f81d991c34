package main

import (
	"os"

	crosswirecmder "github.com/crosswireco/crosswire/cmd/crosswire"
)

func main() {
	cmd := crosswirecmder.NewCrosswireCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
