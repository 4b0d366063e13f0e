package main

import (
	"os"

	"github.com/robert-malhotra/go-lh5/cmd/lh5conv/command"

	"github.com/jessevdk/go-flags"
)

const (
	name = "lh5conv"
)

var (
	version = "undefined"
	build   = "undefined"
)

func main() {
	parser := flags.NewNamedParser(name, flags.Default)

	parser.AddCommand("to-lh5", command.ToLH5Description, command.ToLH5Help,
		&command.ToLH5{})

	parser.AddCommand("from-lh5", command.FromLH5Description, command.FromLH5Help,
		&command.FromLH5{})

	parser.AddCommand("inspect", command.InspectDescription, command.InspectHelp,
		&command.Inspect{})

	parser.AddCommand("version", command.VersionDescription, command.VersionHelp,
		&command.Version{
			Name:    name,
			Version: version,
			Build:   build,
		})

	_, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrCommandRequired {
			parser.WriteHelp(os.Stdout)
		}

		os.Exit(1)
	}
}
