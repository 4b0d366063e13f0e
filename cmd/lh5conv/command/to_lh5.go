package command

import (
	"github.com/robert-malhotra/go-lh5/internal/config"
	"github.com/robert-malhotra/go-lh5/internal/ipc"
	"github.com/robert-malhotra/go-lh5/lh5"
)

const (
	ToLH5Description = "Convert remage HDF5 output files in-place to LH5"
	ToLH5Help        = ToLH5Description + "\n\n" +
		"Every ntuple of the ntuple group is turned into an LH5 table. With\n" +
		"--uid-map, tables are also linked by detector uid in the __by_uid__\n" +
		"group. Files are only written when all changes succeeded in memory."
)

// ToLH5 represents the `to-lh5` command.
type ToLH5 struct {
	ConversionFlags

	UIDMap    string `long:"uid-map" description:"YAML file mapping detector uids to ntuple names"`
	UIDFormat string `long:"uid-format" default:"det%05d" description:"Format of the uid link names"`
	IPCFd     int    `long:"ipc-fd" default:"-1" description:"File descriptor of the IPC pipe to the parent process"`
}

// Execute converts every input file, it honors the go-flags.Commander
// interface.
func (c *ToLH5) Execute(args []string) error {
	if err := c.setup(); err != nil {
		return err
	}

	opts := c.options()
	opts.LinkFormat = c.UIDFormat
	if pipe := ipc.OpenFd(c.IPCFd); pipe != nil {
		opts.Notifier = pipe
	}

	if c.UIDMap != "" {
		uids, err := config.LoadUIDMap(c.UIDMap)
		if err != nil {
			return err
		}
		opts.UIDMap = uids
	}

	for _, file := range c.Args.Files {
		if !c.exists(file) {
			continue
		}
		lh5.ConvertToLH5(file, opts)
	}

	return c.finish()
}
