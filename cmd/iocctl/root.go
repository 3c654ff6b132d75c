package main

import (
	"errors"
	"fmt"

	"github.com/centraunit/ioc"
	"github.com/centraunit/ioc/config"
	"github.com/centraunit/ioc/manifest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes for CLI commands.
const (
	// ExitCodeError indicates a general error (bad manifest, invalid arguments).
	ExitCodeError = 1
	// ExitCodeInvalid indicates that the manifest loaded but some components
	// can never be resolved.
	ExitCodeInvalid = 2
)

// errInvalidTree is returned by validate when problems were reported.
var errInvalidTree = errors.New("kernel tree has unresolvable components")

func exitCode(err error) int {
	if errors.Is(err, errInvalidTree) {
		return ExitCodeInvalid
	}
	return ExitCodeError
}

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "iocctl",
		Short: "Inspect component manifests and the kernel trees they describe",
		Long: `iocctl installs a component manifest into an in-memory kernel tree
without constructing any component, then reports the resolution state of
every handler.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "environment file read before the process environment")

	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newGraphCmd(opts))
	return cmd
}

// loadTree reads the configuration and installs the manifest, given as an
// argument or through IOC_MANIFEST, into a fresh kernel.
func (o *rootOptions) loadTree(args []string) (*manifest.Tree, func(), error) {
	cfg := config.Load(o.envFile)
	path := cfg.Manifest
	if len(args) > 0 {
		path = args[0]
	}

	m, err := manifest.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if m.Kernel != "" {
		cfg.KernelName = m.Kernel
	}
	// The tree lives for one command, so metrics go to a private registry.
	opts, err := cfg.KernelOptions(prometheus.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	root := ioc.NewKernel(opts...)
	logger := root.Logger()
	cleanup := func() {
		if err := root.Dispose(); err != nil {
			logger.Warn("disposing kernel tree", zap.Error(err))
		}
		_ = logger.Sync()
	}

	tree, err := manifest.Install(root, m, nil, opts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("installing %s: %w", path, err)
	}
	return tree, cleanup, nil
}
