package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/centraunit/ioc"
	"github.com/centraunit/ioc/manifest"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type graphOptions struct {
	*rootOptions
	output string
}

func newGraphCmd(root *rootOptions) *cobra.Command {
	opts := &graphOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "graph [manifest]",
		Short: "Print every handler of the kernel tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, cleanup, err := opts.loadTree(args)
			if err != nil {
				return err
			}
			defer cleanup()

			switch opts.output {
			case "table":
				renderTable(cmd.OutOrStdout(), tree)
				return nil
			case "yaml":
				return renderYAML(cmd.OutOrStdout(), tree)
			default:
				return fmt.Errorf("unknown output format %q", opts.output)
			}
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table or yaml")
	return cmd
}

func renderTable(w io.Writer, tree *manifest.Tree) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"KERNEL", "KEY", "LIFESTYLE", "STATE", "SERVICES", "MISSING"})

	tree.Walk(func(depth int, k *ioc.Kernel) {
		kernel := strings.Repeat("  ", depth) + k.Name()
		for _, info := range k.Graph() {
			state := text.FgGreen.Sprint(info.State)
			if info.State != ioc.Valid.String() {
				state = text.FgRed.Sprint(info.State)
			}
			t.AppendRow(table.Row{
				kernel,
				info.Key,
				info.Lifestyle,
				state,
				strings.Join(info.Services, ", "),
				strings.Join(info.Missing, ", "),
			})
		}
	})
	t.Render()
}

// kernelGraph is the YAML form of one kernel of the tree.
type kernelGraph struct {
	Kernel   string         `yaml:"kernel"`
	Handlers []handlerGraph `yaml:"handlers"`
	Children []kernelGraph  `yaml:"children,omitempty"`
}

type handlerGraph struct {
	Key            string   `yaml:"key"`
	Implementation string   `yaml:"implementation"`
	Lifestyle      string   `yaml:"lifestyle"`
	State          string   `yaml:"state"`
	Services       []string `yaml:"services"`
	Dependencies   []string `yaml:"dependencies,omitempty"`
	Missing        []string `yaml:"missing,omitempty"`
}

func buildGraph(tree *manifest.Tree) kernelGraph {
	g := kernelGraph{Kernel: tree.Kernel.Name()}
	for _, info := range tree.Kernel.Graph() {
		g.Handlers = append(g.Handlers, handlerGraph{
			Key:            info.Key,
			Implementation: info.Implementation,
			Lifestyle:      info.Lifestyle,
			State:          info.State,
			Services:       info.Services,
			Dependencies:   info.Dependencies,
			Missing:        info.Missing,
		})
	}
	for _, c := range tree.Children {
		g.Children = append(g.Children, buildGraph(c))
	}
	return g
}

func renderYAML(w io.Writer, tree *manifest.Tree) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(buildGraph(tree)); err != nil {
		return err
	}
	return enc.Close()
}
