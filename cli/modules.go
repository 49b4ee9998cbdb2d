package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/streamingfast/substreams-poll/manifest"
	"github.com/streamingfast/substreams-poll/schema"
)

var modulesCmd = &cobra.Command{
	Use:          "modules [package.spkg]",
	Short:        "List the modules of a substreams package and the schema of their output",
	RunE:         runModules,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}

func runModules(cmd *cobra.Command, args []string) error {
	pkg, err := manifest.ReadPackage(args[0])
	if err != nil {
		return err
	}

	modules, err := manifest.NewModules(pkg)
	if err != nil {
		return err
	}
	index := schema.NewIndex(modules, pkg.GetProtoFiles())

	out := cmd.OutOrStdout()
	for _, meta := range pkg.GetPackageMeta() {
		fmt.Fprintf(out, "Package: %s %s\n", meta.GetName(), meta.GetVersion())
	}

	for _, mod := range modules.All() {
		fmt.Fprintf(out, "\n%s (%s)\n", mod.Name, mod.Kind)
		fmt.Fprintf(out, "  initial block: %d\n", mod.InitialBlock)
		fmt.Fprintf(out, "  output type:   %s\n", mod.OutputType)

		ref, err := index.ResolveOutputType(mod.Name)
		if err != nil {
			return err
		}
		if ref != nil {
			fmt.Fprintf(out, "  schema:        %s\n", ref)
		} else {
			fmt.Fprintf(out, "  schema:        none, heuristic decoding\n")
		}

		if len(mod.Inputs) > 0 {
			fmt.Fprintf(out, "  inputs:        %s\n", strings.Join(mod.Inputs, ", "))
		}

		ancestors, err := modules.Graph().AncestorsOf(mod.Name)
		if err != nil {
			return fmt.Errorf("module %q ancestors: %w", mod.Name, err)
		}
		if len(ancestors) > 0 {
			var names []string
			for _, ancestor := range ancestors {
				names = append(names, ancestor.Name)
			}
			fmt.Fprintf(out, "  depends on:    %s\n", strings.Join(names, ", "))
		}
	}

	return nil
}
