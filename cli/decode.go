package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/streamingfast/substreams-poll/manifest"
	"github.com/streamingfast/substreams-poll/schema"
)

var decodeCmd = &cobra.Command{
	Use:          "decode [package.spkg] [module] [base64_value]",
	Short:        "Decode a base64 encoded output value of a module",
	RunE:         runDecode,
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
}

func init() {
	decodeCmd.Flags().String("key", "", "Store key of the value, used by the heuristic decoder")

	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	pkg, err := manifest.ReadPackage(args[0])
	if err != nil {
		return err
	}

	modules, err := manifest.NewModules(pkg)
	if err != nil {
		return err
	}

	ref, err := schema.NewIndex(modules, pkg.GetProtoFiles()).ResolveOutputType(args[1])
	if err != nil {
		return err
	}

	fields, err := schema.DecodeBase64(args[2], viper.GetString("key"), ref)
	if err != nil {
		return fmt.Errorf("decoding value of module %q: %w", args[1], err)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(fields)
}
