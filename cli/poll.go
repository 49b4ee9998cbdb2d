package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/streamingfast/substreams-poll/client"
	"github.com/streamingfast/substreams-poll/stream"
)

var pollCmd = &cobra.Command{
	Use:   "poll [package.spkg] [module...]",
	Short: "Poll map modules of a substreams package over a block range",
	Long: `Poll map modules of a substreams package over a block range and print
the aggregated result as JSON. The package and modules can also be provided
through the config file.`,
	RunE:         runPoll,
	SilenceUsage: true,
}

func init() {
	pollCmd.Flags().Int64P("start-block", "s", -1, "Start block of the polled range")
	pollCmd.Flags().Uint64P("stop-block", "t", 0, "Stop block (exclusive) of the polled range, 0 streams until cancelled")

	pollCmd.Flags().Bool("initial-snapshot", false, "Request the initial snapshot of the polled modules")
	pollCmd.Flags().Bool("first-result", false, "Return as soon as a module produced a non-empty batch")
	pollCmd.Flags().String("match", "", "Return the first batch having an item with the given field value, as 'field=value'")
	pollCmd.Flags().Bool("progress-driven", false, "Return a progress hint once the first module caught up past --highest-processed-block")
	pollCmd.Flags().Uint64("highest-processed-block", 0, "Highest block already processed by the caller")
	pollCmd.Flags().Uint64("catch-up-threshold", stream.DefaultCatchUpThreshold, "Blocks past --highest-processed-block before a progress hint is returned")
	pollCmd.Flags().Bool("strict", false, "Fail the poll on the first item that cannot be decoded")
	pollCmd.Flags().Bool("print-stores", false, "Include the store state rebuilt from store deltas in the output")

	pollCmd.Flags().String("endpoint", client.DefaultEndpoint, "Substreams gRPC endpoint")
	pollCmd.Flags().String("substreams-api-token-envvar", client.DefaultTokenEnvVar, "Name of variable containing the substreams authentication token (JWT)")
	pollCmd.Flags().BoolP("insecure", "k", false, "Skip certificate validation on gRPC connection")
	pollCmd.Flags().BoolP("plaintext", "p", false, "Establish gRPC connection in plaintext")

	rootCmd.AddCommand(pollCmd)
}

type pollOutput struct {
	*stream.Result
	Stores map[string]map[string]string `json:"stores,omitempty"`
}

func runPoll(cmd *cobra.Command, args []string) error {
	packagePath := viper.GetString("package")
	modules := viper.GetStringSlice("modules")
	if len(args) > 0 {
		packagePath = args[0]
	}
	if len(args) > 1 {
		modules = args[1:]
	}
	if packagePath == "" {
		return fmt.Errorf("no package given, pass it as first argument or through the config file")
	}

	opts, err := policyOptions()
	if err != nil {
		return err
	}

	c, err := client.New(&client.Config{
		PackagePath:  packagePath,
		Endpoint:     viper.GetString("endpoint"),
		Token:        os.Getenv(viper.GetString("substreams-api-token-envvar")),
		InsecureMode: viper.GetBool("insecure"),
		Plaintext:    viper.GetBool("plaintext"),
	})
	if err != nil {
		return fmt.Errorf("substreams client setup: %w", err)
	}
	defer c.Close()

	result, err := c.Poll(cmd.Context(), modules, viper.GetInt64("start-block"), viper.GetUint64("stop-block"), opts...)
	if err != nil {
		return fmt.Errorf("polling %s: %w", strings.Join(modules, ","), err)
	}

	out := &pollOutput{Result: result}
	if viper.GetBool("print-stores") {
		out.Stores = map[string]map[string]string{}
		for name, store := range result.Stores {
			out.Stores[name] = store.StringMap()
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func policyOptions() ([]stream.Option, error) {
	opts := []stream.Option{
		stream.WithInitialSnapshot(viper.GetBool("initial-snapshot")),
		stream.WithReturnFirstResult(viper.GetBool("first-result")),
		stream.WithProgressDriven(viper.GetBool("progress-driven")),
		stream.WithHighestProcessedBlock(viper.GetUint64("highest-processed-block")),
		stream.WithCatchUpThreshold(viper.GetUint64("catch-up-threshold")),
		stream.WithStrict(viper.GetBool("strict")),
	}

	if expr := viper.GetString("match"); expr != "" {
		match, err := parseMatch(expr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, stream.WithMatch(match))
	}

	return opts, nil
}

// parseMatch turns a 'field=value' expression into a predicate accepting
// batches with at least one item whose field renders to value.
func parseMatch(expr string) (stream.MatchFunc, error) {
	field, value, found := strings.Cut(expr, "=")
	field = strings.TrimSpace(field)
	if !found || field == "" {
		return nil, fmt.Errorf("invalid match expression %q, expected 'field=value'", expr)
	}

	return func(batch *stream.Batch) bool {
		for _, item := range batch.Items {
			v, ok := item.Fields[field]
			if !ok {
				continue
			}
			if fmt.Sprint(v) == value {
				return true
			}
		}
		return false
	}, nil
}
