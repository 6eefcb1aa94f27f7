package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"swarmlog/internal/app"
)

// globalOptions are the flags shared by every command
type globalOptions struct {
	configPath string
	verbose    bool
	workers    int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:   "swarmlog",
		Short: "Formation flight log analyzer",
		Long: `Formation flight log analyzer for swarm simulation runs.

Decodes the binary aircraft, formation-center and message logs a simulator
writes per run, joins them on time and computes formation-quality metrics
for every run directory below a root.

Example usage:
  swarmlog decode ./experiments
  swarmlog metrics ./experiments --out results.csv --archive
  swarmlog messages ./run1/msgData_001.dat --ids 1,2,3`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().IntVarP(&opts.workers, "workers", "w", app.DefaultWorkers, "Run directories processed in parallel")

	rootCmd.AddCommand(
		newDecodeCommand(&opts),
		newMetricsCommand(&opts),
		newMessagesCommand(&opts),
		newVersionCommand(),
	)
	return rootCmd
}

// loadConfig layers command line flags over the configuration file and
// environment
func loadConfig(cmd *cobra.Command, opts *globalOptions) (app.Config, error) {
	config, err := app.LoadConfig(opts.configPath)
	if err != nil {
		return config, err
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		config.Verbose = opts.verbose
	}
	if flags.Changed("workers") {
		config.Workers = opts.workers
	}
	return config, nil
}

func newDecodeCommand(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "decode <root>",
		Short: "Decode run logs into CSV tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			config.Force = force

			application := app.NewApplication(config)
			application.HandleSignals()
			defer application.Shutdown()

			_, err = application.Decode(args[0])
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Decode again even when CSV tables exist")
	return cmd
}

func newMetricsCommand(opts *globalOptions) *cobra.Command {
	var (
		force    bool
		names    []string
		out      string
		archive  bool
		database string
	)

	cmd := &cobra.Command{
		Use:   "metrics <root>",
		Short: "Compute formation metrics for every run directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			config.Force = force
			if cmd.Flags().Changed("metrics") {
				config.Metrics = names
			}
			if cmd.Flags().Changed("db") {
				config.Database = database
			}
			if err := config.Validate(); err != nil {
				return err
			}

			w, closeOut, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			defer closeOut()

			application := app.NewApplication(config)
			application.HandleSignals()
			defer application.Shutdown()

			b, err := application.Metrics(args[0], w, archive)
			if err != nil {
				return err
			}
			if failed := b.Failed(); failed > 0 {
				application.Logger().WithField("failed", failed).Warn("Some runs failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Decode again even when CSV tables exist")
	cmd.Flags().StringSliceVarP(&names, "metrics", "m", nil, "Metric and parameter columns (default all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Result CSV file (default stdout)")
	cmd.Flags().BoolVar(&archive, "archive", false, "Keep a copy of the results in the results directory")
	cmd.Flags().StringVar(&database, "db", "", "SQLite database to store the batch in")
	return cmd
}

func newMessagesCommand(opts *globalOptions) *cobra.Command {
	var (
		start, end float64
		ids        string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "messages <file>",
		Short: "Query a message log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			participants, err := parseIDs(ids)
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			defer closeOut()

			application := app.NewApplication(config)
			defer application.Shutdown()

			return application.Messages(args[0], app.MessageOptions{
				Start:    start,
				End:      end,
				HasStart: cmd.Flags().Changed("start"),
				HasEnd:   cmd.Flags().Changed("end"),
				IDs:      participants,
			}, w)
		},
	}

	cmd.Flags().Float64Var(&start, "start", 0, "Start of the time window (default first message)")
	cmd.Flags().Float64Var(&end, "end", 0, "End of the time window (default last message)")
	cmd.Flags().StringVar(&ids, "ids", "", "Comma separated participant ids (default all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output CSV file (default stdout)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowVersion(cmd.OutOrStdout())
		},
	}
}

// openOutput returns the file at path, or the command output when path is
// empty
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, func() { file.Close() }, nil
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid participant id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
