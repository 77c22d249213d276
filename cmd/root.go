package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/simkernel/sim/scenario"
)

var (
	scenarioPath string  // Path to the YAML scenario
	seed         int64   // Overrides the scenario seed when set
	until        float64 // Stop time; overrides the scenario until when set
	traceLevel   string  // Overrides the scenario trace level when set
	replications int     // Number of independent replications
	resultsPath  string  // Optional JSON output of the reports
	logLevel     string  // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "simkernel",
	Short: "Discrete-event process simulation kernel",
}

// runCmd loads a scenario and runs it, overriding scenario fields from flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a YAML scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		s, err := scenario.Load(scenarioPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		applyOverrides(cmd, s)

		logrus.Infof("Starting scenario %q with seed=%d, replications=%d", s.Name, s.Seed, replications)
		start := time.Now()
		reports, runErr := scenario.RunReplications(context.Background(), s, replications)
		for _, rep := range reports {
			if rep != nil {
				rep.Print(os.Stdout)
			}
		}
		if resultsPath != "" {
			if err := writeResults(resultsPath, reports); err != nil {
				logrus.Fatalf("writing results: %v", err)
			}
		}
		if runErr != nil {
			logrus.Fatalf("Scenario aborted: %v", runErr)
		}
		logrus.Infof("Scenario complete in %v.", time.Since(start))
	},
}

// validateCmd checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a YAML scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if err := validateScenario(cmd.OutOrStdout(), scenarioPath); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// applyOverrides copies flags the user set explicitly onto the scenario.
func applyOverrides(cmd *cobra.Command, s *scenario.Scenario) {
	if cmd.Flags().Changed("seed") {
		s.Seed = seed
	}
	if cmd.Flags().Changed("until") {
		u := until
		s.Until = &u
	}
	if cmd.Flags().Changed("trace") {
		s.Trace = traceLevel
	}
}

func validateScenario(w io.Writer, path string) error {
	s, err := scenario.Load(path)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	fmt.Fprintf(w, "%s: ok (%d processes)\n", path, len(s.Processes))
	return nil
}

func writeResults(path string, reports []*scenario.Report) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to the YAML scenario")
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
		_ = c.MarkFlagRequired("scenario")
	}

	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the random streams (overrides the scenario seed)")
	runCmd.Flags().Float64Var(&until, "until", math.Inf(1), "Stop the run at this simulated time (overrides the scenario until)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Trace level (none, events, processes)")
	runCmd.Flags().IntVar(&replications, "replications", 1, "Number of independent replications, seeded seed+i")
	runCmd.Flags().StringVar(&resultsPath, "results-path", "", "Write the reports as JSON to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
