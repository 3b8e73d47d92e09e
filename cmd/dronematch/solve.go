package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"dronematch/internal/logger"
	"dronematch/internal/model"
	"dronematch/internal/opt"
	"dronematch/internal/scenario"
)

var solveOpts struct {
	format     string
	output     string
	records    bool
	matchPath  string
	timeoutMs  int
	iterations int
}

var solveCmd = &cobra.Command{
	Use:   "solve <scenario.json>",
	Short: "Solve a scenario file and print the delivery board",
	Args:  cobra.ExactArgs(1),
	RunE:  solve,
}

func init() {
	f := solveCmd.Flags()
	f.StringVarP(&solveOpts.format, "format", "f", "json", "output format: json or yaml")
	f.StringVarP(&solveOpts.output, "output", "o", "", "write the result to a file instead of stdout")
	f.BoolVar(&solveOpts.records, "records", false, "include the monitor records")
	f.StringVar(&solveOpts.matchPath, "match-config", "", "match config file (yaml or json) replacing the service defaults")
	f.IntVar(&solveOpts.timeoutMs, "timeout-ms", -1, "override solver_timeout_ms")
	f.IntVar(&solveOpts.iterations, "iterations", -1, "override max_iterations")
	rootCmd.AddCommand(solveCmd)
}

// solveOutput is what solve prints.
type solveOutput struct {
	Status     string                   `json:"status" yaml:"status"`
	Objective  int64                    `json:"objective" yaml:"objective"`
	Iterations int                      `json:"iterations" yaml:"iterations"`
	TimedOut   bool                     `json:"timedOut" yaml:"timedOut"`
	Board      model.DroneDeliveryBoard `json:"board" yaml:"board"`
	Records    []opt.MonitorRecord      `json:"records,omitempty" yaml:"records,omitempty"`
}

func solve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if solveOpts.format != "json" && solveOpts.format != "yaml" {
		return fmt.Errorf("unsupported format %q", solveOpts.format)
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	base := cfg.Match
	if solveOpts.matchPath != "" {
		if base, err = opt.LoadMatchConfig(solveOpts.matchPath); err != nil {
			return err
		}
	}
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	g, fleet, mcfg, err := sc.Build(base)
	if err != nil {
		return err
	}
	if solveOpts.timeoutMs >= 0 {
		mcfg.SolverTimeoutMs = solveOpts.timeoutMs
	}
	if solveOpts.iterations >= 0 {
		mcfg.MaxIterations = solveOpts.iterations
	}

	// stdout carries the result
	log := logger.NewWithWriter("solve", cmd.ErrOrStderr())
	res, err := opt.Match(ctx, g, fleet, mcfg, opt.WithLogger(log))
	if err != nil {
		return err
	}
	out := solveOutput{
		Status:     res.Status.String(),
		Objective:  res.Objective,
		Iterations: res.Iterations,
		TimedOut:   res.TimedOut,
		Board:      res.Board,
	}
	if solveOpts.records {
		out.Records = res.Records
	}

	var w io.Writer = cmd.OutOrStdout()
	if solveOpts.output != "" {
		f, err := os.Create(solveOpts.output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return writeOutput(w, solveOpts.format, out)
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
