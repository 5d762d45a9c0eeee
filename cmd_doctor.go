package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/devmarvs/alice/internal/bridge"
	"github.com/devmarvs/alice/internal/config"
	"github.com/devmarvs/alice/internal/runner"
)

const doctorHealthTimeout = 3 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the backend layout, interpreters and backend reachability",
	Long: `Prints where the host looks for the backend, which entry point it would
launch, which interpreters are available and whether the backend answers.`,
	RunE: runDoctor,
}

type doctorReport struct {
	Config       config.Config
	Layout       runner.Layout
	Resolution   runner.Resolution
	Interpreters []runner.Interpreter
	Health       bridge.Reply
	HealthErr    error
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	layout := runner.NewLayout(anchorsFor(cfg))
	interpreters := cfg.Interpreters
	if len(interpreters) == 0 {
		interpreters = runner.DefaultInterpreters(runtime.GOOS)
	}

	rep := doctorReport{
		Config:       cfg,
		Layout:       layout,
		Resolution:   layout.Resolve(nil),
		Interpreters: runner.DetectInterpreters(ctx, interpreters),
	}

	healthCtx, cancel := context.WithTimeout(ctx, doctorHealthTimeout)
	rep.Health, rep.HealthErr = bridge.New(cfg.BackendURL).Health(healthCtx)
	cancel()

	writeDoctor(cmd.OutOrStdout(), rep)
	if !rep.Resolution.Found {
		return runner.ErrNoEntryPoint
	}
	return nil
}

func writeDoctor(w io.Writer, rep doctorReport) {
	mode := "packaged"
	if rep.Config.DevMode {
		mode = "dev"
	}
	fmt.Fprintf(w, "Mode:       %s\n", mode)
	fmt.Fprintf(w, "Root:       %s\n", rep.Config.OwnRoot)
	fmt.Fprintf(w, "Resources:  %s\n", rep.Config.ResourcesDir)
	fmt.Fprintf(w, "Splash:     %s\n", rep.Config.SplashDocument())
	fmt.Fprintf(w, "Main:       %s\n", rep.Config.MainTarget())

	fmt.Fprintln(w, "\nCandidates:")
	for i, c := range rep.Layout.Candidates {
		marker := " "
		if rep.Resolution.Found && c.Entry == rep.Resolution.EntryPath {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %d. %s\n", marker, i+1, c.Entry)
	}
	if rep.Resolution.Found {
		fmt.Fprintf(w, "Entry point: %s\n", rep.Resolution.EntryPath)
	} else {
		fmt.Fprintln(w, "Entry point: not found")
	}
	fmt.Fprintf(w, "Working dir: %s\n", rep.Resolution.WorkDir)

	fmt.Fprintln(w, "\nInterpreters:")
	for _, in := range rep.Interpreters {
		fmt.Fprintf(w, "  %s\n", in.Label())
	}

	fmt.Fprintf(w, "\nBackend %s: ", rep.Config.BackendURL)
	switch {
	case rep.HealthErr != nil:
		fmt.Fprintf(w, "unreachable (%v)\n", rep.HealthErr)
	case !rep.Health.OK():
		fmt.Fprintf(w, "answered with status %d\n", rep.Health.Status)
	default:
		fmt.Fprintln(w, "reachable")
	}
}
