// Package cli implements the autocut command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maauso/autocut/internal/bootstrap"
	"github.com/maauso/autocut/internal/config"
	"github.com/maauso/autocut/internal/job"
)

// Processor runs one job to completion.
type Processor interface {
	Process(ctx context.Context, req job.Request) (*job.Job, error)
}

// setup builds the processor and the editing defaults from the environment.
type setup func() (Processor, *config.Config, error)

// Main runs the autocut command line and exits non-zero on failure.
func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCommand(setupFromEnv, os.Stdout)
	root.SetErr(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func setupFromEnv() (Processor, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := cfg.NewStderrLogger()
	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize dependencies: %w", err)
	}
	return deps.JobService, cfg, nil
}

func newRootCommand(s setup, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "autocut",
		Short:        "Remove silence and background noise from recordings",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SilenceErrors = true

	root.AddCommand(
		newJobCommand(s, job.KindEdit, "edit <input>", "Remove quiet stretches, joining the rest with crossfades"),
		newJobCommand(s, job.KindDenoise, "denoise <input>", "Remove background noise and export WAV audio"),
		newJobCommand(s, job.KindCompress, "compress <input>", "Re-export a recording without editing it"),
	)
	return root
}

func newJobCommand(s setup, kind job.Kind, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, s, kind, args[0])
		},
	}

	cmd.Flags().String("out", "", "Output path without extension (default: next to the input)")
	cmd.Flags().Bool("upload", false, "Upload the export to S3")

	switch kind {
	case job.KindEdit:
		cmd.Flags().Float64("min-interval", 0, "Shortest quiet stretch removed, in seconds")
		cmd.Flags().Float64("cutoff-ratio", 0, "Fraction of samples treated as quiet")
		cmd.Flags().Float64("crossfade", 0, "Longest crossfade at each splice, in seconds")
		cmd.Flags().Bool("denoise", false, "Detect quiet stretches on a denoised copy")
		addDenoiseFlags(cmd)
	case job.KindDenoise:
		cmd.Flags().Float64("min-interval", 0, "Shortest noise reference, in seconds")
		cmd.Flags().Float64("cutoff-ratio", 0, "Initial quiet ratio of the reference search")
		addDenoiseFlags(cmd)
	}
	return cmd
}

func addDenoiseFlags(cmd *cobra.Command) {
	cmd.Flags().Int("n-iter", 0, "Noise reference search iterations")
	cmd.Flags().Float64("max-interval-ratio", 0, "Largest later reference as a fraction of the file")

	// Hidden tuning flags
	cmd.Flags().Int("basis", 0, "Free signal bases")
	cmd.Flags().Int("noise-basis", 0, "Noise bases learned from the reference")
	cmd.Flags().Int("nmf-iter", 0, "Update rounds per factorization")
	_ = cmd.Flags().MarkHidden("basis")
	_ = cmd.Flags().MarkHidden("noise-basis")
	_ = cmd.Flags().MarkHidden("nmf-iter")
}
