package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maauso/autocut/internal/config"
	"github.com/maauso/autocut/internal/job"
)

// result is printed to stdout when a job finishes.
type result struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Edited    bool   `json:"edited"`
	Export    string `json:"export"`
	Config    string `json:"config"`
	ResultURL string `json:"result_url,omitempty"`
}

func run(cmd *cobra.Command, s setup, kind job.Kind, input string) error {
	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	proc, cfg, err := s()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	req := buildRequest(cmd.Flags(), cfg, kind, absIn)
	j, err := proc.Process(cmd.Context(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result{
		ID:        j.ID,
		Kind:      string(j.Kind),
		Status:    string(j.Status),
		Edited:    j.Edited,
		Export:    j.ExportPath,
		Config:    j.ConfigPath,
		ResultURL: j.ResultURL,
	})
}

// buildRequest overlays the flags the user set on the configured defaults.
func buildRequest(flags *pflag.FlagSet, cfg *config.Config, kind job.Kind, input string) job.Request {
	req := job.Request{
		Kind:       kind,
		SourcePath: input,
		Clip:       cfg.ClipOptions(),
		Denoise:    cfg.DenoiseOptions(),
	}
	req.ExportPrefix, _ = flags.GetString("out")
	req.Upload, _ = flags.GetBool("upload")

	switch kind {
	case job.KindEdit:
		setFloat(flags, "min-interval", &req.Clip.MinIntervalSec)
		setFloat(flags, "cutoff-ratio", &req.Clip.CutoffRatio)
		setFloat(flags, "crossfade", &req.Clip.CrossfadeSec)
		req.ApplyNoiseReduction, _ = flags.GetBool("denoise")
	case job.KindDenoise:
		setFloat(flags, "min-interval", &req.Denoise.MinIntervalSec)
		setFloat(flags, "cutoff-ratio", &req.Denoise.CutoffRatio)
	}
	if kind != job.KindCompress {
		setInt(flags, "n-iter", &req.Denoise.NIter)
		setFloat(flags, "max-interval-ratio", &req.Denoise.MaxIntervalRatio)
		setInt(flags, "basis", &req.Denoise.Params.BasisNum)
		setInt(flags, "noise-basis", &req.Denoise.Params.BasisNoiseNum)
		setInt(flags, "nmf-iter", &req.Denoise.Params.NMFIter)
	}
	return req
}

func setFloat(flags *pflag.FlagSet, name string, dst *float64) {
	if flags.Changed(name) {
		*dst, _ = flags.GetFloat64(name)
	}
}

func setInt(flags *pflag.FlagSet, name string, dst *int) {
	if flags.Changed(name) {
		*dst, _ = flags.GetInt(name)
	}
}
