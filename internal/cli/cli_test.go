package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/autocut/internal/config"
	"github.com/maauso/autocut/internal/job"
)

type fakeProcessor struct {
	got *job.Request
	err error
}

func (f *fakeProcessor) Process(_ context.Context, req job.Request) (*job.Job, error) {
	f.got = &req
	if f.err != nil {
		return nil, f.err
	}
	j := job.NewWithID(string(req.Kind)+"-1", req.Kind)
	j.Status = job.StatusCompleted
	j.SetOutput("/out/talk.wav", "/out/talk.config.json", req.Kind == job.KindEdit)
	return j, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MinIntervalSec:   0.125,
		CutoffRatio:      0.85,
		CrossfadeSec:     0.1,
		MaxIntervalRatio: 0.15,
		NIter:            1,
		BasisNoiseNum:    20,
		BasisNum:         20,
		NMFIter:          50,
		NMFDivergence:    "kl",
		NormalizeScale:   1,
	}
}

func execute(t *testing.T, p *fakeProcessor, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(func() (Processor, *config.Config, error) {
		return p, testConfig(), nil
	}, &out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEditCommand(t *testing.T) {
	p := &fakeProcessor{}
	out, err := execute(t, p, "edit", "talk.wav",
		"--out", "/out/talk",
		"--min-interval", "0.5",
		"--crossfade", "0",
		"--denoise",
		"--n-iter", "3",
		"--upload",
	)
	require.NoError(t, err)
	require.NotNil(t, p.got)

	abs, _ := filepath.Abs("talk.wav")
	assert.Equal(t, job.KindEdit, p.got.Kind)
	assert.Equal(t, abs, p.got.SourcePath)
	assert.Equal(t, "/out/talk", p.got.ExportPrefix)
	assert.True(t, p.got.Upload)
	assert.True(t, p.got.ApplyNoiseReduction)
	assert.InDelta(t, 0.5, p.got.Clip.MinIntervalSec, 1e-9)
	assert.InDelta(t, 0.85, p.got.Clip.CutoffRatio, 1e-9, "unset flags keep the configured default")
	assert.Zero(t, p.got.Clip.CrossfadeSec)
	assert.Equal(t, 3, p.got.Denoise.NIter)
	assert.Equal(t, 20, p.got.Denoise.Params.BasisNum)

	var res result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "edit-1", res.ID)
	assert.Equal(t, "COMPLETED", res.Status)
	assert.True(t, res.Edited)
	assert.Equal(t, "/out/talk.wav", res.Export)
	assert.Equal(t, "/out/talk.config.json", res.Config)
}

func TestDenoiseCommand(t *testing.T) {
	p := &fakeProcessor{}
	_, err := execute(t, p, "denoise", "talk.mp4", "--min-interval", "0.25", "--cutoff-ratio", "0.7", "--basis", "8")
	require.NoError(t, err)

	assert.Equal(t, job.KindDenoise, p.got.Kind)
	assert.False(t, p.got.ApplyNoiseReduction)
	assert.InDelta(t, 0.25, p.got.Denoise.MinIntervalSec, 1e-9)
	assert.InDelta(t, 0.7, p.got.Denoise.CutoffRatio, 1e-9)
	assert.Equal(t, 8, p.got.Denoise.Params.BasisNum)
	assert.InDelta(t, 0.125, p.got.Clip.MinIntervalSec, 1e-9, "clip options stay at defaults")
}

func TestCompressCommand(t *testing.T) {
	p := &fakeProcessor{}
	_, err := execute(t, p, "compress", "clip.mov")
	require.NoError(t, err)
	assert.Equal(t, job.KindCompress, p.got.Kind)
	assert.Empty(t, p.got.ExportPrefix)

	// Editing flags are not accepted
	_, err = execute(t, &fakeProcessor{}, "compress", "clip.mov", "--min-interval", "1")
	assert.Error(t, err)
}

func TestCommand_Errors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		_, err := execute(t, &fakeProcessor{}, "edit")
		assert.Error(t, err)
	})

	t.Run("processing failure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := execute(t, &fakeProcessor{err: boom}, "edit", "talk.wav")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("setup failure", func(t *testing.T) {
		root := newRootCommand(func() (Processor, *config.Config, error) {
			return nil, nil, config.ErrInvalidPort
		}, &bytes.Buffer{})
		root.SetArgs([]string{"edit", "talk.wav"})
		err := root.Execute()
		assert.ErrorIs(t, err, config.ErrInvalidPort)
	})
}
