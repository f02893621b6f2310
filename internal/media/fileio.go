package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/maauso/autocut/internal/audio"
)

// FileIO loads media files into memory and writes edited media back to
// disk. It implements the editor's media port.
type FileIO struct {
	proc    Processor
	tempDir string
	logger  *slog.Logger
}

// NewFileIO creates a FileIO. Intermediate files are created in tempDir,
// or os.TempDir() when empty.
func NewFileIO(proc Processor, tempDir string, logger *slog.Logger) *FileIO {
	if logger == nil {
		logger = slog.Default()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &FileIO{proc: proc, tempDir: tempDir, logger: logger}
}

// Load decodes path. WAV files are read directly; mp3 and m4a are decoded
// through ffmpeg. Video files keep a handle to an MP4 copy of the source:
// mov files are converted next to the source first.
func (f *FileIO) Load(ctx context.Context, path string) (*Media, error) {
	format := formatOf(path)
	m := &Media{Source: path, Format: format}

	var err error
	switch format {
	case FormatWAV:
		m.Audio, err = audio.ReadWAVFile(path)
	case FormatMP3, FormatM4A:
		m.Audio, err = f.decodeAudio(ctx, path)
	case FormatMP4, FormatMOV:
		err = f.loadVideo(ctx, path, m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if n := m.Audio.NumChannels(); n > MaxChannels {
		_ = f.Discard(m)
		return nil, fmt.Errorf("%w: %d", ErrTooManyChannels, n)
	}

	f.logger.Debug("media loaded",
		slog.String("path", path),
		slog.String("format", m.Format),
		slog.Int("channels", m.Audio.NumChannels()),
		slog.Int("sample_rate", m.Audio.SampleRate),
		slog.Float64("duration_sec", m.Audio.Duration()),
		slog.Bool("video", m.HasVideo()),
	)
	return m, nil
}

func (f *FileIO) loadVideo(ctx context.Context, path string, m *Media) error {
	videoPath := path
	if formatOf(path) == FormatMOV {
		videoPath = strings.TrimSuffix(path, filepath.Ext(path)) + "." + FormatMP4
		f.logger.Info("converting video to mp4",
			slog.String("source", path),
			slog.String("target", videoPath),
		)
		if err := f.proc.ConvertToMP4(ctx, path, videoPath); err != nil {
			_ = os.Remove(videoPath)
			return fmt.Errorf("convert to mp4: %w", err)
		}
		m.Converted = true
	}

	duration, err := f.proc.GetMediaDuration(ctx, videoPath)
	if err != nil {
		f.dropConversion(m, videoPath)
		return fmt.Errorf("probe duration: %w", err)
	}
	signal, err := f.decodeAudio(ctx, videoPath)
	if err != nil {
		f.dropConversion(m, videoPath)
		return err
	}

	m.Audio = signal
	m.Format = FormatMP4
	m.Video = &Video{Path: videoPath, SourceDuration: duration}
	return nil
}

func (f *FileIO) dropConversion(m *Media, videoPath string) {
	if m.Converted {
		_ = os.Remove(videoPath)
	}
}

// Discard removes the MP4 conversion Load wrote for m, if any. The source
// file is never touched.
func (f *FileIO) Discard(m *Media) error {
	p := m.ConvertedPath()
	if p == "" || p == m.Source {
		return nil
	}
	f.logger.Debug("removing converted video", slog.String("path", p))
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove converted video: %w", err)
	}
	return nil
}

// decodeAudio extracts the audio of path to a temporary WAV file and reads it.
func (f *FileIO) decodeAudio(ctx context.Context, path string) (*audio.Signal, error) {
	tmp, err := f.tempPath("decode-*.wav")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(tmp) }()

	if err := f.proc.ExtractAudio(ctx, path, tmp); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	return audio.ReadWAVFile(tmp)
}

// Write exports m to prefix plus the extension of m.Format and returns the
// written path. Video media are cut, joined and muxed with the audio. The
// output file is removed when any step fails.
func (f *FileIO) Write(ctx context.Context, prefix string, m *Media) (string, error) {
	if m == nil || m.Audio == nil {
		return "", ErrNoAudio
	}

	format := m.Format
	if m.HasVideo() {
		format = FormatMP4
	}
	out := prefix + "." + format

	var err error
	switch {
	case m.HasVideo():
		err = f.writeVideo(ctx, out, m)
	case format == FormatWAV:
		err = audio.WriteWAVFile(out, m.Audio)
	case format == FormatMP3 || format == FormatM4A:
		err = f.encodeAudio(ctx, out, m.Audio)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("write %s: %w", out, err)
	}

	f.logger.Info("media written",
		slog.String("path", out),
		slog.Float64("duration_sec", m.Audio.Duration()),
	)
	return out, nil
}

func (f *FileIO) encodeAudio(ctx context.Context, out string, s *audio.Signal) error {
	tmp, err := f.writeTempWAV(s)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	return f.proc.EncodeAudio(ctx, tmp, out)
}

func (f *FileIO) writeVideo(ctx context.Context, out string, m *Media) error {
	wav, err := f.writeTempWAV(m.Audio)
	if err != nil {
		return err
	}
	temps := []string{wav}
	defer func() {
		for _, p := range temps {
			_ = os.Remove(p)
		}
	}()

	video := m.Video.Path
	if len(m.Video.Cuts) > 0 {
		segments := make([]string, 0, len(m.Video.Cuts))
		for i, c := range m.Video.Cuts {
			if c.Duration() <= 0 {
				continue
			}
			seg, err := f.tempPath(fmt.Sprintf("cut-%03d-*.mp4", i))
			if err != nil {
				return err
			}
			temps = append(temps, seg)
			if err := f.proc.CutVideo(ctx, m.Video.Path, c.Start, c.End, seg); err != nil {
				return fmt.Errorf("cut video %s: %w", c, err)
			}
			segments = append(segments, seg)
		}

		joined, err := f.tempPath("joined-*.mp4")
		if err != nil {
			return err
		}
		temps = append(temps, joined)
		if err := f.proc.JoinVideos(ctx, segments, joined); err != nil {
			return fmt.Errorf("join video: %w", err)
		}
		video = joined
	}

	if err := f.proc.MuxAudioVideo(ctx, video, wav, out); err != nil {
		return fmt.Errorf("mux audio and video: %w", err)
	}
	return nil
}

func (f *FileIO) writeTempWAV(s *audio.Signal) (string, error) {
	tmp, err := f.tempPath("encode-*.wav")
	if err != nil {
		return "", err
	}
	if err := audio.WriteWAVFile(tmp, s); err != nil {
		return "", err
	}
	return tmp, nil
}

// tempPath reserves a unique file name in the temp directory.
func (f *FileIO) tempPath(pattern string) (string, error) {
	tf, err := os.CreateTemp(f.tempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := tf.Name()
	if err := tf.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}
