// Package media loads and writes the audio and video files handled by the
// editor. PCM WAV is decoded in process; every other container goes
// through the ffmpeg CLI.
package media

import "context"

// Processor defines the ffmpeg operations used by FileIO.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// ExtractAudio decodes the audio stream of src into a PCM WAV file at dst.
	ExtractAudio(ctx context.Context, src, dst string) error

	// EncodeAudio transcodes the WAV file at src into the container implied
	// by the extension of dst.
	EncodeAudio(ctx context.Context, src, dst string) error

	// ConvertToMP4 normalizes a video container to H.264/AAC MP4.
	ConvertToMP4(ctx context.Context, src, dst string) error

	// CutVideo writes the video stream of src between start and end seconds
	// to dst, without audio.
	CutVideo(ctx context.Context, src string, start, end float64, dst string) error

	// JoinVideos concatenates multiple video files into a single output file.
	// It first attempts a fast copy (no re-encoding) and falls back to re-encoding
	// with libx264/aac if the copy fails due to incompatible codecs.
	JoinVideos(ctx context.Context, videoPaths []string, output string) error

	// MuxAudioVideo combines the video stream of video with the audio stream
	// of audio into output.
	MuxAudioVideo(ctx context.Context, video, audio, output string) error

	// GetMediaDuration returns the duration in seconds of a media file.
	GetMediaDuration(ctx context.Context, path string) (float64, error)
}
