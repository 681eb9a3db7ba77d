// Package media drives ffmpeg and ffprobe to stylise, splice and re-encode
// videos inside a scratch workspace.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/model"
)

// CommandRunner executes an external binary and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpeg implements the transcoding steps of the pipeline.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	run         CommandRunner
}

func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return NewFFmpegWithRunner(ffmpegPath, ffprobePath, execRunner)
}

// NewFFmpegWithRunner lets callers substitute process execution.
func NewFFmpegWithRunner(ffmpegPath, ffprobePath string, run CommandRunner) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, run: run}
}

// ApplyStyle re-encodes input through the style's filter chain.
func (f *FFmpeg) ApplyStyle(ctx context.Context, input string, style model.StyleProfile, outDir string) (string, error) {
	chain, ok := FilterChain(style)
	if !ok {
		return "", fmt.Errorf("unknown style profile %q", style)
	}
	output := outputPath(outDir, "shaded")

	err := f.ffmpeg(ctx, "apply "+string(style)+" style",
		"-y",
		"-i", input,
		"-vf", chain,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "copy",
		"-movflags", "+faststart",
		output,
	)
	if err != nil {
		return "", err
	}
	return output, nil
}

// AddAudioEffects filters the audio track and copies video as is.
func (f *FFmpeg) AddAudioEffects(ctx context.Context, input, outDir string) (string, error) {
	output := outputPath(outDir, "audio-fx")

	err := f.ffmpeg(ctx, "audio effects",
		"-y",
		"-i", input,
		"-af", AudioFilterChain(),
		"-c:v", "copy",
		output,
	)
	if err != nil {
		return "", err
	}
	return output, nil
}

// InsertAds splices ads into main at the given offsets. The ad at index i
// lands at insertAt[i]; ads are reused in order when there are more offsets
// than ads. Offsets outside (0, duration) are dropped. With nothing to
// insert, main is returned unchanged.
func (f *FFmpeg) InsertAds(ctx context.Context, main string, ads []string, insertAt []float64, outDir string) (string, error) {
	if len(ads) == 0 || len(insertAt) == 0 {
		log.Info().Msg("No ads to insert, keeping video as is")
		return main, nil
	}

	duration, err := f.Duration(ctx, main)
	if err != nil {
		return "", err
	}

	type placement struct {
		at float64
		ad string
	}
	var placements []placement
	for i, at := range insertAt {
		if at > 0 && at < duration {
			placements = append(placements, placement{at: at, ad: ads[i%len(ads)]})
		}
	}
	if len(placements) == 0 {
		log.Info().Float64("duration", duration).Msg("All insertion points fall outside the video")
		return main, nil
	}
	sort.SliceStable(placements, func(i, j int) bool { return placements[i].at < placements[j].at })

	var parts []string
	lastEnd := 0.0
	for i, p := range placements {
		if p.at > lastEnd {
			seg, err := f.extractSegment(ctx, main, lastEnd, p.at, outDir, fmt.Sprintf("seg-%d", i))
			if err != nil {
				return "", err
			}
			parts = append(parts, seg)
		}
		parts = append(parts, p.ad)
		lastEnd = p.at
	}
	if lastEnd < duration {
		seg, err := f.extractSegment(ctx, main, lastEnd, duration, outDir, "seg-final")
		if err != nil {
			return "", err
		}
		parts = append(parts, seg)
	}

	return f.concat(ctx, parts, outDir)
}

// Duration reads the container duration in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	out, err := f.run(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	duration, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", line, err)
	}
	return duration, nil
}

func (f *FFmpeg) extractSegment(ctx context.Context, input string, start, end float64, outDir, name string) (string, error) {
	output := outputPath(outDir, name)
	err := f.ffmpeg(ctx, "extract segment",
		"-y",
		"-i", input,
		"-ss", FormatTimestamp(start),
		"-t", FormatTimestamp(end-start),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		output,
	)
	if err != nil {
		return "", err
	}
	return output, nil
}

func (f *FFmpeg) concat(ctx context.Context, parts []string, outDir string) (string, error) {
	listPath := filepath.Join(outDir, "concat-"+uuid.New().String()+".txt")
	output := outputPath(outDir, "concatenated")

	var b strings.Builder
	for _, p := range parts {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	err := f.ffmpeg(ctx, "concatenate videos",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		output,
	)
	if err != nil {
		return "", err
	}
	return output, nil
}

func (f *FFmpeg) ffmpeg(ctx context.Context, step string, args ...string) error {
	start := time.Now()
	log.Debug().Str("step", step).Strs("args", args).Msg("Running ffmpeg")

	out, err := f.run(ctx, f.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg %s failed: %w: %s", step, err, tail(out, 512))
	}

	log.Info().Str("step", step).Dur("duration", time.Since(start)).Msg("ffmpeg step completed")
	return nil
}

func outputPath(dir, prefix string) string {
	return filepath.Join(dir, prefix+"-"+uuid.New().String()+".mp4")
}

func tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
