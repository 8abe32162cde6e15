// Package ffmpeg decodes raw recordings by running ffmpeg as a subprocess and streaming
// rgb24 frames from its stdout.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/wormruler/internal/frames"
)

const (
	DefaultFFmpeg  = "ffmpeg"
	DefaultFFprobe = "ffprobe"

	stderrLimit = 8 << 10
)

// Source implements frames.Source for formats ffmpeg understands (.avi, .mov, ...).
type Source struct {
	ffmpeg  string
	ffprobe string
	logger  *zap.Logger
}

var _ frames.Source = (*Source)(nil)

// NewSource uses the given binaries; empty names fall back to ffmpeg/ffprobe from PATH.
func NewSource(ffmpegBin, ffprobeBin string, logger *zap.Logger) *Source {
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = DefaultFFmpeg
	}
	if strings.TrimSpace(ffprobeBin) == "" {
		ffprobeBin = DefaultFFprobe
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{ffmpeg: ffmpegBin, ffprobe: ffprobeBin, logger: logger}
}

// Open probes the video dimensions and starts the decoder.
func (s *Source) Open(ctx context.Context, path string) (frames.Reader, error) {
	w, h, err := s.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, s.ffmpeg, decodeArgs(path)...)
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	s.logger.Debug("decoder started",
		zap.String("video", path),
		zap.Int("width", w),
		zap.Int("height", h),
	)
	return &reader{cmd: cmd, out: stdout, stderr: stderr, w: w, h: h, buf: make([]byte, w*h*3), path: path}, nil
}

// decodeArgs streams the first video stream as rgb24. Auto-rotation stays off so every frame
// keeps the coded width and height that ffprobe reports.
func decodeArgs(path string) []string {
	return []string{
		"-nostdin",
		"-v", "error",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	}
}

func (s *Source) probe(ctx context.Context, path string) (int, int, error) {
	cmd := exec.CommandContext(ctx, s.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0:s=x",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return 0, 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return 0, 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseDimensions(string(output))
}

// parseDimensions parses ffprobe's "WxH" output.
func parseDimensions(s string) (int, int, error) {
	line := strings.TrimSpace(s)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	ws, hs, ok := strings.Cut(strings.TrimSuffix(line, "x"), "x")
	if !ok {
		return 0, 0, fmt.Errorf("parse dimensions %q", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("parse width %q: %w", ws, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("parse height %q: %w", hs, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	return w, h, nil
}

type reader struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr *limitedBuffer
	w, h   int
	buf    []byte
	path   string
	done   bool
	err    error
}

func (r *reader) Next() (image.Image, error) {
	if r.done {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}

	_, err := io.ReadFull(r.out, r.buf)
	if errors.Is(err, io.EOF) {
		r.done = true
		if werr := r.cmd.Wait(); werr != nil {
			r.err = r.decodeError(werr)
			return nil, r.err
		}
		return nil, io.EOF
	}
	if err != nil {
		// A short trailing frame means the decoder died mid-frame.
		r.done = true
		werr := r.cmd.Wait()
		r.err = r.decodeError(errors.Join(err, werr))
		return nil, r.err
	}
	return rgb24ToRGBA(r.buf, r.w, r.h), nil
}

func (r *reader) decodeError(err error) error {
	msg := strings.TrimSpace(r.stderr.String())
	if msg == "" {
		return fmt.Errorf("ffmpeg decode %s: %w", r.path, err)
	}
	return fmt.Errorf("ffmpeg decode %s: %w: %s", r.path, err, msg)
}

// Close stops a decoder that was not read to the end.
func (r *reader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	_ = r.out.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.cmd.Wait()
	return nil
}

func rgb24ToRGBA(src []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		img.Pix[j] = src[i]
		img.Pix[j+1] = src[i+1]
		img.Pix[j+2] = src[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// limitedBuffer keeps the first limit bytes of ffmpeg's stderr.
type limitedBuffer struct {
	bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); room > 0 {
		if len(p) > room {
			b.Buffer.Write(p[:room])
		} else {
			b.Buffer.Write(p)
		}
	}
	return len(p), nil
}
