package frames

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
)

// Memory is an in-process Source and Sink keyed by path. The orchestrator tests use it in
// place of ffmpeg; it is also handy for feeding synthetic frames to a stage.
type Memory struct {
	mu     sync.Mutex
	videos map[string][]image.Image
	fps    map[string]int
}

func NewMemory() *Memory {
	return &Memory{videos: map[string][]image.Image{}, fps: map[string]int{}}
}

// Put registers frames under path.
func (m *Memory) Put(path string, imgs ...image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[path] = append([]image.Image(nil), imgs...)
}

// Frames returns what was written to path and the framerate it was created with.
func (m *Memory) Frames(path string) ([]image.Image, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[path]
	return v, m.fps[path], ok
}

func (m *Memory) Open(_ context.Context, path string) (Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return &memReader{frames: v}, nil
}

func (m *Memory) Create(path string, fps int) (Writer, error) {
	return &memWriter{m: m, path: path, fps: fps}, nil
}

type memReader struct {
	frames []image.Image
	i      int
}

func (r *memReader) Next() (image.Image, error) {
	if r.i >= len(r.frames) {
		return nil, io.EOF
	}
	img := r.frames[r.i]
	r.i++
	return img, nil
}

func (r *memReader) Close() error { return nil }

type memWriter struct {
	m      *Memory
	path   string
	fps    int
	frames []image.Image
}

func (w *memWriter) Write(img image.Image) error {
	w.frames = append(w.frames, img)
	return nil
}

func (w *memWriter) Close() error {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	w.m.videos[w.path] = w.frames
	w.m.fps[w.path] = w.fps
	return nil
}

func (w *memWriter) Abort() error { return nil }
