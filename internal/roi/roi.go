// Package roi persists the single region of interest of a root directory and obtains it
// from an injected picker the first time it is needed.
package roi

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/fsx"
	"github.com/John-Robertt/wormruler/internal/naming"
)

// ErrNoPicker means no ROI is stored and nothing can select one.
var ErrNoPicker = errors.New("no ROI file and no ROI picker available")

// Picker selects a rectangle on frame, the first frame of the first sample of the run.
type Picker interface {
	Pick(ctx context.Context, frame image.Image, sample domain.Sample) (domain.ROI, error)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context, frame image.Image, sample domain.Sample) (domain.ROI, error)

func (f PickerFunc) Pick(ctx context.Context, frame image.Image, sample domain.Sample) (domain.ROI, error) {
	return f(ctx, frame, sample)
}

// Fixed always returns the same rectangle (--roi x,y,w,h).
type Fixed domain.ROI

func (f Fixed) Pick(context.Context, image.Image, domain.Sample) (domain.ROI, error) {
	return domain.ROI(f), nil
}

// FirstFrame yields the frame and sample the picker is shown.
type FirstFrame func(ctx context.Context) (image.Image, domain.Sample, error)

// Store reads and writes <root>/<basename(root)>_ROI.txt.
type Store struct {
	Root string
}

func New(root string) Store {
	return Store{Root: filepath.Clean(strings.TrimSpace(root))}
}

func (s Store) Path() string { return naming.ROIPath(s.Root) }

// Read returns the stored ROI; ok is false when no file exists.
func (s Store) Read() (r domain.ROI, ok bool, err error) {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ROI{}, false, nil
		}
		return domain.ROI{}, false, err
	}
	r, err = Parse(b)
	if err != nil {
		return domain.ROI{}, true, fmt.Errorf("%s: %w", s.Path(), err)
	}
	return r, true, nil
}

// Write stores r. An existing ROI is never replaced; Reset it first.
func (s Store) Write(r domain.ROI) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return fsx.WriteFileAtomicNoOverwrite(s.Path(), Format(r))
}

// Reset deletes the stored ROI. A missing file is not an error.
func (s Store) Reset() error {
	err := os.Remove(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Ensure returns the stored ROI, or asks pick once and persists the answer. created reports
// whether the ROI was selected during this call.
func (s Store) Ensure(ctx context.Context, pick Picker, first FirstFrame) (r domain.ROI, created bool, err error) {
	r, ok, err := s.Read()
	if err != nil {
		return domain.ROI{}, false, err
	}
	if ok {
		return r, false, nil
	}
	if pick == nil {
		return domain.ROI{}, false, ErrNoPicker
	}

	frame, sample, err := first(ctx)
	if err != nil {
		return domain.ROI{}, false, err
	}
	r, err = pick.Pick(ctx, frame, sample)
	if err != nil {
		return domain.ROI{}, false, fmt.Errorf("select roi: %w", err)
	}
	if err := s.Write(r); err != nil {
		return domain.ROI{}, false, fmt.Errorf("write roi: %w", err)
	}
	return r, true, nil
}

// Format renders the four lines x, y, width, height.
func Format(r domain.ROI) []byte {
	return []byte(fmt.Sprintf("%d\n%d\n%d\n%d\n", r.X, r.Y, r.W, r.H))
}

// Parse reads four integer lines; blank lines are ignored.
func Parse(b []byte) (domain.ROI, error) {
	var vals []int
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.Atoi(line)
		if err != nil {
			return domain.ROI{}, fmt.Errorf("roi value %q: %w", line, err)
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return domain.ROI{}, err
	}
	if len(vals) != 4 {
		return domain.ROI{}, fmt.Errorf("roi needs 4 values (x, y, width, height), got %d", len(vals))
	}
	r := domain.ROI{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	return r, r.Validate()
}

// ParseFlag parses "x,y,w,h".
func ParseFlag(s string) (domain.ROI, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.ROI{}, fmt.Errorf("roi %q: want x,y,w,h", s)
	}
	return Parse([]byte(strings.Join(parts, "\n")))
}
