package gifx

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// CountFrames returns the number of frames in the GIF at path without decoding pixel data.
func CountFrames(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64<<10)
	if _, err := readHeader(br); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	n := 0
	for {
		ok, err := readFrame(br, io.Discard)
		if err != nil {
			return n, fmt.Errorf("%s: frame %d: %w", path, n, err)
		}
		if !ok {
			return n, nil
		}
		n++
	}
}
