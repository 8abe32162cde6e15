// Package gifx reads and writes the GIF frame videos of the pipeline (_bw.gif, _skel.gif).
//
// Both directions stream one frame at a time: the reader cuts each frame's blocks out of the
// file and decodes them as a one-frame GIF, the writer encodes each frame on its own and
// splices the blocks into a single file. Memory stays bounded by one frame regardless of
// the video length.
package gifx

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	blockExtension  = 0x21
	blockImage      = 0x2C
	blockTrailer    = 0x3B
	labelGraphicCtl = 0xF9
)

var errNotGIF = errors.New("not a GIF file")

// readHeader returns the signature, logical screen descriptor and global color table.
func readHeader(br *bufio.Reader) ([]byte, error) {
	hdr := make([]byte, 13)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, fmt.Errorf("read gif header: %w", err)
	}
	if sig := string(hdr[:6]); sig != "GIF87a" && sig != "GIF89a" {
		return nil, errNotGIF
	}
	if n := colorTableLen(hdr[10]); n > 0 {
		gct := make([]byte, n)
		if _, err := io.ReadFull(br, gct); err != nil {
			return nil, fmt.Errorf("read global color table: %w", err)
		}
		hdr = append(hdr, gct...)
	}
	return hdr, nil
}

func colorTableLen(flags byte) int {
	if flags&0x80 == 0 {
		return 0
	}
	return 3 * (1 << ((flags & 0x07) + 1))
}

// readFrame advances to the next image and copies its graphic control extension and image
// block to w. It returns false at the trailer (or a truncated end after the last frame).
func readFrame(br *bufio.Reader, w io.Writer) (bool, error) {
	var gce []byte
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		switch b {
		case blockExtension:
			label, err := br.ReadByte()
			if err != nil {
				return false, fmt.Errorf("read extension label: %w", err)
			}
			if label == labelGraphicCtl {
				var ext bytes.Buffer
				ext.Write([]byte{blockExtension, labelGraphicCtl})
				if err := copySubBlocks(br, &ext); err != nil {
					return false, err
				}
				gce = ext.Bytes()
				continue
			}
			if err := copySubBlocks(br, io.Discard); err != nil {
				return false, err
			}

		case blockImage:
			desc := make([]byte, 9)
			if _, err := io.ReadFull(br, desc); err != nil {
				return false, fmt.Errorf("read image descriptor: %w", err)
			}
			if _, err := w.Write(gce); err != nil {
				return false, err
			}
			if _, err := w.Write(append([]byte{blockImage}, desc...)); err != nil {
				return false, err
			}
			if n := colorTableLen(desc[8]); n > 0 {
				if _, err := io.CopyN(w, br, int64(n)); err != nil {
					return false, fmt.Errorf("read local color table: %w", err)
				}
			}
			litWidth, err := br.ReadByte()
			if err != nil {
				return false, fmt.Errorf("read lzw code size: %w", err)
			}
			if _, err := w.Write([]byte{litWidth}); err != nil {
				return false, err
			}
			if err := copySubBlocks(br, w); err != nil {
				return false, err
			}
			return true, nil

		case blockTrailer:
			return false, nil

		default:
			return false, fmt.Errorf("unknown gif block 0x%02x", b)
		}
	}
}

// copySubBlocks copies a length-prefixed sub-block chain including its terminator.
func copySubBlocks(br *bufio.Reader, w io.Writer) error {
	for {
		n, err := br.ReadByte()
		if err != nil {
			return fmt.Errorf("read sub-block: %w", err)
		}
		if _, err := w.Write([]byte{n}); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := io.CopyN(w, br, int64(n)); err != nil {
			return fmt.Errorf("read sub-block: %w", err)
		}
	}
}
