package inkduo

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/inkduo/inkduo/image6color"
)

// ColorSink receives the dithered image for the 6-color panel.
type ColorSink interface {
	DisplayImage(ctx context.Context, img *image6color.Indexed) error
}

// FrameSink receives the packed data frame for the remote monochrome panel.
type FrameSink interface {
	SendFrame(ctx context.Context, frame []byte) error
}

// FileColorSink writes the dithered image as a PNG. It stands in for the
// hardware panel during development and as the fallback when the panel
// faults.
type FileColorSink struct {
	Dir string // destination directory; empty means the working directory
}

// DisplayImage writes img to color_display_output.png.
func (s *FileColorSink) DisplayImage(ctx context.Context, img *image6color.Indexed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.dir(), "color_display_output.png")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("inkduo: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("inkduo: encoding %s: %w", path, err)
	}
	return f.Close()
}

// FileFrameSink writes packed frames as raw binary files, byte-for-byte what
// the bus transport would send.
type FileFrameSink struct {
	Dir string
}

// SendFrame writes frame to bw_frame.bin.
func (s *FileFrameSink) SendFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.dir(), "bw_frame.bin")
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		return fmt.Errorf("inkduo: writing %s: %w", path, err)
	}
	return nil
}

func (s *FileColorSink) dir() string {
	if s.Dir == "" {
		return "."
	}
	return s.Dir
}

func (s *FileFrameSink) dir() string {
	if s.Dir == "" {
		return "."
	}
	return s.Dir
}
