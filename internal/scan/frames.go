package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"
)

// ErrFramesExhausted is returned when a replayed source runs out of
// frames without a successful decode.
var ErrFramesExhausted = errors.New("frame source exhausted")

// FileCamera replays still images as camera frames. Like a real camera
// it is exclusive: only one acquired source may exist at a time.
type FileCamera struct {
	paths []string
	busy  atomic.Bool
}

func NewFileCamera(paths ...string) *FileCamera {
	return &FileCamera{paths: paths}
}

func (c *FileCamera) Acquire(ctx context.Context) (FrameSource, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, errors.New("camera already in use")
	}
	return &fileFrames{camera: c, paths: c.paths}, nil
}

type fileFrames struct {
	camera *FileCamera
	paths  []string
	next   int
}

func (f *fileFrames) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.next >= len(f.paths) {
		return nil, ErrFramesExhausted
	}

	path := f.paths[f.next]
	f.next++

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}

func (f *fileFrames) Close() error {
	f.camera.busy.Store(false)
	return nil
}
