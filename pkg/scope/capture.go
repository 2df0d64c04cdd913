package scope

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sudorandom/sweep-scope/pkg/utils"
)

func (s *Scope) captureFrame(img *ebiten.Image, suffix string, timestamp time.Time) {
	if s.FrameCaptureDir == "" {
		return
	}

	if err := os.MkdirAll(s.FrameCaptureDir, 0o755); err != nil {
		log.Printf("[SCOPE] Error creating capture directory: %v", err)
		return
	}

	path := filepath.Join(s.FrameCaptureDir, CaptureName(suffix, timestamp))

	// Copy out of the GPU image so encoding can happen off the game loop.
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	img.ReadPixels(rgba.Pix)

	go func() {
		if err := utils.WriteFileAtomic(path, func(w io.Writer) error {
			return png.Encode(w, rgba)
		}); err != nil {
			log.Printf("[SCOPE] Error writing capture: %v", err)
			return
		}
		log.Printf("[SCOPE] Captured frame: %s", path)
	}()
}

// CaptureName is the file name used for a frame captured at timestamp.
func CaptureName(suffix string, timestamp time.Time) string {
	return fmt.Sprintf("sweep-%s-%s.png", timestamp.Format("20060102-150405"), suffix)
}
