// Package scope shows a surface.Memory in an ebiten window styled like a
// radar PPI display.
package scope

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/sudorandom/sweep-scope/pkg/surface"
	"github.com/sudorandom/sweep-scope/pkg/sweepengine"
	"golang.org/x/image/font/gofont/gomono"
)

// StatusFunc reports the state shown in the HUD.
type StatusFunc func() sweepengine.Status

type Options struct {
	Width, Height int
	// RangeM is the distance from the centre to the nearest window edge.
	RangeM float64
	Title  string
	// FrameCaptureDir enables periodic PNG captures of the window.
	FrameCaptureDir string
	CaptureInterval time.Duration
}

type Scope struct {
	Width, Height int
	FPS           int

	surf   *surface.Memory
	status StatusFunc
	raster *Raster
	title  string

	layerImage *ebiten.Image
	version    uint64
	rendered   bool
	lastRender time.Time

	monoSource *text.GoTextFaceSource

	FrameCaptureDir string
	CaptureInterval time.Duration
	lastCapture     time.Time
}

func New(surf *surface.Memory, status StatusFunc, opts Options) *Scope {
	m, _ := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))
	return &Scope{
		Width:           opts.Width,
		Height:          opts.Height,
		FPS:             30,
		surf:            surf,
		status:          status,
		raster:          NewRaster(NewProjector(opts.Width, opts.Height, surf.ViewCenter(), opts.RangeM)),
		title:           opts.Title,
		monoSource:      m,
		FrameCaptureDir: opts.FrameCaptureDir,
		CaptureInterval: opts.CaptureInterval,
		lastCapture:     time.Now(),
	}
}

// Update re-rasterizes the surface when it changed, at most FPS times a
// second.
func (s *Scope) Update() error {
	now := time.Now()
	v := s.surf.Version()
	if s.rendered && v == s.version {
		return nil
	}
	if s.FPS > 0 && now.Sub(s.lastRender) < time.Second/time.Duration(s.FPS) {
		return nil
	}
	img := s.raster.Render(s.surf)
	if s.layerImage == nil {
		s.layerImage = ebiten.NewImage(s.Width, s.Height)
	}
	s.layerImage.WritePixels(img.Pix)
	s.version = v
	s.rendered = true
	s.lastRender = now
	return nil
}

func (s *Scope) Draw(screen *ebiten.Image) {
	if s.layerImage != nil {
		screen.DrawImage(s.layerImage, nil)
	} else {
		screen.Fill(ColorBackground)
	}
	s.drawHUD(screen)

	now := time.Now()
	if s.FrameCaptureDir != "" && s.CaptureInterval > 0 && now.Sub(s.lastCapture) >= s.CaptureInterval {
		s.lastCapture = now
		s.captureFrame(screen, "scope", now)
	}
}

func (s *Scope) Layout(w, h int) (int, int) { return s.Width, s.Height }

func (s *Scope) drawHUD(screen *ebiten.Image) {
	if s.monoSource == nil {
		return
	}
	margin, fontSize, spacing := 16.0, 14.0, 20.0
	if s.Width > 2000 {
		margin, fontSize, spacing = 32.0, 28.0, 40.0
	}

	lines := []string{s.title}
	if s.status != nil {
		st := s.status()
		bearing := "---.--°"
		if st.HasFix {
			bearing = fmt.Sprintf("%06.2f°", st.Azimuth)
		}
		lines = append(lines,
			fmt.Sprintf("SWEEP  %-8s AZ %s", st.Phase, bearing),
			fmt.Sprintf("LAYERS %-8d RANGE %.0f m", st.Layers, st.Radius),
			fmt.Sprintf("MSGS   %-8d BATCHES %d", st.Messages, st.Batches),
		)
		if st.Malformed > 0 {
			lines = append(lines, fmt.Sprintf("BAD    %d", st.Malformed))
		}
	}

	face := &text.GoTextFace{Source: s.monoSource, Size: fontSize}
	for i, line := range lines {
		if line == "" {
			continue
		}
		op := &text.DrawOptions{}
		op.GeoM.Translate(margin, margin+float64(i)*spacing)
		op.ColorScale.ScaleWithColor(color.RGBA{42, 200, 13, 255})
		op.ColorScale.ScaleAlpha(0.85)
		text.Draw(screen, line, face, op)
	}
}
