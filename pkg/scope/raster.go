package scope

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lucasb-eyer/go-colorful"
	geojson "github.com/paulmach/go.geojson"
	"github.com/sudorandom/sweep-scope/pkg/geodesy"
	"github.com/sudorandom/sweep-scope/pkg/surface"
	"github.com/sudorandom/sweep-scope/pkg/utils"
)

var (
	ColorBackground = color.RGBA{4, 12, 6, 255}
	ColorGrid       = color.RGBA{20, 70, 30, 255}
	ColorDefault    = color.RGBA{42, 200, 13, 255} // #2AC80D
)

// MaxMarkerRadius caps the pixel radius of point markers.
const MaxMarkerRadius = 24.0

// Projector maps geographic coordinates onto a pixel grid centred on a point.
type Projector struct {
	Width, Height  int
	Center         geodesy.LatLng
	MetersPerPixel float64
}

// NewProjector fits rangeM meters between the centre and the nearest edge.
func NewProjector(width, height int, center geodesy.LatLng, rangeM float64) Projector {
	half := float64(min(width, height)) / 2
	return Projector{
		Width:          width,
		Height:         height,
		Center:         center,
		MetersPerPixel: rangeM / half,
	}
}

func (p Projector) Project(lat, lng float64) (x, y float64) {
	east, north := geodesy.LocalOffset(p.Center, geodesy.LatLng{Lat: lat, Lng: lng})
	x = float64(p.Width)/2 + east/p.MetersPerPixel
	y = float64(p.Height)/2 - north/p.MetersPerPixel
	return x, y
}

type palette struct {
	cache *lru.Cache[string, color.RGBA]
}

func newPalette(size int) *palette {
	c, _ := lru.New[string, color.RGBA](size)
	return &palette{cache: c}
}

// color parses a CSS hex color, falling back when it cannot be read.
func (p *palette) color(hex string, fallback color.RGBA) color.RGBA {
	if hex == "" {
		return fallback
	}
	if c, ok := p.cache.Get(hex); ok {
		return c
	}
	parsed, err := colorful.Hex(hex)
	if err != nil {
		return fallback
	}
	r, g, b := parsed.RGB255()
	c := color.RGBA{r, g, b, 255}
	p.cache.Add(hex, c)
	return c
}

// Raster draws a Memory surface into a CPU image.
type Raster struct {
	proj Projector
	img  *image.RGBA
	pal  *palette

	// Grid draws range rings every GridStepM meters and a crosshair.
	Grid      bool
	GridStepM float64
}

func NewRaster(proj Projector) *Raster {
	return &Raster{
		proj:      proj,
		img:       image.NewRGBA(image.Rect(0, 0, proj.Width, proj.Height)),
		pal:       newPalette(256),
		Grid:      true,
		GridStepM: 5000,
	}
}

func (r *Raster) Projector() Projector { return r.proj }

// Render redraws every group of m bottom to top and returns the image. The
// image is reused between calls.
func (r *Raster) Render(m *surface.Memory) *image.RGBA {
	draw.Draw(r.img, r.img.Bounds(), &image.Uniform{ColorBackground}, image.Point{}, draw.Src)
	if r.Grid {
		r.drawGrid()
	}
	m.Visit(func(g surface.Group) {
		for _, d := range g.Items {
			r.drawItem(d)
		}
	})
	return r.img
}

// WritePNG renders m and writes it to path.
func (r *Raster) WritePNG(m *surface.Memory, path string) error {
	img := r.Render(m)
	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}

func (r *Raster) drawGrid() {
	if r.GridStepM <= 0 {
		return
	}
	cx, cy := float64(r.proj.Width)/2, float64(r.proj.Height)/2
	maxR := math.Hypot(cx, cy)
	for m := r.GridStepM; m/r.proj.MetersPerPixel < maxR; m += r.GridStepM {
		r.strokeCircle(cx, cy, m/r.proj.MetersPerPixel, ColorGrid, 1, 1)
	}
	r.drawLine(0, cy, float64(r.proj.Width), cy, ColorGrid, 1, 1)
	r.drawLine(cx, 0, cx, float64(r.proj.Height), ColorGrid, 1, 1)
}

func (r *Raster) drawItem(d surface.Drawable) {
	s := d.Style
	stroke := r.pal.color(s.Stroke, ColorDefault)
	fill := r.pal.color(s.Fill, stroke)

	if d.Circle != nil {
		x, y := r.proj.Project(d.Circle.Center.Lat, d.Circle.Center.Lng)
		rad := d.Circle.RadiusM / r.proj.MetersPerPixel
		r.fillCircle(x, y, rad, fill, s.FillOpacity)
		if s.Weight > 0 {
			r.strokeCircle(x, y, rad, stroke, s.Opacity, s.Weight)
		}
		return
	}
	if d.Geometry != nil {
		r.drawGeometry(d.Geometry, s, stroke, fill)
	}
}

func (r *Raster) drawGeometry(g *geojson.Geometry, s surface.Style, stroke, fill color.RGBA) {
	switch {
	case g.IsPoint():
		r.drawPoint(g.Point, s, stroke, fill)
	case g.IsMultiPoint():
		for _, p := range g.MultiPoint {
			r.drawPoint(p, s, stroke, fill)
		}
	case g.IsLineString():
		r.drawPolyline(g.LineString, stroke, s.Opacity, s.Weight)
	case g.IsMultiLineString():
		for _, l := range g.MultiLineString {
			r.drawPolyline(l, stroke, s.Opacity, s.Weight)
		}
	case g.IsPolygon():
		r.drawPolygon(g.Polygon, s, stroke, fill)
	case g.IsMultiPolygon():
		for _, p := range g.MultiPolygon {
			r.drawPolygon(p, s, stroke, fill)
		}
	case g.IsCollection():
		for _, child := range g.Geometries {
			if child != nil {
				r.drawGeometry(child, s, stroke, fill)
			}
		}
	}
}

func (r *Raster) drawPoint(p []float64, s surface.Style, stroke, fill color.RGBA) {
	if len(p) < 2 {
		return
	}
	x, y := r.proj.Project(p[1], p[0])
	rad := s.Radius
	if rad <= 0 {
		rad = 3
	}
	// Feeds also put the scan range in meters under radius.
	rad = min(rad, MaxMarkerRadius)
	r.fillCircle(x, y, rad, fill, s.FillOpacity)
	if s.Weight > 0 {
		r.strokeCircle(x, y, rad, stroke, s.Opacity, s.Weight)
	}
}

func (r *Raster) drawPolygon(rings [][][]float64, s surface.Style, stroke, fill color.RGBA) {
	r.fillPolygon(rings, fill, s.FillOpacity)
	if s.Weight <= 0 {
		return
	}
	for _, ring := range rings {
		r.drawPolyline(ring, stroke, s.Opacity, s.Weight)
	}
}

func (r *Raster) drawPolyline(coords [][]float64, c color.RGBA, alpha, weight float64) {
	for i := 0; i < len(coords)-1; i++ {
		if len(coords[i]) < 2 || len(coords[i+1]) < 2 {
			continue
		}
		x1, y1 := r.proj.Project(coords[i][1], coords[i][0])
		x2, y2 := r.proj.Project(coords[i+1][1], coords[i+1][0])
		r.drawLine(x1, y1, x2, y2, c, alpha, weight)
	}
}

// fillPolygon is an even-odd scanline fill over all rings.
func (r *Raster) fillPolygon(rings [][][]float64, c color.RGBA, alpha float64) {
	if len(rings) == 0 || alpha <= 0 {
		return
	}
	type point struct{ x, y float64 }
	projectedRings := make([][]point, 0, len(rings))
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, ring := range rings {
		pr := make([]point, 0, len(ring))
		for _, p := range ring {
			if len(p) < 2 {
				continue
			}
			x, y := r.proj.Project(p[1], p[0])
			pr = append(pr, point{x, y})
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
		projectedRings = append(projectedRings, pr)
	}
	if math.IsInf(minY, 0) {
		return
	}
	y0 := max(0, int(math.Floor(minY)))
	y1 := min(r.proj.Height-1, int(math.Ceil(maxY)))

	var nodes []int
	for y := y0; y <= y1; y++ {
		nodes = nodes[:0]
		fy := float64(y) + 0.5
		for _, ring := range projectedRings {
			for i := 0; i < len(ring); i++ {
				j := (i + 1) % len(ring)
				if (ring[i].y < fy && ring[j].y >= fy) || (ring[j].y < fy && ring[i].y >= fy) {
					nodeX := ring[i].x + (fy-ring[i].y)/(ring[j].y-ring[i].y)*(ring[j].x-ring[i].x)
					nodes = append(nodes, int(math.Round(nodeX)))
				}
			}
		}
		sort.Ints(nodes)
		for i := 0; i+1 < len(nodes); i += 2 {
			xs, xe := max(0, nodes[i]), min(r.proj.Width, nodes[i+1])
			for x := xs; x < xe; x++ {
				r.blend(x, y, c, alpha)
			}
		}
	}
}

func (r *Raster) fillCircle(cx, cy, rad float64, c color.RGBA, alpha float64) {
	if rad <= 0 || alpha <= 0 {
		return
	}
	y0 := max(0, int(math.Floor(cy-rad)))
	y1 := min(r.proj.Height-1, int(math.Ceil(cy+rad)))
	for y := y0; y <= y1; y++ {
		dy := float64(y) + 0.5 - cy
		if math.Abs(dy) > rad {
			continue
		}
		dx := math.Sqrt(rad*rad - dy*dy)
		xs := max(0, int(math.Round(cx-dx)))
		xe := min(r.proj.Width, int(math.Round(cx+dx)))
		for x := xs; x < xe; x++ {
			r.blend(x, y, c, alpha)
		}
	}
}

func (r *Raster) strokeCircle(cx, cy, rad float64, c color.RGBA, alpha, weight float64) {
	if rad <= 0 {
		return
	}
	segments := max(16, min(720, int(rad)))
	px, py := cx+rad, cy
	for i := 1; i <= segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		x, y := cx+rad*math.Cos(a), cy+rad*math.Sin(a)
		r.drawLine(px, py, x, y, c, alpha, weight)
		px, py = x, y
	}
}

// drawLine is Bresenham with a square brush for weights above one pixel.
func (r *Raster) drawLine(fx1, fy1, fx2, fy2 float64, c color.RGBA, alpha, weight float64) {
	if alpha <= 0 || weight <= 0 {
		return
	}
	// Clip far-off segments before walking them pixel by pixel.
	w, h := float64(r.proj.Width), float64(r.proj.Height)
	if (fx1 < 0 && fx2 < 0) || (fy1 < 0 && fy2 < 0) || (fx1 >= w && fx2 >= w) || (fy1 >= h && fy2 >= h) {
		return
	}
	x1, y1, x2, y2 := int(math.Round(fx1)), int(math.Round(fy1)), int(math.Round(fx2)), int(math.Round(fy2))
	brush := int(weight) / 2

	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := -1, -1
	if x1 < x2 {
		sx = 1
	}
	if y1 < y2 {
		sy = 1
	}
	err := dx - dy
	for steps := 0; steps <= dx+dy; steps++ {
		for oy := -brush; oy <= brush; oy++ {
			for ox := -brush; ox <= brush; ox++ {
				r.plot(x1+ox, y1+oy, c, alpha)
			}
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (r *Raster) plot(x, y int, c color.RGBA, alpha float64) {
	if x < 0 || x >= r.proj.Width || y < 0 || y >= r.proj.Height {
		return
	}
	r.blend(x, y, c, alpha)
}

func (r *Raster) blend(x, y int, c color.RGBA, alpha float64) {
	off := y*r.img.Stride + x*4
	if alpha >= 1 {
		r.img.Pix[off], r.img.Pix[off+1], r.img.Pix[off+2], r.img.Pix[off+3] = c.R, c.G, c.B, 255
		return
	}
	a := alpha
	mix := func(dst, src uint8) uint8 {
		return uint8(math.Round(float64(dst)*(1-a) + float64(src)*a))
	}
	r.img.Pix[off] = mix(r.img.Pix[off], c.R)
	r.img.Pix[off+1] = mix(r.img.Pix[off+1], c.G)
	r.img.Pix[off+2] = mix(r.img.Pix[off+2], c.B)
	r.img.Pix[off+3] = 255
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
