package chip8

const (
	Width  = 64
	Height = 32

	// MaxSprite is the largest number of rows a single DRW can draw.
	MaxSprite = 15
)

// Grid holds one monochrome frame, one byte (0 or 1) per pixel in
// row-major order.
type Grid [Width * Height]byte

// At returns the pixel at x, y.
func (g *Grid) At(x, y int) byte { return g[y*Width+x] }

// Display is the CHIP-8 pixel surface. It holds the current frame and the
// frame last handed to a Sink.
type Display struct {
	cur, prev Grid
	dirty     bool
}

// Sink presents frames to the outside world.
// Redraw is called with the frame to show, the frame shown previously
// and whether they differ.
type Sink interface {
	Redraw(cur, prev *Grid, dirty bool) error
}

// Clear sets every pixel to 0.
func (d *Display) Clear() {
	d.cur = Grid{}
	d.dirty = true
}

// Pixel returns the current value of the pixel at x, y.
func (d *Display) Pixel(x, y int) byte { return d.cur.At(x, y) }

// Dirty reports whether the surface changed since the last Redraw.
func (d *Display) Dirty() bool { return d.dirty }

// DrawSprite XORs the sprite, 8 pixels wide and len(sprite) rows high, onto
// the surface with its top-left corner at x, y. Coordinates wrap around the
// edges of the surface. It reports whether any pixel was turned off.
func (d *Display) DrawSprite(sprite []byte, x, y byte) (erased bool) {
	for r, row := range sprite {
		ty := (int(y) + r) % Height
		for b := 0; b < 8; b++ {
			px := row >> (7 - b) & 1
			if px == 0 {
				continue
			}
			tx := (int(x) + b) % Width
			i := ty*Width + tx
			if d.cur[i] == 1 {
				erased = true
			}
			d.cur[i] ^= 1
		}
	}
	d.dirty = true
	return erased
}

// Redraw hands the current frame to s and records it as shown.
// It does nothing if the surface is not dirty.
func (d *Display) Redraw(s Sink) error {
	if !d.dirty {
		return nil
	}
	if err := s.Redraw(&d.cur, &d.prev, true); err != nil {
		return err
	}
	d.prev = d.cur
	d.dirty = false
	return nil
}
