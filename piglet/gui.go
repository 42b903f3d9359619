package piglet

import (
	"fmt"
	"image"
	"image/draw"
	"log"
	"sync"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/nf/piglet/chip8"
)

// GUI is a Frontend that shows the display in a window.
// Key presses and releases in the window are fed to a Keypad.
type GUI struct {
	keys  *Keypad
	scale int

	mu      sync.Mutex
	frame   chip8.Grid
	changed bool
}

func NewGUI(keys *Keypad, cfg Config) *GUI {
	return &GUI{keys: keys, scale: cfg.Scale}
}

// Redraw implements chip8.Sink. The frame is shown at the next window
// update.
func (g *GUI) Redraw(cur, prev *chip8.Grid, dirty bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frame = *cur
	g.changed = g.changed || dirty
	return nil
}

func (g *GUI) Run(exit <-chan bool) (err error) {
	driver.Main(func(s screen.Screen) {
		dim := image.Point{chip8.Width * g.scale, chip8.Height * g.scale}
		w, werr := s.NewWindow(&screen.NewWindowOptions{
			Title:  "piglet",
			Width:  dim.X,
			Height: dim.Y,
		})
		if werr != nil {
			err = werr
			return
		}
		defer w.Release()

		buf, berr := s.NewBuffer(dim)
		if berr != nil {
			err = berr
			return
		}
		defer buf.Release()
		tex, terr := s.NewTexture(dim)
		if terr != nil {
			err = terr
			return
		}
		defer tex.Release()

		type update struct{}
		go func() {
			t := time.NewTicker(time.Second / 60)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					w.Send(update{})
				case <-exit:
					w.Send(update{})
					return
				}
			}
		}()

		var sz size.Event
		for {
			e := w.NextEvent()

			select {
			case <-exit:
				return
			default:
			}

			switch e := e.(type) {
			case size.Event:
				sz = e
				if sz.WidthPx+sz.HeightPx == 0 {
					return
				}

			case lifecycle.Event:
				if e.To == lifecycle.StageDead {
					return
				}

			case key.Event:
				if e.Code == key.CodeEscape {
					return
				}
				k, ok := codeKeys[e.Code]
				if !ok {
					break
				}
				switch e.Direction {
				case key.DirPress:
					g.keys.Press(k)
				case key.DirRelease:
					g.keys.Release(k)
				}

			case paint.Event:
				g.publish(w, buf, tex, sz, true)

			case update:
				g.publish(w, buf, tex, sz, false)

			case mouse.Event:
				// Ignored.

			case error:
				log.Print(e)

			default:
				format := "gui: got %#v\n"
				if _, ok := e.(fmt.Stringer); ok {
					format = "gui: got %v\n"
				}
				log.Printf(format, e)
			}
		}
	})
	return err
}

func (g *GUI) publish(w screen.Window, buf screen.Buffer, tex screen.Texture, sz size.Event, force bool) {
	g.mu.Lock()
	frame, changed := g.frame, g.changed
	g.changed = false
	g.mu.Unlock()
	if !changed && !force {
		return
	}
	renderFrame(buf.RGBA(), &frame)
	tex.Upload(image.Point{}, buf, buf.Bounds())
	w.Scale(sz.Bounds(), tex, tex.Bounds(), draw.Src, nil)
	w.Publish()
}

var codeKeys = map[key.Code]chip8.Key{
	key.Code1: 0x1, key.Code2: 0x2, key.Code3: 0x3, key.Code4: 0xc,
	key.CodeQ: 0x4, key.CodeW: 0x5, key.CodeE: 0x6, key.CodeR: 0xd,
	key.CodeA: 0x7, key.CodeS: 0x8, key.CodeD: 0x9, key.CodeF: 0xe,
	key.CodeZ: 0xa, key.CodeX: 0x0, key.CodeC: 0xb, key.CodeV: 0xf,
}
