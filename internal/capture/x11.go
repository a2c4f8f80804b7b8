package capture

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// maxStripBytes caps a single GetImage reply; larger areas are fetched in
// horizontal strips.
const maxStripBytes = 4 << 20

var displayAtoms = []string{"_NET_CLIENT_LIST", "_NET_WM_NAME", "UTF8_STRING"}

// Display is a lazily opened X11 connection shared by every source on the
// same display. A failed request drops the connection so the next call
// reconnects.
type Display struct {
	name string

	mu    sync.Mutex
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
	order byte // setup image byte order
	bpp   map[byte]byte
}

// NewDisplay returns a handle for the X display name; empty means $DISPLAY.
func NewDisplay(name string) *Display {
	return &Display{name: name}
}

// Name returns the display name as configured.
func (d *Display) Name() string {
	if d.name == "" {
		return "$DISPLAY"
	}
	return d.name
}

// Ping opens the connection if needed.
func (d *Display) Ping() error {
	_, err := d.connect()
	return err
}

// Close drops the connection.
func (d *Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

type session struct {
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
	order byte
	bpp   map[byte]byte
}

func (d *Display) connect() (*session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		conn, err := xgb.NewConnDisplay(d.name)
		if err != nil {
			return nil, fmt.Errorf("connect to X display %s: %w", d.Name(), err)
		}

		setup := xproto.Setup(conn)
		atoms := make(map[string]xproto.Atom, len(displayAtoms))
		for _, name := range displayAtoms {
			reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("intern atom %s: %w", name, err)
			}
			atoms[name] = reply.Atom
		}
		bpp := make(map[byte]byte, len(setup.PixmapFormats))
		for _, f := range setup.PixmapFormats {
			bpp[f.Depth] = f.BitsPerPixel
		}

		d.conn = conn
		d.root = setup.DefaultScreen(conn).Root
		d.atoms = atoms
		d.order = setup.ImageByteOrder
		d.bpp = bpp
	}

	return &session{conn: d.conn, root: d.root, atoms: d.atoms, order: d.order, bpp: d.bpp}, nil
}

func (d *Display) reset(conn *xgb.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == conn {
		d.closeLocked()
	}
}

func (d *Display) closeLocked() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

// Windows lists top-level windows with a non-empty title. It prefers the
// window manager's _NET_CLIENT_LIST and falls back to the root's mapped
// children.
func (d *Display) Windows() ([]Window, error) {
	s, err := d.connect()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	ids, err := s.clientList()
	if err != nil {
		d.reset(s.conn)
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	windows := make([]Window, 0, len(ids))
	for _, id := range ids {
		title := s.windowName(id)
		if title == "" {
			continue
		}
		geom, err := xproto.GetGeometry(s.conn, xproto.Drawable(id)).Reply()
		if err != nil {
			// Window vanished between listing and querying.
			continue
		}
		windows = append(windows, Window{
			ID:     uint32(id),
			Title:  title,
			Width:  int(geom.Width),
			Height: int(geom.Height),
		})
	}
	return windows, nil
}

func (s *session) clientList() ([]xproto.Window, error) {
	reply, err := xproto.GetProperty(s.conn, false, s.root, s.atoms["_NET_CLIENT_LIST"],
		xproto.AtomWindow, 0, 1<<16).Reply()
	if err == nil && reply.Format == 32 && len(reply.Value) > 0 {
		return parseWindowList(reply.Value), nil
	}

	tree, err := xproto.QueryTree(s.conn, s.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("query tree: %w", err)
	}
	mapped := make([]xproto.Window, 0, len(tree.Children))
	for _, child := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(s.conn, child).Reply()
		if err != nil || attrs.MapState != xproto.MapStateViewable {
			continue
		}
		mapped = append(mapped, child)
	}
	return mapped, nil
}

// parseWindowList decodes a format-32 window property value.
func parseWindowList(value []byte) []xproto.Window {
	ids := make([]xproto.Window, 0, len(value)/4)
	for i := 0; i+4 <= len(value); i += 4 {
		ids = append(ids, xproto.Window(xgb.Get32(value[i:])))
	}
	return ids
}

func (s *session) windowName(win xproto.Window) string {
	reply, err := xproto.GetProperty(s.conn, false, win, s.atoms["_NET_WM_NAME"],
		s.atoms["UTF8_STRING"], 0, 256).Reply()
	if err == nil && len(reply.Value) > 0 {
		return strings.TrimRight(string(reply.Value), "\x00")
	}
	reply, err = xproto.GetProperty(s.conn, false, win, xproto.AtomWmName,
		xproto.AtomString, 0, 256).Reply()
	if err == nil && len(reply.Value) > 0 {
		return strings.TrimRight(string(reply.Value), "\x00")
	}
	return ""
}

// grab copies rect of the root window, or all of it when full is set.
// Reading from the root rather than the target window keeps overlapped and
// composited windows from failing with BadMatch.
func (d *Display) grab(rect image.Rectangle, full bool) (*image.RGBA, error) {
	s, err := d.connect()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	img, err := s.grab(rect, full)
	if err != nil {
		d.reset(s.conn)
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	return img, nil
}

func (s *session) rootBounds() (image.Rectangle, error) {
	geom, err := xproto.GetGeometry(s.conn, xproto.Drawable(s.root)).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("root geometry: %w", err)
	}
	return image.Rect(0, 0, int(geom.Width), int(geom.Height)), nil
}

func (s *session) grab(rect image.Rectangle, full bool) (*image.RGBA, error) {
	bounds, err := s.rootBounds()
	if err != nil {
		return nil, err
	}
	if full {
		rect = bounds
	}
	rect = rect.Intersect(bounds)
	if rect.Empty() {
		return nil, errors.New("capture area is empty or off screen")
	}

	w, h := rect.Dx(), rect.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	rows := maxStripBytes / (w * 4)
	if rows < 1 {
		rows = 1
	}
	for y := 0; y < h; y += rows {
		n := rows
		if y+n > h {
			n = h - y
		}
		reply, err := xproto.GetImage(s.conn, xproto.ImageFormatZPixmap, xproto.Drawable(s.root),
			int16(rect.Min.X), int16(rect.Min.Y+y), uint16(w), uint16(n), 0xffffffff).Reply()
		if err != nil {
			return nil, fmt.Errorf("get image: %w", err)
		}

		strip, err := zpixmapToRGBA(reply.Data, w, n, s.bpp[reply.Depth], s.order == xproto.ImageOrderLSBFirst)
		if err != nil {
			return nil, err
		}
		copy(out.Pix[y*out.Stride:], strip.Pix)
	}
	return out, nil
}

// windowRect returns win's rectangle in root coordinates.
func (s *session) windowRect(win xproto.Window) (image.Rectangle, error) {
	geom, err := xproto.GetGeometry(s.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("window geometry: %w", err)
	}
	pos, err := xproto.TranslateCoordinates(s.conn, win, s.root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("translate coordinates: %w", err)
	}
	x, y := int(pos.DstX), int(pos.DstY)
	return image.Rect(x, y, x+int(geom.Width), y+int(geom.Height)), nil
}

// zpixmapToRGBA converts 32 bits-per-pixel ZPixmap data (depth 24 or 32) to
// opaque RGBA. lsbFirst selects BGRX byte order, otherwise XRGB.
func zpixmapToRGBA(data []byte, w, h int, bitsPerPixel byte, lsbFirst bool) (*image.RGBA, error) {
	if bitsPerPixel != 32 {
		return nil, fmt.Errorf("unsupported pixmap format: %d bits per pixel", bitsPerPixel)
	}
	stride := w * 4
	if len(data) < stride*h {
		return nil, fmt.Errorf("short image data: got %d bytes, want %d", len(data), stride*h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		px := data[i*4 : i*4+4]
		o := img.Pix[i*4 : i*4+4]
		if lsbFirst {
			o[0], o[1], o[2] = px[2], px[1], px[0]
		} else {
			o[0], o[1], o[2] = px[1], px[2], px[3]
		}
		o[3] = 0xff
	}
	return img, nil
}
