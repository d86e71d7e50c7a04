package infra

import (
	"context"
	"encoding/binary"
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// Property lengths are in 32-bit units.
const (
	maxClientList = 1 << 14
	maxTitleLen   = 256
	maxAtomList   = 32
)

var x11AtomNames = []string{
	"_NET_CLIENT_LIST",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"_NET_WM_WINDOW_TYPE",
	"_NET_WM_STATE",
	"_NET_WM_STATE_SKIP_TASKBAR",
	"WM_NAME",
	"UTF8_STRING",
}

// Window types that are not applications in their own right.
var x11ToolTypes = []string{
	"_NET_WM_WINDOW_TYPE_UTILITY",
	"_NET_WM_WINDOW_TYPE_TOOLBAR",
	"_NET_WM_WINDOW_TYPE_DOCK",
	"_NET_WM_WINDOW_TYPE_DESKTOP",
	"_NET_WM_WINDOW_TYPE_MENU",
	"_NET_WM_WINDOW_TYPE_DROPDOWN_MENU",
	"_NET_WM_WINDOW_TYPE_POPUP_MENU",
	"_NET_WM_WINDOW_TYPE_SPLASH",
	"_NET_WM_WINDOW_TYPE_NOTIFICATION",
	"_NET_WM_WINDOW_TYPE_TOOLTIP",
}

// X11WindowSource implements domain.WindowSource via EWMH properties on the root window.
type X11WindowSource struct {
	conn      *xgb.Conn
	root      xproto.Window
	atoms     map[string]xproto.Atom
	toolTypes map[xproto.Atom]bool
}

// NewX11WindowSource connects to $DISPLAY and interns the atoms it needs.
func NewX11WindowSource() (*X11WindowSource, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}

	s := &X11WindowSource{
		conn:      conn,
		root:      xproto.Setup(conn).DefaultScreen(conn).Root,
		atoms:     make(map[string]xproto.Atom),
		toolTypes: make(map[xproto.Atom]bool),
	}

	for _, name := range append(append([]string{}, x11AtomNames...), x11ToolTypes...) {
		atom, err := s.intern(name)
		if err != nil {
			conn.Close()
			return nil, err
		}
		s.atoms[name] = atom
	}
	for _, name := range x11ToolTypes {
		s.toolTypes[s.atoms[name]] = true
	}
	return s, nil
}

func (s *X11WindowSource) intern(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(s.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to intern atom %s", name)
	}
	return reply.Atom, nil
}

// Windows lists managed top-level windows. Per-window property failures
// (window destroyed mid-enumeration) leave that field empty.
func (s *X11WindowSource) Windows(ctx context.Context) ([]domain.WindowRecord, error) {
	data, err := s.property(s.root, s.atoms["_NET_CLIENT_LIST"], xproto.AtomWindow, maxClientList)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read _NET_CLIENT_LIST")
	}

	ids := decodeUint32s(data)
	out := make([]domain.WindowRecord, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		w := xproto.Window(id)
		out = append(out, domain.WindowRecord{
			ID:    id,
			Title: s.title(w),
			PID:   s.pid(w),
			Tool:  s.isTool(w),
		})
	}
	return out, nil
}

func (s *X11WindowSource) property(w xproto.Window, atom, typ xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(s.conn, false, w, atom, typ, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (s *X11WindowSource) title(w xproto.Window) string {
	if data, err := s.property(w, s.atoms["_NET_WM_NAME"], s.atoms["UTF8_STRING"], maxTitleLen); err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	if data, err := s.property(w, s.atoms["WM_NAME"], xproto.AtomString, maxTitleLen); err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	return ""
}

func (s *X11WindowSource) pid(w xproto.Window) int {
	data, err := s.property(w, s.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return int(binary.LittleEndian.Uint32(data))
}

func (s *X11WindowSource) isTool(w xproto.Window) bool {
	if data, err := s.property(w, s.atoms["_NET_WM_WINDOW_TYPE"], xproto.AtomAtom, maxAtomList); err == nil {
		for _, a := range decodeUint32s(data) {
			if s.toolTypes[xproto.Atom(a)] {
				return true
			}
		}
	}
	if data, err := s.property(w, s.atoms["_NET_WM_STATE"], xproto.AtomAtom, maxAtomList); err == nil {
		for _, a := range decodeUint32s(data) {
			if xproto.Atom(a) == s.atoms["_NET_WM_STATE_SKIP_TASKBAR"] {
				return true
			}
		}
	}
	return false
}

// Close releases the X connection.
func (s *X11WindowSource) Close() error {
	s.conn.Close()
	return nil
}

func decodeUint32s(data []byte) []uint32 {
	out := make([]uint32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(data[i:]))
	}
	return out
}

// Ensure X11WindowSource implements domain.WindowSource.
var _ domain.WindowSource = (*X11WindowSource)(nil)
