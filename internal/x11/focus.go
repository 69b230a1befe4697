package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// ActiveWindow returns the window named by _NET_ACTIVE_WINDOW.
func (c *Connection) ActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// ActiveWindowPID returns the _NET_WM_PID of the focused window, or 0 when
// nothing is focused or the window does not advertise a pid. Dialogs without
// a pid resolve to the window they are transient for.
func (c *Connection) ActiveWindowPID() (uint32, error) {
	win, err := c.ActiveWindow()
	if err != nil {
		return 0, err
	}
	for hops := 0; win != 0 && hops < 4; hops++ {
		if pid, err := ewmh.WmPidGet(c.XUtil, win); err == nil && pid != 0 {
			return uint32(pid), nil
		}
		parent, err := icccm.WmTransientForGet(c.XUtil, win)
		if err != nil || parent == win {
			break
		}
		win = parent
	}
	return 0, nil
}
