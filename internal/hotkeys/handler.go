package hotkeys

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/1broseidon/focusmute/internal/platform"
	"github.com/1broseidon/focusmute/internal/policy"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// ErrNoX11 is returned when the backend cannot grab global keys.
var ErrNoX11 = errors.New("global hotkeys require the x11 backend")

// StateRunner applies a change to the policy state between ticks.
type StateRunner interface {
	Do(ctx context.Context, fn func(st *policy.State) error) error
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	runner StateRunner
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler.
func NewHandler(backend platform.Backend, runner StateRunner) (*Handler, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil, ErrNoX11
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:     xu,
		root:   accessor.RootWindow(),
		runner: runner,
	}, nil
}

// RegisterLockToggle binds keySequence to pausing and resuming automatic muting.
func (h *Handler) RegisterLockToggle(keySequence string) error {
	return h.RegisterFunc(keySequence, func() {
		locked, err := ToggleLock(context.Background(), h.runner)
		if err != nil {
			log.Printf("Lock toggle failed: %v", err)
			return
		}
		log.Printf("Lock hotkey triggered, locked=%v", locked)
	})
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		// Key events arrive on the X event loop; keep it responsive.
		go callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

// ToggleLock flips the lock flag and returns the new value.
func ToggleLock(ctx context.Context, runner StateRunner) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var locked bool
	err := runner.Do(ctx, func(st *policy.State) error {
		locked = !st.Locked()
		return st.SetLocked(locked)
	})
	return locked, err
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)
	numLock := modMaskForKeysym(xu, "Num_Lock")

	ignore := []uint16{0, caps}
	if numLock != 0 && numLock != caps {
		ignore = append(ignore, numLock, numLock|caps)
	}
	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
