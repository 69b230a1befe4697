//go:build windows

package platform

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"
	"golang.org/x/sys/windows"
)

// WindowsBackend enumerates WASAPI sessions on the default render endpoint.
type WindowsBackend struct {
	comInitialized bool
}

var _ Backend = (*WindowsBackend)(nil)

func newNativeBackend() (Backend, error) {
	return NewWindowsBackend()
}

// NewWindowsBackend initialises COM in the multithreaded apartment so the
// session interfaces can be used from whichever thread runs the tick.
func NewWindowsBackend() (*WindowsBackend, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		// S_FALSE: already initialised on this thread.
		if !errors.As(err, &oleErr) || oleErr.Code() != 1 {
			return nil, fmt.Errorf("failed to initialize COM: %w", err)
		}
	}
	return &WindowsBackend{comInitialized: true}, nil
}

func (b *WindowsBackend) Name() string { return "windows" }

func (b *WindowsBackend) Close() error {
	if b.comInitialized {
		ole.CoUninitialize()
		b.comInitialized = false
	}
	return nil
}

func (b *WindowsBackend) ForegroundPID() (uint32, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return 0, nil
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return 0, fmt.Errorf("GetWindowThreadProcessId: %w", err)
	}
	return pid, nil
}

func (b *WindowsBackend) ExeName(pid uint32) (string, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", fmt.Errorf("pid %d: %w: %v", pid, ErrProcessNotFound, err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, 1024)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", fmt.Errorf("pid %d: %w: %v", pid, ErrProcessNotFound, err)
	}
	return filepath.Base(windows.UTF16ToString(buf[:size])), nil
}

func (b *WindowsBackend) ListSessions(ctx context.Context) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mmde *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &mmde); err != nil {
		return nil, fmt.Errorf("create device enumerator: %w", err)
	}
	defer mmde.Release()

	var mmd *wca.IMMDevice
	if err := mmde.GetDefaultAudioEndpoint(wca.ERender, wca.EConsole, &mmd); err != nil {
		return nil, fmt.Errorf("get default audio endpoint: %w", err)
	}
	defer mmd.Release()

	var asm2 *wca.IAudioSessionManager2
	if err := mmd.Activate(wca.IID_IAudioSessionManager2, wca.CLSCTX_ALL, nil, &asm2); err != nil {
		return nil, fmt.Errorf("activate session manager: %w", err)
	}
	defer asm2.Release()

	var enum *wca.IAudioSessionEnumerator
	if err := asm2.GetSessionEnumerator(&enum); err != nil {
		return nil, fmt.Errorf("get session enumerator: %w", err)
	}
	defer enum.Release()

	var count int
	if err := enum.GetCount(&count); err != nil {
		return nil, fmt.Errorf("get session count: %w", err)
	}

	sessions := make([]Session, 0, count)
	for i := 0; i < count; i++ {
		s, err := openSession(enum, i)
		if err != nil || s == nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// openSession returns nil for sessions without a single owning process,
// such as system sounds.
func openSession(enum *wca.IAudioSessionEnumerator, i int) (*wasapiSession, error) {
	var asc *wca.IAudioSessionControl
	if err := enum.GetSession(i, &asc); err != nil {
		return nil, err
	}
	defer asc.Release()

	d, err := asc.QueryInterface(wca.IID_IAudioSessionControl2)
	if err != nil {
		return nil, err
	}
	asc2 := (*wca.IAudioSessionControl2)(unsafe.Pointer(d))

	var pid uint32
	if err := asc2.GetProcessId(&pid); err != nil || pid == 0 {
		asc2.Release()
		return nil, err
	}

	vd, err := asc2.QueryInterface(wca.IID_ISimpleAudioVolume)
	if err != nil {
		asc2.Release()
		return nil, err
	}
	s := &wasapiSession{
		pid:    pid,
		ctl:    asc2,
		volume: (*wca.ISimpleAudioVolume)(unsafe.Pointer(vd)),
	}
	if md, err := asc2.QueryInterface(wca.IID_IAudioMeterInformation); err == nil {
		s.meter = (*wca.IAudioMeterInformation)(unsafe.Pointer(md))
	}
	return s, nil
}

type wasapiSession struct {
	pid    uint32
	ctl    *wca.IAudioSessionControl2
	volume *wca.ISimpleAudioVolume
	meter  *wca.IAudioMeterInformation
}

func (s *wasapiSession) PID() uint32 { return s.pid }

func (s *wasapiSession) Muted() (bool, error) {
	var muted bool
	if err := s.volume.GetMute(&muted); err != nil {
		return false, fmt.Errorf("GetMute: %w", err)
	}
	return muted, nil
}

func (s *wasapiSession) SetMuted(muted bool) error {
	if err := s.volume.SetMute(muted, nil); err != nil {
		return fmt.Errorf("SetMute: %w", err)
	}
	return nil
}

func (s *wasapiSession) Volume() (float32, error) {
	var level float32
	if err := s.volume.GetMasterVolume(&level); err != nil {
		return 0, fmt.Errorf("GetMasterVolume: %w", err)
	}
	return level, nil
}

func (s *wasapiSession) SetVolume(level float32) error {
	if err := s.volume.SetMasterVolume(level, nil); err != nil {
		return fmt.Errorf("SetMasterVolume: %w", err)
	}
	return nil
}

func (s *wasapiSession) Peak() (float32, error) {
	if s.meter == nil {
		return 0, nil
	}
	var peak float32
	if err := s.meter.GetPeakValue(&peak); err != nil {
		return 0, fmt.Errorf("GetPeakValue: %w", err)
	}
	return peak, nil
}

func (s *wasapiSession) Release() {
	if s.meter != nil {
		s.meter.Release()
		s.meter = nil
	}
	if s.volume != nil {
		s.volume.Release()
		s.volume = nil
	}
	if s.ctl != nil {
		s.ctl.Release()
		s.ctl = nil
	}
}
