package platform

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory backend used by tests and the "fake" dry-run backend.
type Fake struct {
	mu         sync.Mutex
	sessions   []*FakeSession
	names      map[uint32]string
	foreground uint32
	listErr    error
	closed     bool
}

var _ Backend = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{names: make(map[uint32]string)}
}

// AddSession registers an unmuted full-volume session for pid.
func (f *Fake) AddSession(pid uint32, exe string) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &FakeSession{pid: pid, volume: 1}
	f.sessions = append(f.sessions, s)
	if exe != "" {
		f.names[pid] = exe
	}
	return s
}

// RemoveSession drops the session for pid, keeping its process name.
func (f *Fake) RemoveSession(pid uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sessions[:0]
	for _, s := range f.sessions {
		if s.pid != pid {
			out = append(out, s)
		}
	}
	f.sessions = out
}

// SetProcess registers a process name without an audio session.
func (f *Fake) SetProcess(pid uint32, exe string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[pid] = exe
}

// KillProcess forgets the process name so resolution fails.
func (f *Fake) KillProcess(pid uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.names, pid)
}

func (f *Fake) SetForeground(pid uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.foreground = pid
}

func (f *Fake) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) ListSessions(ctx context.Context) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *Fake) ForegroundPID() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.foreground, nil
}

func (f *Fake) ExeName(pid uint32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[pid]
	if !ok {
		return "", fmt.Errorf("pid %d: %w", pid, ErrProcessNotFound)
	}
	return name, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// FakeSession is a scriptable Session.
type FakeSession struct {
	mu       sync.Mutex
	pid      uint32
	muted    bool
	volume   float32
	peak     float32
	muteErr  error
	muteSets int
	volSets  int
	released int
}

var _ Session = (*FakeSession)(nil)

func (s *FakeSession) PID() uint32 { return s.pid }

func (s *FakeSession) Muted() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted, nil
}

func (s *FakeSession) SetMuted(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muteErr != nil {
		return s.muteErr
	}
	s.muted = muted
	s.muteSets++
	return nil
}

func (s *FakeSession) Volume() (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume, nil
}

func (s *FakeSession) SetVolume(level float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = level
	s.volSets++
	return nil
}

func (s *FakeSession) Peak() (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak, nil
}

func (s *FakeSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

// SetPeak sets the meter value reported by Peak.
func (s *FakeSession) SetPeak(peak float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peak = peak
}

// ForceMuted changes the mute state without counting an OS call.
func (s *FakeSession) ForceMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// ForceVolume changes the volume without counting an OS call.
func (s *FakeSession) ForceVolume(level float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = level
}

// FailSetMute makes SetMuted return err until cleared with nil.
func (s *FakeSession) FailSetMute(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muteErr = err
}

// MuteCalls returns how many successful SetMuted calls were made.
func (s *FakeSession) MuteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muteSets
}

// VolumeCalls returns how many SetVolume calls were made.
func (s *FakeSession) VolumeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volSets
}

// Releases returns how many times Release was called.
func (s *FakeSession) Releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// IsMuted is Muted without the error, for assertions.
func (s *FakeSession) IsMuted() bool {
	m, _ := s.Muted()
	return m
}

// CurrentVolume is Volume without the error, for assertions.
func (s *FakeSession) CurrentVolume() float32 {
	v, _ := s.Volume()
	return v
}
