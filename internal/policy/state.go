// Package policy holds the user-configurable mute policy and the transient
// per-tick state the decision engine carries between polls.
//
// A State is not safe for concurrent use. The daemon confines it to the
// runner goroutine and funnels every external mutation through it.
package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

var (
	ErrEmptyName      = errors.New("application name is empty")
	ErrUnknownFlag    = errors.New("unknown flag")
	ErrVolumeRange    = errors.New("volume must be between 0 and 100")
	ErrGroupTooSmall  = errors.New("mute group needs at least two distinct applications")
	ErrGroupNotFound  = errors.New("mute group index out of range")
	ErrNotAnException = errors.New("application is not an exception")
)

// DefaultVolume is the target volume for apps without an explicit entry.
const DefaultVolume = 100

// Persister stores the full policy document.
type Persister interface {
	Save(doc Document) error
}

// State is the live policy.
type State struct {
	exceptions     map[string]struct{}
	overrides      map[string]bool
	volumes        map[string]int
	groups         [][]string
	pidMatch       map[string]struct{}
	flags          Flags
	locked         bool
	windowGeometry string

	// LastForegroundPID is the most recent session pid seen in the
	// foreground. Zero means none.
	LastForegroundPID uint32
	// ZeroActivityCount counts consecutive ticks without exception audio.
	ZeroActivityCount int

	pendingUnmute map[string]struct{}

	persister Persister
	logger    *slog.Logger
}

// New builds a State from a persisted document.
func New(doc Document, persister Persister, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	s := &State{
		persister:     persister,
		logger:        logger,
		pendingUnmute: make(map[string]struct{}),
	}
	s.load(doc)
	return s
}

func (s *State) load(doc Document) {
	s.exceptions = make(map[string]struct{}, len(doc.Exceptions))
	for _, name := range doc.Exceptions {
		if n := NormalizeName(name); n != "" {
			s.exceptions[n] = struct{}{}
		}
	}

	s.overrides = make(map[string]bool, len(doc.ForceMute))
	for name, muted := range doc.ForceMute {
		if n := NormalizeName(name); n != "" {
			s.overrides[n] = muted
		}
	}

	s.volumes = make(map[string]int, len(doc.Volumes))
	for name, v := range doc.Volumes {
		n := NormalizeName(name)
		if n == "" {
			continue
		}
		s.volumes[n] = clampVolume(v)
	}

	s.groups = nil
	for _, g := range doc.MuteGroups {
		if members := normalizeGroup(g); len(members) >= 2 {
			s.groups = append(s.groups, members)
		}
	}

	s.pidMatch = make(map[string]struct{}, len(doc.PIDMatch))
	for _, name := range doc.PIDMatch {
		if n := NormalizeName(name); n != "" {
			s.pidMatch[n] = struct{}{}
		}
	}

	s.flags = doc.Flags
	s.locked = doc.Locked
	s.windowGeometry = doc.WindowGeometry
}

// Reload replaces every persisted field. Transient tick state is kept, and
// apps that joined or left the exception set get the same one-shot unmute
// as AddException and RemoveException.
func (s *State) Reload(doc Document) {
	before := s.exceptions
	s.load(doc)
	for n := range before {
		if _, ok := s.exceptions[n]; !ok {
			s.pendingUnmute[n] = struct{}{}
		}
	}
	for n := range s.exceptions {
		if _, ok := before[n]; !ok {
			s.pendingUnmute[n] = struct{}{}
		}
	}
}

// Document returns a sorted snapshot of the persisted fields.
func (s *State) Document() Document {
	doc := Document{
		Exceptions:     sortedKeys(s.exceptions),
		Volumes:        make(map[string]int, len(s.volumes)),
		ForceMute:      make(map[string]bool, len(s.overrides)),
		PIDMatch:       sortedKeys(s.pidMatch),
		Flags:          s.flags,
		Locked:         s.locked,
		WindowGeometry: s.windowGeometry,
	}
	for k, v := range s.volumes {
		doc.Volumes[k] = v
	}
	for k, v := range s.overrides {
		doc.ForceMute[k] = v
	}
	for _, g := range s.groups {
		doc.MuteGroups = append(doc.MuteGroups, append([]string(nil), g...))
	}
	return doc
}

func (s *State) persist() error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(s.Document()); err != nil {
		s.logger.Warn("failed to persist policy", "error", err)
		return fmt.Errorf("persist policy: %w", err)
	}
	return nil
}

// Accessors.

func (s *State) Locked() bool { return s.locked }

func (s *State) Flags() Flags { return s.flags }

func (s *State) IsException(name string) bool {
	_, ok := s.exceptions[NormalizeName(name)]
	return ok
}

// Override reports the manual mute override for name, if any.
func (s *State) Override(name string) (muted bool, ok bool) {
	muted, ok = s.overrides[NormalizeName(name)]
	return muted, ok
}

// TargetVolume returns the configured volume for name in 0..100.
func (s *State) TargetVolume(name string) int {
	if v, ok := s.volumes[NormalizeName(name)]; ok {
		return v
	}
	return DefaultVolume
}

// SameGroup reports whether a and b appear together in any mute group.
func (s *State) SameGroup(a, b string) bool {
	a, b = NormalizeName(a), NormalizeName(b)
	for _, g := range s.groups {
		var hasA, hasB bool
		for _, m := range g {
			if m == a {
				hasA = true
			}
			if m == b {
				hasB = true
			}
		}
		if hasA && hasB {
			return true
		}
	}
	return false
}

func (s *State) RequiresPIDMatch(name string) bool {
	_, ok := s.pidMatch[NormalizeName(name)]
	return ok
}

// PendingUnmute reports whether name has a one-shot unmute queued.
func (s *State) PendingUnmute(name string) bool {
	_, ok := s.pendingUnmute[NormalizeName(name)]
	return ok
}

// ClearPendingUnmute drops the one-shot unmute queue.
func (s *State) ClearPendingUnmute() {
	if len(s.pendingUnmute) > 0 {
		s.pendingUnmute = make(map[string]struct{})
	}
}

func (s *State) WindowGeometry() string { return s.windowGeometry }

// Mutators. Each one persists immediately when it changes something.

func (s *State) AddException(name string) error {
	n := NormalizeName(name)
	if n == "" {
		return ErrEmptyName
	}
	if _, ok := s.exceptions[n]; ok {
		return nil
	}
	s.exceptions[n] = struct{}{}
	s.pendingUnmute[n] = struct{}{}
	return s.persist()
}

func (s *State) RemoveException(name string) error {
	n := NormalizeName(name)
	if n == "" {
		return ErrEmptyName
	}
	if _, ok := s.exceptions[n]; !ok {
		return ErrNotAnException
	}
	delete(s.exceptions, n)
	s.pendingUnmute[n] = struct{}{}
	return s.persist()
}

func (s *State) SetOverride(name string, muted bool) error {
	n := NormalizeName(name)
	if n == "" {
		return ErrEmptyName
	}
	if cur, ok := s.overrides[n]; ok && cur == muted {
		return nil
	}
	s.overrides[n] = muted
	return s.persist()
}

func (s *State) ClearOverride(name string) error {
	n := NormalizeName(name)
	if n == "" {
		return ErrEmptyName
	}
	if _, ok := s.overrides[n]; !ok {
		return nil
	}
	delete(s.overrides, n)
	return s.persist()
}

func (s *State) SetVolume(name string, volume int) error {
	n := NormalizeName(name)
	if n == "" {
		return ErrEmptyName
	}
	if volume < 0 || volume > 100 {
		return ErrVolumeRange
	}
	if cur, ok := s.volumes[n]; ok && cur == volume {
		return nil
	}
	s.volumes[n] = volume
	return s.persist()
}

func (s *State) ClearVolume(name string) error {
	n := NormalizeName(name)
	if n == "" {
		return ErrEmptyName
	}
	if _, ok := s.volumes[n]; !ok {
		return nil
	}
	delete(s.volumes, n)
	return s.persist()
}

// AddMuteGroup adds a group of apps treated as one for focus matching.
func (s *State) AddMuteGroup(names []string) error {
	members := normalizeGroup(names)
	if len(members) < 2 {
		return ErrGroupTooSmall
	}
	for _, g := range s.groups {
		if equalStrings(g, members) {
			return nil
		}
	}
	s.groups = append(s.groups, members)
	return s.persist()
}

func (s *State) RemoveMuteGroup(index int) error {
	if index < 0 || index >= len(s.groups) {
		return ErrGroupNotFound
	}
	s.groups = append(s.groups[:index:index], s.groups[index+1:]...)
	return s.persist()
}

func (s *State) AddPIDMatch(name string) error {
	n := NormalizeName(name)
	if n == "" {
		return ErrEmptyName
	}
	if _, ok := s.pidMatch[n]; ok {
		return nil
	}
	s.pidMatch[n] = struct{}{}
	return s.persist()
}

func (s *State) RemovePIDMatch(name string) error {
	n := NormalizeName(name)
	if n == "" {
		return ErrEmptyName
	}
	if _, ok := s.pidMatch[n]; !ok {
		return nil
	}
	delete(s.pidMatch, n)
	return s.persist()
}

func (s *State) SetFlag(flag Flag, v bool) error {
	if _, err := ParseFlag(string(flag)); err != nil {
		return fmt.Errorf("%w: %q", err, flag)
	}
	if !s.flags.set(flag, v) {
		return nil
	}
	return s.persist()
}

func (s *State) SetLocked(locked bool) error {
	if s.locked == locked {
		return nil
	}
	s.locked = locked
	return s.persist()
}

func (s *State) SetWindowGeometry(geometry string) error {
	if s.windowGeometry == geometry {
		return nil
	}
	s.windowGeometry = geometry
	return s.persist()
}

func normalizeGroup(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if n := NormalizeName(name); n != "" {
			seen[n] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
