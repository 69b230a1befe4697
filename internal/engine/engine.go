// Package engine computes, once per tick, whether every live audio session
// should be muted and applies the result.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/1broseidon/focusmute/internal/platform"
	"github.com/1broseidon/focusmute/internal/policy"
)

const (
	DefaultActivityWindow  = 30
	DefaultVolumeTolerance = 0.001
)

// Options tune the engine.
type Options struct {
	// ActivityWindow is how many silent ticks after exception audio the
	// foreground app stays muted when that flag is set. Zero is a literal
	// window (muted only on the tick right after exception audio); a negative
	// value selects DefaultActivityWindow.
	ActivityWindow  int
	VolumeTolerance float64
	Logger          *slog.Logger
	Sinks           []Sink
	Observers       []TickObserver
	Now             func() time.Time
}

// Engine runs the two-pass mute decision over a platform backend.
type Engine struct {
	backend        platform.Backend
	activityWindow int
	tolerance      float64
	logger         *slog.Logger
	sinks          []Sink
	observers      []TickObserver
	now            func() time.Time
	warnLimiter    *rate.Limiter
}

func New(backend platform.Backend, opts Options) *Engine {
	e := &Engine{
		backend:        backend,
		activityWindow: opts.ActivityWindow,
		tolerance:      opts.VolumeTolerance,
		logger:         opts.Logger,
		sinks:          opts.Sinks,
		observers:      opts.Observers,
		now:            opts.Now,
		warnLimiter:    rate.NewLimiter(rate.Every(5*time.Second), 3),
	}
	if e.activityWindow < 0 {
		e.activityWindow = DefaultActivityWindow
	}
	if e.tolerance <= 0 {
		e.tolerance = DefaultVolumeTolerance
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// AddSink registers another transition sink.
func (e *Engine) AddSink(s Sink) {
	e.sinks = append(e.sinks, s)
}

// AddObserver registers another tick observer.
func (e *Engine) AddObserver(o TickObserver) {
	e.observers = append(e.observers, o)
}

// SetActivityWindow changes the background activity window.
func (e *Engine) SetActivityWindow(ticks int) {
	if ticks >= 0 {
		e.activityWindow = ticks
	}
}

type entry struct {
	session platform.Session
	pid     uint32
	app     string
}

type foreground struct {
	pid uint32
	app string
}

// Tick enumerates sessions, decides and applies mute state, and advances
// the carried-forward counters in st. It never returns an error; OS
// failures are reported and the affected session is left unchanged.
func (e *Engine) Tick(ctx context.Context, st *policy.State) (r Report) {
	start := e.now()
	r.Time = start
	defer func() {
		r.Duration = e.now().Sub(start)
		for _, o := range e.observers {
			o.TickCompleted(r)
		}
	}()

	if st.Locked() {
		r.Locked = true
		r.ZeroActivityCount = st.ZeroActivityCount
		r.LastForegroundPID = st.LastForegroundPID
		return r
	}

	sessions, err := e.backend.ListSessions(ctx)
	if err != nil {
		e.osError(&r, "list_sessions", 0, "", err)
		r.ZeroActivityCount = st.ZeroActivityCount
		r.LastForegroundPID = st.LastForegroundPID
		return r
	}
	defer platform.ReleaseAll(sessions)

	entries := e.resolve(sessions)
	fg := e.foreground()
	r.ForegroundPID = fg.pid
	r.ForegroundApp = fg.app

	// Pass 1: activity scan over exception apps.
	anyActive := false
	for _, en := range entries {
		if !st.IsException(en.app) {
			continue
		}
		peak, err := en.session.Peak()
		if err != nil {
			e.osError(&r, "peak", en.pid, en.app, err)
			continue
		}
		if peak > 0 {
			anyActive = true
			break
		}
	}
	r.AnyExceptionActive = anyActive

	// Pass 2: per-session decision. Every session compares against the
	// last foreground pid as it was when the tick started.
	p := pass{fg: fg, anyActive: anyActive, lastForeground: st.LastForegroundPID}
	for _, en := range entries {
		if d, ok := e.decideAndApply(&r, st, en, p); ok {
			r.Decisions = append(r.Decisions, d)
		}
	}

	if anyActive {
		st.ZeroActivityCount = 0
	} else {
		st.ZeroActivityCount++
	}
	st.ClearPendingUnmute()

	r.ZeroActivityCount = st.ZeroActivityCount
	r.LastForegroundPID = st.LastForegroundPID
	return r
}

// resolve drops sessions whose process cannot be named this tick.
func (e *Engine) resolve(sessions []platform.Session) []entry {
	entries := make([]entry, 0, len(sessions))
	for _, s := range sessions {
		pid := s.PID()
		if pid == 0 {
			continue
		}
		name, err := e.backend.ExeName(pid)
		if err != nil {
			if !errors.Is(err, platform.ErrProcessNotFound) {
				e.logger.Debug("failed to resolve session process", "pid", pid, "error", err)
			}
			continue
		}
		app := policy.NormalizeName(name)
		if app == "" {
			continue
		}
		entries = append(entries, entry{session: s, pid: pid, app: app})
	}
	return entries
}

func (e *Engine) foreground() foreground {
	pid, err := e.backend.ForegroundPID()
	if err != nil {
		e.logger.Debug("failed to resolve foreground window", "error", err)
		return foreground{}
	}
	if pid == 0 {
		return foreground{}
	}
	name, err := e.backend.ExeName(pid)
	if err != nil {
		return foreground{pid: pid}
	}
	return foreground{pid: pid, app: policy.NormalizeName(name)}
}

// pass is the per-tick input shared by every pass 2 decision.
type pass struct {
	fg             foreground
	anyActive      bool
	lastForeground uint32
}

func (e *Engine) decideAndApply(r *Report, st *policy.State, en entry, p pass) (Decision, bool) {
	muted, err := en.session.Muted()
	if err != nil {
		e.osError(r, "get_mute", en.pid, en.app, err)
		return Decision{}, false
	}
	d := Decision{
		PID:       en.pid,
		App:       en.app,
		WasMuted:  muted,
		Exception: st.IsException(en.app),
	}

	if !muted {
		e.syncVolume(r, st, en)
	}
	if v, err := en.session.Volume(); err == nil {
		d.Volume = v
	}

	shouldMute, reason := e.decide(st, en, p)
	d.Foreground = reason == ReasonForeground
	// Pending unmutes never override a cascade that keeps the session muted.
	if muted && !shouldMute && st.PendingUnmute(en.app) {
		reason = ReasonExceptionChanged
	}
	d.Reason = reason

	if shouldMute != muted {
		if err := en.session.SetMuted(shouldMute); err != nil {
			e.osError(r, "set_mute", en.pid, en.app, err)
		} else {
			muted = shouldMute
			action := ActionUnmute
			if shouldMute {
				action = ActionMute
			}
			e.emit(r, en, action, reason, 0)
		}
	}

	d.Muted = muted
	d.Changed = muted != d.WasMuted
	return d, true
}

func (e *Engine) syncVolume(r *Report, st *policy.State, en entry) {
	current, err := en.session.Volume()
	if err != nil {
		e.osError(r, "get_volume", en.pid, en.app, err)
		return
	}
	target := float32(st.TargetVolume(en.app)) / 100
	if math.Abs(float64(current-target)) <= e.tolerance {
		return
	}
	if err := en.session.SetVolume(target); err != nil {
		e.osError(r, "set_volume", en.pid, en.app, err)
		return
	}
	e.emit(r, en, ActionVolume, ReasonVolumeTarget, target)
}

// decide evaluates the rule cascade for one session.
func (e *Engine) decide(st *policy.State, en entry, p pass) (bool, Reason) {
	if muted, ok := st.Override(en.app); ok {
		return muted, ReasonManualOverride
	}

	flags := st.Flags()
	if st.IsException(en.app) {
		if flags.ForceMuteBackground {
			return true, ReasonForceMuteBackground
		}
		return false, ReasonExceptionApp
	}

	if flags.ForceMuteForeground {
		return true, ReasonForceMuteForeground
	}
	if flags.MuteForegroundWhenBackgroundActive && st.ZeroActivityCount <= e.activityWindow {
		return true, ReasonBackgroundAudio
	}
	if isForeground(st, en, p.fg) {
		st.LastForegroundPID = en.pid
		return false, ReasonForeground
	}
	if flags.KeepLastActiveUnmuted && p.lastForeground != 0 && en.pid == p.lastForeground && !p.anyActive {
		return false, ReasonLastActive
	}
	return true, ReasonNotForeground
}

// isForeground matches by executable name, by pid for apps that require
// it, and across mute groups.
func isForeground(st *policy.State, en entry, fg foreground) bool {
	if fg.pid == 0 || fg.app == "" {
		return false
	}
	if en.app == fg.app {
		if st.RequiresPIDMatch(en.app) {
			return en.pid == fg.pid
		}
		return true
	}
	return st.SameGroup(en.app, fg.app)
}

func (e *Engine) emit(r *Report, en entry, action Action, reason Reason, volume float32) {
	t := Transition{
		Time:   e.now(),
		PID:    en.pid,
		App:    en.app,
		Action: action,
		Reason: reason,
		Volume: volume,
	}
	r.Transitions = append(r.Transitions, t)

	switch action {
	case ActionVolume:
		e.logger.Debug("volume set", "pid", en.pid, "app", en.app, "volume", volume)
	default:
		e.logger.Info(string(action)+"d", "pid", en.pid, "app", en.app, "reason", string(reason))
	}
	for _, s := range e.sinks {
		s.Transition(t)
	}
}

func (e *Engine) osError(r *Report, op string, pid uint32, app string, err error) {
	r.Errors = append(r.Errors, OSError{Op: op, PID: pid, App: app, Error: err.Error()})
	if e.warnLimiter.Allow() {
		e.logger.Warn("os call failed", "op", op, "pid", pid, "app", app, "error", err)
		return
	}
	e.logger.Debug("os call failed", "op", op, "pid", pid, "app", app, "error", err)
}
