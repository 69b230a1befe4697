package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/focusmute/internal/engine"
	"github.com/1broseidon/focusmute/internal/policy"
)

const defaultTransitionLimit = 50

func requireApp(tool, app string) (string, error) {
	name := policy.NormalizeName(app)
	if name == "" {
		return "", fmt.Errorf("%s: app is required", tool)
	}
	return name, nil
}

// policyResult fetches the document after a successful change.
func (s *Server) policyResult(tool string) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	doc, err := s.client.GetPolicy()
	if err != nil {
		return nil, PolicyOutput{}, fmt.Errorf("%s: change applied but policy could not be read: %w", tool, err)
	}
	return nil, PolicyOutput{Policy: *doc}, nil
}

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st, err := s.client.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("focusmute daemon is not reachable: %w", err)
	}
	return nil, StatusOutput{
		Backend:            st.Backend,
		Locked:             st.Locked,
		UptimeSeconds:      st.UptimeSeconds,
		TickIntervalMillis: st.TickIntervalMillis,
		SessionCount:       st.SessionCount,
		ForegroundPID:      st.ForegroundPID,
		ForegroundApp:      st.ForegroundApp,
		AnyExceptionActive: st.AnyExceptionActive,
		ZeroActivityCount:  st.ZeroActivityCount,
	}, nil
}

func (s *Server) handleListSessions(_ context.Context, _ *mcpsdk.CallToolRequest, args ListSessionsInput) (*mcpsdk.CallToolResult, ListSessionsOutput, error) {
	data, err := s.client.ListSessions()
	if err != nil {
		return nil, ListSessionsOutput{}, err
	}
	filter := policy.NormalizeName(args.App)

	out := ListSessionsOutput{
		Locked:        data.Locked,
		ForegroundApp: data.ForegroundApp,
		Sessions:      make([]SessionInfo, 0, len(data.Sessions)),
	}
	for _, d := range data.Sessions {
		if filter != "" && d.App != filter {
			continue
		}
		out.Sessions = append(out.Sessions, SessionInfo{
			PID:        d.PID,
			App:        d.App,
			Muted:      d.Muted,
			Reason:     string(d.Reason),
			Volume:     percent(d.Volume),
			Exception:  d.Exception,
			Foreground: d.Foreground,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetPolicy(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetPolicyInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	return s.policyResult("get_policy")
}

func (s *Server) handleAddException(_ context.Context, _ *mcpsdk.CallToolRequest, args AppInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	app, err := requireApp("add_exception", args.App)
	if err != nil {
		return nil, PolicyOutput{}, err
	}
	if err := s.client.AddException(app); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("add_exception", app, nil)
	return s.policyResult("add_exception")
}

func (s *Server) handleRemoveException(_ context.Context, _ *mcpsdk.CallToolRequest, args AppInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	app, err := requireApp("remove_exception", args.App)
	if err != nil {
		return nil, PolicyOutput{}, err
	}
	if err := s.client.RemoveException(app); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("remove_exception", app, nil)
	return s.policyResult("remove_exception")
}

func (s *Server) handleSetOverride(_ context.Context, _ *mcpsdk.CallToolRequest, args SetOverrideInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	app, err := requireApp("set_override", args.App)
	if err != nil {
		return nil, PolicyOutput{}, err
	}
	if err := s.client.SetOverride(app, args.Muted); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("set_override", app, map[string]interface{}{"muted": args.Muted})
	return s.policyResult("set_override")
}

func (s *Server) handleClearOverride(_ context.Context, _ *mcpsdk.CallToolRequest, args AppInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	app, err := requireApp("clear_override", args.App)
	if err != nil {
		return nil, PolicyOutput{}, err
	}
	if err := s.client.ClearOverride(app); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("clear_override", app, nil)
	return s.policyResult("clear_override")
}

func (s *Server) handleSetVolume(_ context.Context, _ *mcpsdk.CallToolRequest, args SetVolumeInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	app, err := requireApp("set_app_volume", args.App)
	if err != nil {
		return nil, PolicyOutput{}, err
	}
	if args.Volume < 0 || args.Volume > 100 {
		return nil, PolicyOutput{}, fmt.Errorf("set_app_volume: %w", policy.ErrVolumeRange)
	}
	if err := s.client.SetVolume(app, args.Volume); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("set_app_volume", app, map[string]interface{}{"volume": args.Volume})
	return s.policyResult("set_app_volume")
}

func (s *Server) handleClearVolume(_ context.Context, _ *mcpsdk.CallToolRequest, args AppInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	app, err := requireApp("clear_app_volume", args.App)
	if err != nil {
		return nil, PolicyOutput{}, err
	}
	if err := s.client.ClearVolume(app); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("clear_app_volume", app, nil)
	return s.policyResult("clear_app_volume")
}

func (s *Server) handleSetFlag(_ context.Context, _ *mcpsdk.CallToolRequest, args SetFlagInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	flag, err := policy.ParseFlag(args.Flag)
	if err != nil {
		names := make([]string, 0, len(policy.AllFlags))
		for _, f := range policy.AllFlags {
			names = append(names, string(f))
		}
		return nil, PolicyOutput{}, fmt.Errorf("set_flag: unknown flag %q (valid: %s)", args.Flag, strings.Join(names, ", "))
	}
	if err := s.client.SetFlag(string(flag), args.Value); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("set_flag", "", map[string]interface{}{"flag": string(flag), "value": args.Value})
	return s.policyResult("set_flag")
}

func (s *Server) handleSetLock(_ context.Context, _ *mcpsdk.CallToolRequest, args SetLockInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	if err := s.client.SetLock(args.Locked); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("set_lock", "", map[string]interface{}{"locked": args.Locked})
	return s.policyResult("set_lock")
}

func (s *Server) handleAddGroup(_ context.Context, _ *mcpsdk.CallToolRequest, args AddGroupInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	apps := make([]string, 0, len(args.Apps))
	for _, a := range args.Apps {
		if name := policy.NormalizeName(a); name != "" {
			apps = append(apps, name)
		}
	}
	if len(apps) < 2 {
		return nil, PolicyOutput{}, fmt.Errorf("add_mute_group: %w", policy.ErrGroupTooSmall)
	}
	if err := s.client.AddGroup(apps); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("add_mute_group", "", map[string]interface{}{"apps": strings.Join(apps, ",")})
	return s.policyResult("add_mute_group")
}

func (s *Server) handleRemoveGroup(_ context.Context, _ *mcpsdk.CallToolRequest, args RemoveGroupInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	if args.Index < 0 {
		return nil, PolicyOutput{}, fmt.Errorf("remove_mute_group: %w", policy.ErrGroupNotFound)
	}
	if err := s.client.RemoveGroup(args.Index); err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("remove_mute_group", "", map[string]interface{}{"index": args.Index})
	return s.policyResult("remove_mute_group")
}

func (s *Server) handleSetPIDMatch(_ context.Context, _ *mcpsdk.CallToolRequest, args SetPIDMatchInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	app, err := requireApp("set_pid_match", args.App)
	if err != nil {
		return nil, PolicyOutput{}, err
	}
	if args.Enabled {
		err = s.client.AddPIDMatch(app)
	} else {
		err = s.client.RemovePIDMatch(app)
	}
	if err != nil {
		return nil, PolicyOutput{}, err
	}
	s.logPolicy("set_pid_match", app, map[string]interface{}{"enabled": args.Enabled})
	return s.policyResult("set_pid_match")
}

func (s *Server) handleRecentTransitions(_ context.Context, _ *mcpsdk.CallToolRequest, args RecentTransitionsInput) (*mcpsdk.CallToolResult, RecentTransitionsOutput, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultTransitionLimit
	}
	data, err := s.client.GetHistory(limit, policy.NormalizeName(args.App))
	if err != nil {
		return nil, RecentTransitionsOutput{}, err
	}
	if data == nil {
		return nil, RecentTransitionsOutput{}, errors.New("recent_transitions: empty response from daemon")
	}

	out := RecentTransitionsOutput{Transitions: make([]TransitionInfo, 0, len(data.Entries))}
	for _, e := range data.Entries {
		info := TransitionInfo{
			ID:     e.ID,
			Time:   e.Time.UTC().Format(time.RFC3339),
			PID:    e.PID,
			App:    e.App,
			Action: string(e.Action),
			Reason: string(e.Reason),
		}
		if e.Action == engine.ActionVolume {
			info.Volume = percent(e.Volume)
		}
		out.Transitions = append(out.Transitions, info)
	}
	return nil, out, nil
}

func percent(v float32) int {
	return int(v*100 + 0.5)
}
