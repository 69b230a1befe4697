package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/focusmute/internal/policy"
)

type policyForm int

const (
	formNone policyForm = iota
	formFlags
	formException
	formGroup
)

// PolicyTab shows the persisted policy and edits flags and lists.
type PolicyTab struct {
	client Client
	doc    *policy.Document

	// Display dimensions
	width  int
	height int

	// Edit mode
	editing bool
	kind    policyForm
	form    *huh.Form

	// Form-bound values live behind a pointer so copies of the tab share them.
	fields *policyFields
}

type policyFields struct {
	flags []string
	app   string
	group string
}

// NewPolicyTab creates a PolicyTab with no document loaded.
func NewPolicyTab(client Client) PolicyTab {
	return PolicyTab{client: client}
}

// SetDocument updates the displayed policy.
func (p *PolicyTab) SetDocument(doc *policy.Document) {
	p.doc = doc
}

// Update handles messages for the policy tab.
func (p PolicyTab) Update(msg tea.Msg) (PolicyTab, tea.Cmd) {
	if p.editing {
		return p.updateEditing(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if p.doc == nil {
			return p, nil
		}
		switch msg.String() {
		case "f":
			p.startFlagsForm()
			return p, p.form.Init()
		case "a":
			p.startExceptionForm()
			return p, p.form.Init()
		case "g":
			p.startGroupForm()
			return p, p.form.Init()
		}
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
	}
	return p, nil
}

func (p PolicyTab) formWidth() int {
	w := p.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (p *PolicyTab) startFlagsForm() {
	p.fields = &policyFields{}
	opts := make([]huh.Option[string], 0, len(policy.AllFlags))
	for _, f := range policy.AllFlags {
		opts = append(opts, huh.NewOption(flagLabel(f), string(f)))
		if p.doc.Flags.Get(f) {
			p.fields.flags = append(p.fields.flags, string(f))
		}
	}

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Key("flags").
				Title("Policy Flags").
				Description("space: toggle  enter: apply").
				Options(opts...).
				Value(&p.fields.flags),
		),
	).WithWidth(p.formWidth()).WithShowHelp(true)
	p.kind = formFlags
	p.editing = true
}

func (p *PolicyTab) startExceptionForm() {
	p.fields = &policyFields{}
	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("app").
				Title("Add Exception").
				Description("Executable name that is never auto-muted").
				Placeholder("e.g. spotify.exe").
				Validate(requireName).
				Value(&p.fields.app),
		),
	).WithWidth(p.formWidth()).WithShowHelp(true).WithShowErrors(true)
	p.kind = formException
	p.editing = true
}

func (p *PolicyTab) startGroupForm() {
	p.fields = &policyFields{}
	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("group").
				Title("Add Mute Group").
				Description("Comma-separated apps that share foreground status").
				Placeholder("e.g. game.exe, launcher.exe").
				Validate(func(v string) error {
					if len(splitApps(v)) < 2 {
						return policy.ErrGroupTooSmall
					}
					return nil
				}).
				Value(&p.fields.group),
		),
	).WithWidth(p.formWidth()).WithShowHelp(true).WithShowErrors(true)
	p.kind = formGroup
	p.editing = true
}

func requireName(v string) error {
	if strings.TrimSpace(v) == "" {
		return policy.ErrEmptyName
	}
	return nil
}

func splitApps(v string) []string {
	var apps []string
	for _, part := range strings.Split(v, ",") {
		if name := policy.NormalizeName(part); name != "" {
			apps = append(apps, name)
		}
	}
	return apps
}

func (p PolicyTab) updateEditing(msg tea.Msg) (PolicyTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			p.editing = false
			p.form = nil
			return p, nil
		}
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.editing = false
		p.form = nil
		return p, p.submit()
	}

	return p, cmd
}

// submit turns the completed form into daemon calls.
func (p PolicyTab) submit() tea.Cmd {
	client := p.client
	switch p.kind {
	case formFlags:
		selected := make(map[string]bool, len(p.fields.flags))
		for _, f := range p.fields.flags {
			selected[f] = true
		}
		var changes []policy.Flag
		for _, f := range policy.AllFlags {
			if p.doc.Flags.Get(f) != selected[string(f)] {
				changes = append(changes, f)
			}
		}
		if len(changes) == 0 {
			return nil
		}
		return runAction("flags updated", func() error {
			for _, f := range changes {
				if err := client.SetFlag(string(f), selected[string(f)]); err != nil {
					return err
				}
			}
			return nil
		})
	case formException:
		app := strings.TrimSpace(p.fields.app)
		return runAction("added exception "+app, func() error { return client.AddException(app) })
	case formGroup:
		apps := splitApps(p.fields.group)
		return runAction("added mute group", func() error { return client.AddGroup(apps) })
	}
	return nil
}

func flagLabel(f policy.Flag) string {
	switch f {
	case policy.FlagForceMuteForeground:
		return "Force mute foreground apps"
	case policy.FlagForceMuteBackground:
		return "Force mute exception apps"
	case policy.FlagKeepLastActiveUnmuted:
		return "Keep last active app unmuted"
	case policy.FlagMuteForegroundWhenBackgroundActive:
		return "Mute foreground while exception audio plays"
	}
	return string(f)
}

// View implements tea.Model.
func (p PolicyTab) View() string {
	if p.editing && p.form != nil {
		content := headerStyle.Render("Editing Policy") + dimStyle.Render("  (esc to cancel)") +
			"\n\n" + p.form.View()
		return lipgloss.NewStyle().Width(p.width).Height(p.height).Padding(1, 2).Render(content)
	}
	if p.doc == nil {
		return renderPlaceholder("No policy loaded", p.width, p.height)
	}

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Width(22).
		Align(lipgloss.Right).
		PaddingRight(2)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Bold(true)

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	doc := p.doc
	lines := []string{""}
	for _, f := range policy.AllFlags {
		box := "[ ]"
		if doc.Flags.Get(f) {
			box = "[x]"
		}
		lines = append(lines, row(box, flagLabel(f)))
	}
	lines = append(lines,
		"",
		row("Locked", fmt.Sprintf("%v", doc.Locked)),
		row("Exceptions", listOrNone(doc.Exceptions)),
		row("Overrides", formatOverrides(doc.ForceMute)),
		row("Volumes", formatVolumes(doc.Volumes)),
		row("PID Match", listOrNone(doc.PIDMatch)),
	)
	if len(doc.MuteGroups) == 0 {
		lines = append(lines, row("Mute Groups", "(none)"))
	}
	for i, g := range doc.MuteGroups {
		label := ""
		if i == 0 {
			label = "Mute Groups"
		}
		lines = append(lines, row(label, fmt.Sprintf("%d: %s", i, strings.Join(g, ", "))))
	}
	lines = append(lines, "", dimStyle.Render("  f: edit flags  a: add exception  g: add mute group"))

	return lipgloss.NewStyle().
		Width(p.width).
		Height(p.height).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func formatOverrides(m map[string]bool) string {
	keys := sortedMapKeys(m)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		state := "unmuted"
		if m[k] {
			state = "muted"
		}
		parts = append(parts, k+"="+state)
	}
	return listOrNone(parts)
}

func formatVolumes(m map[string]int) string {
	keys := sortedMapKeys(m)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d%%", k, m[k]))
	}
	return listOrNone(parts)
}

func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
