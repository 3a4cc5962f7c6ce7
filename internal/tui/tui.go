// Package tui implements the interactive override editor. It renders the
// session's override registry as a navigable list with inline field editing,
// stages edits through the studio as they are typed, and reflects the
// save-state projection in a status bar. Saving itself is the studio's job;
// the editor never blocks on the network.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/narravoxlabs/narravox/internal/studio"
	"github.com/narravoxlabs/narravox/pkg/client"
	"github.com/narravoxlabs/narravox/pkg/override"
)

// Options configures the editor.
type Options struct {
	// Studio is the editing session. Required.
	Studio *studio.Studio

	// Updates receives snapshots pushed by the studio's change callback.
	// The editor re-renders on every value.
	Updates <-chan studio.Snapshot

	// Preview holds the request defaults (text, language, speed, clip cap)
	// applied when auditioning an override.
	Preview client.PreviewRequest

	// PreviewDir is where rendered preview clips are written.
	// Defaults to the system temp directory.
	PreviewDir string

	// SettleTimeout bounds the final flush on quit.
	SettleTimeout time.Duration

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// mode is the editor's input state.
type mode int

const (
	modeBrowse mode = iota
	modeFilter
	modeEdit
	modeAdd
)

// row is one override in the rendered list.
type row struct {
	ov    override.Override
	dirty bool
}

// Messages delivered by background commands.
type (
	snapshotMsg    studio.Snapshot
	previewDoneMsg struct {
		path  string
		bytes int
		err   error
	}
	refreshDoneMsg struct{ err error }
	deleteDoneMsg  struct {
		id  string
		err error
	}
	addDoneMsg struct {
		token string
		err   error
	}
	finalizedMsg struct{ err error }
)

// Model is the bubbletea model for the override editor.
type Model struct {
	st         *studio.Studio
	updates    <-chan studio.Snapshot
	preview    client.PreviewRequest
	previewDir string
	settle     time.Duration
	logger     *slog.Logger

	width  int
	height int

	mode   mode
	rows   []row
	cursor int

	filter textinput.Model
	inputs []textinput.Model
	labels []string
	focus  int
	editID string

	snap          studio.Snapshot
	flash         string
	flashIsErr    bool
	editErr       string
	pendingDelete string
	quitting      bool
}

// New builds the editor model. The studio must already be hydrated; the
// first snapshot arrives through opts.Updates.
func New(opts Options) *Model {
	filter := textinput.New()
	filter.Placeholder = "filter by token"
	filter.Prompt = "/"
	filter.CharLimit = 64

	m := &Model{
		st:         opts.Studio,
		updates:    opts.Updates,
		preview:    opts.Preview,
		previewDir: opts.PreviewDir,
		settle:     opts.SettleTimeout,
		logger:     opts.Logger,
		filter:     filter,
	}
	if m.previewDir == "" {
		m.previewDir = os.TempDir()
	}
	if m.settle <= 0 {
		m.settle = 30 * time.Second
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.refreshRows()
	m.snap = opts.Studio.Snapshot()
	return m
}

// Run drives the editor until quit or context cancellation.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func (m *Model) Init() tea.Cmd {
	return m.listenUpdates()
}

// listenUpdates blocks on the snapshot channel and converts values to
// messages. It re-arms itself from Update after each delivery.
func (m *Model) listenUpdates() tea.Cmd {
	ch := m.updates
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		sn, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(sn)
	}
}

// refreshRows rebuilds the visible list from the registry, applying the
// filter and marking rows with unsaved edits.
func (m *Model) refreshRows() {
	dirty := make(map[string]struct{})
	for _, id := range m.st.Dirty() {
		dirty[id] = struct{}{}
	}

	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	all := m.st.Registry().All()
	rows := make([]row, 0, len(all))
	for _, ov := range all {
		if q != "" && !matchesFilter(ov, q) {
			continue
		}
		_, isDirty := dirty[ov.ID]
		rows = append(rows, row{ov: ov, dirty: isDirty})
	}
	m.rows = rows
	if m.cursor >= len(rows) {
		m.cursor = max(0, len(rows)-1)
	}
}

func matchesFilter(ov override.Override, q string) bool {
	return strings.Contains(strings.ToLower(ov.Token), q) ||
		strings.Contains(strings.ToLower(ov.Normalized), q) ||
		strings.Contains(strings.ToLower(ov.Pronunciation), q)
}

// selected returns the override under the cursor.
func (m *Model) selected() (override.Override, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return override.Override{}, false
	}
	return m.rows[m.cursor].ov, true
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashIsErr = isErr
}
