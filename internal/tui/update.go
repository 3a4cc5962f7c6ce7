package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/narravoxlabs/narravox/internal/studio"
	"github.com/narravoxlabs/narravox/pkg/override"
	"github.com/narravoxlabs/narravox/pkg/voicemix"
)

// Field order in the edit form. The add form prepends a token field.
var editLabels = []string{"Pronunciation", "Voice mix", "Context", "Notes"}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.snap = studio.Snapshot(msg)
		m.refreshRows()
		return m, m.listenUpdates()

	case previewDoneMsg:
		switch {
		case errors.Is(msg.err, studio.ErrPreviewSuperseded):
			m.setFlash("preview superseded by a newer request", false)
		case msg.err != nil:
			m.setFlash(msg.err.Error(), true)
		default:
			m.setFlash(fmt.Sprintf("preview written to %s (%d KiB)", msg.path, msg.bytes/1024), false)
		}
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil {
			m.setFlash(msg.err.Error(), true)
		} else {
			m.setFlash("entities refreshed", false)
			m.refreshRows()
		}
		return m, nil

	case deleteDoneMsg:
		if msg.err != nil {
			m.setFlash(msg.err.Error(), true)
		} else {
			m.setFlash("deleted "+msg.id, false)
			m.refreshRows()
		}
		return m, nil

	case addDoneMsg:
		if msg.err != nil {
			m.editErr = msg.err.Error()
			return m, nil
		}
		m.mode = modeBrowse
		m.inputs = nil
		m.editErr = ""
		m.setFlash("added "+msg.token, false)
		m.refreshRows()
		return m, nil

	case finalizedMsg:
		if msg.err != nil {
			m.logger.Warn("final flush incomplete", "err", msg.err)
		}
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Everything else is input bookkeeping (cursor blinks and the like).
	if m.mode == modeFilter {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		return m, cmd
	}
	return m, m.updateFocusedInput(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// A second interrupt quits without waiting for the final flush.
	if msg.String() == "ctrl+c" {
		if m.quitting {
			return m, tea.Quit
		}
		return m, m.beginQuit()
	}

	switch m.mode {
	case modeFilter:
		return m.handleFilterKey(msg)
	case modeEdit:
		return m.handleEditKey(msg)
	case modeAdd:
		return m.handleAddKey(msg)
	default:
		return m.handleBrowseKey(msg)
	}
}

func (m *Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Delete wants a confirming second press; any other key cancels it.
	if m.pendingDelete != "" && key != "x" {
		m.pendingDelete = ""
	}

	switch key {
	case "q", "esc":
		return m, m.beginQuit()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(0, len(m.rows)-1)
	case "/":
		m.mode = modeFilter
		return m, m.filter.Focus()
	case "enter":
		if ov, ok := m.selected(); ok {
			return m, m.openEditor(ov)
		}
	case "a":
		return m, m.openAddForm()
	case "p":
		if ov, ok := m.selected(); ok {
			m.setFlash("rendering preview for "+ov.Token+"...", false)
			return m, m.previewCmd(ov)
		}
	case "x":
		ov, ok := m.selected()
		if !ok {
			break
		}
		if m.pendingDelete == ov.ID {
			m.pendingDelete = ""
			return m, m.deleteCmd(ov.ID)
		}
		m.pendingDelete = ov.ID
		m.setFlash("press x again to delete "+ov.Token, false)
	case "s":
		if t := m.st.Flush(); t == nil {
			m.setFlash("nothing to save", false)
		}
	case "r":
		m.setFlash("refreshing entities...", false)
		return m, m.refreshCmd()
	}
	return m, nil
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeBrowse
		m.filter.Blur()
		return m, nil
	case "esc":
		m.mode = modeBrowse
		m.filter.Blur()
		m.filter.SetValue("")
		m.refreshRows()
		return m, nil
	}
	var cmd tea.Cmd
	before := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.refreshRows()
	}
	return m, cmd
}

func (m *Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.mode = modeBrowse
		m.inputs = nil
		m.editID = ""
		m.editErr = ""
		m.refreshRows()
		return m, nil
	case "tab", "down":
		return m, m.cycleFocus(1)
	case "shift+tab", "up":
		return m, m.cycleFocus(-1)
	case "shift+up":
		m.nudgeWeight(nudgeStep)
		return m, nil
	case "shift+down":
		m.nudgeWeight(-nudgeStep)
		return m, nil
	}

	cmd := m.updateFocusedInput(msg)
	return m, cmd
}

func (m *Model) handleAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.inputs = nil
		m.editErr = ""
		return m, nil
	case "tab":
		return m, m.cycleFocus(1)
	case "shift+tab":
		return m, m.cycleFocus(-1)
	case "shift+up":
		m.nudgeWeight(nudgeStep)
		return m, nil
	case "shift+down":
		m.nudgeWeight(-nudgeStep)
		return m, nil
	case "enter":
		// Enter advances; on the last field it submits.
		if m.focus < len(m.inputs)-1 {
			return m, m.cycleFocus(1)
		}
		return m, m.submitAdd()
	}

	cmd := m.updateFocusedInput(msg)
	return m, cmd
}

// updateFocusedInput forwards msg to the focused field and stages the new
// value when it changed. Add-form fields are not staged; they are submitted
// in one piece.
func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	if len(m.inputs) == 0 || m.focus < 0 || m.focus >= len(m.inputs) {
		return nil
	}
	var cmd tea.Cmd
	before := m.inputs[m.focus].Value()
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	after := m.inputs[m.focus].Value()

	if m.mode == modeEdit && after != before {
		m.stageField(m.focus, after)
	}
	return cmd
}

// nudgeStep is the weight delta shift+up / shift+down applies to the
// formula term under the cursor.
const nudgeStep = 0.05

// voiceFieldIndex returns the position of the mix formula input in the
// open form, or -1 when no form is open.
func (m *Model) voiceFieldIndex() int {
	switch m.mode {
	case modeEdit:
		return 1
	case modeAdd:
		return 2
	default:
		return -1
	}
}

// nudgeWeight bumps the weight of the formula term under the cursor by
// delta and rewrites the field canonically. Formulas renormalize on
// serialization, so nudging one term up shrinks the others' shares.
func (m *Model) nudgeWeight(delta float64) {
	idx := m.voiceFieldIndex()
	if idx < 0 || m.focus != idx {
		return
	}
	field := &m.inputs[idx]
	id := termUnderCursor(field.Value(), field.Position())
	if id == "" {
		return
	}
	mix := voicemix.Parse(field.Value())
	w, ok := mix[id]
	if !ok {
		return
	}
	mix.SetWeight(id, w+delta)
	field.SetValue(voicemix.Format(mix))
	// Keep the cursor on the term that was nudged; canonical ordering may
	// have moved it.
	if at := strings.Index(field.Value(), id+"*"); at >= 0 {
		field.SetCursor(at)
	}
	if m.mode == modeEdit {
		m.stageField(idx, field.Value())
	}
}

// termUnderCursor finds the voice id of the '+'-separated formula term the
// cursor sits in, or "" when that term has no id.
func termUnderCursor(value string, pos int) string {
	if value == "" {
		return ""
	}
	pos = min(pos, len(value))
	term := strings.Count(value[:pos], "+")
	parts := strings.Split(value, "+")
	if term >= len(parts) {
		term = len(parts) - 1
	}
	seg := parts[term]
	if i := strings.IndexByte(seg, '*'); i >= 0 {
		seg = seg[:i]
	}
	return strings.TrimSpace(seg)
}

// stageField routes an edited value to the matching studio setter. Staging
// failures (an unparseable voice mix, mostly) are pinned to the form rather
// than flashed, since they can fire on every keystroke.
func (m *Model) stageField(idx int, val string) {
	var err error
	switch idx {
	case 0:
		err = m.st.SetPronunciation(m.editID, val)
	case 1:
		err = m.st.SetVoice(m.editID, val)
	case 2:
		err = m.st.SetContext(m.editID, val)
	case 3:
		err = m.st.SetNotes(m.editID, val)
	}
	if err != nil {
		m.editErr = err.Error()
		return
	}
	m.editErr = ""
}

func (m *Model) openEditor(ov override.Override) tea.Cmd {
	m.mode = modeEdit
	m.editID = ov.ID
	m.editErr = ""
	m.labels = editLabels
	m.inputs = make([]textinput.Model, len(editLabels))
	values := []string{ov.Pronunciation, ov.Voice, ov.Context, ov.Notes}
	for i := range m.inputs {
		m.inputs[i] = newField(m.labels[i], values[i])
	}
	m.focus = 0
	return m.inputs[0].Focus()
}

func (m *Model) openAddForm() tea.Cmd {
	m.mode = modeAdd
	m.editID = ""
	m.editErr = ""
	m.labels = append([]string{"Token"}, editLabels...)
	m.inputs = make([]textinput.Model, len(m.labels))
	for i := range m.inputs {
		m.inputs[i] = newField(m.labels[i], "")
	}
	m.focus = 0
	return m.inputs[0].Focus()
}

func newField(label, value string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = strings.ToLower(label)
	ti.Prompt = ""
	ti.CharLimit = 256
	ti.Width = 48
	ti.SetValue(value)
	return ti
}

func (m *Model) cycleFocus(delta int) tea.Cmd {
	if len(m.inputs) == 0 {
		return nil
	}
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

func (m *Model) submitAdd() tea.Cmd {
	ov := override.Override{
		Token:         strings.TrimSpace(m.inputs[0].Value()),
		Pronunciation: strings.TrimSpace(m.inputs[1].Value()),
		Voice:         strings.TrimSpace(m.inputs[2].Value()),
		Context:       strings.TrimSpace(m.inputs[3].Value()),
		Notes:         strings.TrimSpace(m.inputs[4].Value()),
	}
	st := m.st
	return func() tea.Msg {
		_, err := st.AddOverride(ov)
		return addDoneMsg{token: ov.Token, err: err}
	}
}

// beginQuit schedules the final flush and switches the view to its
// shutting-down state. The flush is bounded by the settle timeout and never
// blocks exit for longer.
func (m *Model) beginQuit() tea.Cmd {
	if m.quitting {
		return nil
	}
	m.quitting = true
	st, settle := m.st, m.settle
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), settle)
		defer cancel()
		err := st.Finalize(ctx, func(context.Context) error { return nil })
		return finalizedMsg{err: err}
	}
}

func (m *Model) previewCmd(ov override.Override) tea.Cmd {
	st, dir, defaults := m.st, m.previewDir, m.preview
	id, token := ov.ID, ov.Token
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		// The studio flushes a dirty target and fills the request from the
		// freshest draft, so the clip matches what is on screen.
		audio, err := st.PreviewOverride(ctx, id, defaults)
		if err != nil {
			return previewDoneMsg{err: err}
		}
		path := filepath.Join(dir, "narravox-preview-"+override.Canonicalize(token)+".wav")
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			return previewDoneMsg{err: fmt.Errorf("write preview: %w", err)}
		}
		return previewDoneMsg{path: path, bytes: len(audio)}
	}
}

func (m *Model) refreshCmd() tea.Cmd {
	st := m.st
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return refreshDoneMsg{err: st.RefreshEntities(ctx, true)}
	}
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	st := m.st
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return deleteDoneMsg{id: id, err: st.DeleteOverride(ctx, id)}
	}
}
