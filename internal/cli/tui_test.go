package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/curate"
	"github.com/matzehuels/curator/pkg/errors"
)

type tuiRegistry struct{}

func (tuiRegistry) Search(ctx context.Context, query string, size int) ([]string, error) {
	return []string{"lodash", "lodash-es"}, nil
}

func (tuiRegistry) Fetch(ctx context.Context, name, version string) (catalog.Record, error) {
	if version == "0.0.0" {
		return catalog.Record{}, errors.New(errors.ErrCodeFetchFailed, "fetch %s@%s", name, version)
	}
	if version == "" {
		version = "4.17.21"
	}
	return catalog.NewRecord(name, version, "", "", "MIT", "", ""), nil
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds keys to m. Enter in the version or path prompt starts a
// fetch; its command runs synchronously so the result lands before press
// returns. Other commands (cursor blinks) are dropped.
func press(m curateModel, keys ...string) curateModel {
	for _, k := range keys {
		prev := m.focus
		next, cmd := m.Update(keyPress(k))
		m = next.(curateModel)
		if cmd == nil || k != "enter" || (prev != paneVersion && prev != panePath) {
			continue
		}
		next, _ = m.Update(cmd())
		m = next.(curateModel)
	}
	return m
}

func newTestModel(t *testing.T) (curateModel, *curate.Curator) {
	t.Helper()
	cur := curate.New(tuiRegistry{}, curate.Options{Debounce: 10 * time.Millisecond})
	t.Cleanup(cur.Close)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newCurateModel(ctx, cur), cur
}

func settle(t *testing.T, m curateModel) curateModel {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		next, _ := m.Update(sessionMsg(m.cur.Search()))
		m = next.(curateModel)
		if !m.session.Loading && len(m.session.Records) > 0 {
			return m
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("search did not settle")
	return m
}

func TestTUISearchAddAndAccept(t *testing.T) {
	m, cur := newTestModel(t)

	m = press(m, "l", "o", "d")
	if got := m.query.Value(); got != "lod" {
		t.Fatalf("query = %q", got)
	}
	m = press(m, "enter")
	if m.focus != paneResults {
		t.Errorf("focus = %v, want results", m.focus)
	}
	m = settle(t, m)

	// Select lodash-es, edit the version, confirm.
	m = press(m, "down", "enter")
	if m.focus != paneVersion || m.selected != "lodash-es" {
		t.Fatalf("focus = %v selected = %q", m.focus, m.selected)
	}
	m = press(m, "backspace", "0", "enter")
	if len(m.table) != 1 || m.table[0].Name != "lodash-es" || m.table[0].Version != "4.17.20" {
		t.Fatalf("table = %+v", m.table)
	}

	m = press(m, "tab")
	if h := m.help(); !strings.Contains(h, "accept") || !strings.Contains(h, "reject") {
		t.Errorf("help for a pending row = %q, want accept and reject", h)
	}
	m = press(m, "a")
	if got := cur.Table(); got[0].Status != catalog.StatusAccepted {
		t.Errorf("status = %s, want accepted", got[0].Status)
	}

	// Decided rows no longer offer accept or reject.
	if h := m.help(); strings.Contains(h, "accept") || strings.Contains(h, "reject") {
		t.Errorf("help for an accepted row = %q", h)
	}
	m = press(m, "r")
	if got := cur.Table(); got[0].Status != catalog.StatusAccepted {
		t.Errorf("status after r = %s, want accepted", got[0].Status)
	}
	if m.noticeIsErr {
		t.Errorf("r on an accepted row should be ignored, got notice %q", m.notice)
	}

	view := m.View()
	for _, want := range []string{"Working set", "lodash-es", "accepted"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestTUIAddFailureKeepsTable(t *testing.T) {
	m, cur := newTestModel(t)
	m = press(m, "l", "enter")
	m = settle(t, m)

	m = press(m, "enter")
	m.version.SetValue("0.0.0")
	m = press(m, "enter")

	if len(cur.Table()) != 0 {
		t.Errorf("table = %+v, want empty", cur.Table())
	}
	if !m.noticeIsErr || !strings.Contains(m.notice, "Could not fetch lodash") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestTUIImport(t *testing.T) {
	m, cur := newTestModel(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "package.json")
	os.WriteFile(good, []byte(`{"dependencies":{"lodash":"^4.17.21"}}`), 0o644)
	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`{}`), 0o644)

	m = press(m, "tab", "tab", "i")
	if m.focus != panePath {
		t.Fatalf("focus = %v, want path", m.focus)
	}
	m.path.SetValue(empty)
	m = press(m, "enter")
	if !m.noticeIsErr || !strings.Contains(m.notice, "No dependencies") {
		t.Errorf("notice = %q", m.notice)
	}

	m = press(m, "i")
	m.path.SetValue(good)
	m = press(m, "enter")
	if len(cur.Table()) != 1 || !strings.Contains(m.notice, "Imported 1 of 1") {
		t.Errorf("table = %+v notice = %q", cur.Table(), m.notice)
	}
}

func TestTUIQuit(t *testing.T) {
	m, _ := newTestModel(t)

	// q types into the search box.
	m = press(m, "q")
	if m.query.Value() != "q" {
		t.Errorf("query = %q", m.query.Value())
	}

	m = press(m, "esc")
	_, cmd := m.Update(keyPress("q"))
	if cmd == nil {
		t.Fatal("q outside the search box should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}
