package curate

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/errors"
	"github.com/matzehuels/curator/pkg/manifest"
	"github.com/matzehuels/curator/pkg/search"
)

type stubRegistry struct {
	mu       sync.Mutex
	packages map[string]catalog.Record // keyed by name, latest version
	versions map[string]catalog.Record // keyed by name@version
	results  map[string][]string
	searches atomic.Int32
	fetched  []catalog.Request
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		packages: map[string]catalog.Record{
			"left-pad": catalog.NewRecord("left-pad", "1.3.0", "https://github.com/stevemao/left-pad", "https://registry.npmjs.org/left-pad/-/left-pad-1.3.0.tgz", "WTFPL", "azer", "String left pad"),
			"react":    catalog.NewRecord("react", "18.3.1", "", "", "MIT", "", "React"),
			"lodash":   catalog.NewRecord("lodash", "4.17.21", "", "", "MIT", "", ""),
		},
		versions: map[string]catalog.Record{
			"react@18.2.0":   catalog.NewRecord("react", "18.2.0", "", "", "MIT", "", "React"),
			"lodash@4.17.20": catalog.NewRecord("lodash", "4.17.20", "", "", "MIT", "", ""),
		},
		results: map[string][]string{
			"left-pad": {"left-pad"},
			"lodash":   {"lodash"},
		},
	}
}

func (s *stubRegistry) Search(ctx context.Context, query string, size int) ([]string, error) {
	s.searches.Add(1)
	return s.results[query], nil
}

func (s *stubRegistry) Fetch(ctx context.Context, name, version string) (catalog.Record, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, catalog.Request{Name: name, Version: version})
	s.mu.Unlock()

	rec, ok := s.packages[name]
	if version != "" {
		rec, ok = s.versions[name+"@"+version]
	}
	if !ok {
		return catalog.Record{}, errors.New(errors.ErrCodeFetchFailed, "fetch %s@%s", name, version)
	}
	return rec, nil
}

func waitIdle(t *testing.T, c *Curator) search.Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := c.Search(); !s.Loading && s.Query != "" {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("search did not settle")
	return search.Session{}
}

func TestSearchShowsFetchedRecord(t *testing.T) {
	reg := newStubRegistry()
	c := New(reg, Options{Debounce: 20 * time.Millisecond})
	defer c.Close()

	c.Input("left")
	c.Input("left-pad")
	s := waitIdle(t, c)

	if reg.searches.Load() != 1 {
		t.Errorf("searches = %d, want 1", reg.searches.Load())
	}
	if len(s.Records) != 1 {
		t.Fatalf("records = %+v, want one", s.Records)
	}
	got := s.Records[0]
	if got.Name != "left-pad" || got.Version != "1.3.0" || got.Licence != "WTFPL" || got.Status != catalog.StatusPending {
		t.Errorf("record = %+v", got)
	}
}

func TestAddSelectedWithEditedVersion(t *testing.T) {
	reg := newStubRegistry()
	c := New(reg, Options{})
	defer c.Close()

	c.CommitQuery("lodash")
	waitIdle(t, c)

	rec, added, err := c.AddSelected(context.Background(), "lodash", "4.17.20")
	if err != nil {
		t.Fatalf("AddSelected() error: %v", err)
	}
	if !added || rec.Version != "4.17.20" {
		t.Errorf("AddSelected() = %+v, %v", rec, added)
	}

	// Adding again keeps the first record.
	rec, added, err = c.AddSelected(context.Background(), "lodash", "")
	if err != nil {
		t.Fatal(err)
	}
	if added || rec.Version != "4.17.20" {
		t.Errorf("second AddSelected() = %+v, %v, want existing 4.17.20", rec, added)
	}
	if len(c.Table()) != 1 {
		t.Errorf("table = %+v", c.Table())
	}
}

func TestAddSelectedFailureLeavesTable(t *testing.T) {
	c := New(newStubRegistry(), Options{})
	defer c.Close()

	_, _, err := c.AddSelected(context.Background(), "lodash", "0.0.0-nope")
	if !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Errorf("AddSelected() error = %v, want FETCH_FAILED", err)
	}
	if len(c.Table()) != 0 {
		t.Errorf("table = %+v, want empty", c.Table())
	}
}

func TestImportThenCurate(t *testing.T) {
	reg := newStubRegistry()
	c := New(reg, Options{})
	defer c.Close()

	c.AddSelected(context.Background(), "lodash", "")

	doc := manifest.Document{
		Name: "package.json",
		Data: []byte(`{"dependencies": {"react": "^18.2.0", "lodash": "4.17.20", "ghost": "1.0.0"}}`),
	}
	res, err := c.Import(context.Background(), doc)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Added != 1 || len(res.Records) != 2 || len(res.Failed) != 1 {
		t.Errorf("Import() = added %d, records %d, failed %d", res.Added, len(res.Records), len(res.Failed))
	}

	var names []string
	for _, r := range c.Table() {
		names = append(names, r.Name+"@"+r.Version)
	}
	if !slices.Equal(names, []string{"lodash@4.17.21", "react@18.2.0"}) {
		t.Errorf("table = %v", names)
	}

	if err := c.Accept("react"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetStatus("lodash", "rejected"); err != nil {
		t.Fatal(err)
	}
	if err := c.Reject("react"); !errors.Is(err, errors.ErrCodeInvalidTransition) {
		t.Errorf("Reject(accepted) = %v, want INVALID_TRANSITION", err)
	}
	counts := c.Counts()
	if counts[catalog.StatusAccepted] != 1 || counts[catalog.StatusRejected] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestImportErrorLeavesTable(t *testing.T) {
	c := New(newStubRegistry(), Options{})
	defer c.Close()

	_, err := c.Import(context.Background(), manifest.Document{Name: "package.json", Data: []byte(`{}`)})
	if !errors.Is(err, errors.ErrCodeNoDependencies) {
		t.Errorf("Import() error = %v, want NO_DEPENDENCIES", err)
	}
	if len(c.Table()) != 0 {
		t.Error("table should be unchanged")
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	c := New(newStubRegistry(), Options{})
	defer c.Close()
	c.AddSelected(context.Background(), "react", "")

	if err := c.SetStatus("react", "maybe"); !errors.Is(err, errors.ErrCodeInvalidStatus) {
		t.Errorf("SetStatus() = %v, want INVALID_STATUS", err)
	}
}

func TestCloseDropsPendingInput(t *testing.T) {
	reg := newStubRegistry()
	c := New(reg, Options{Debounce: 20 * time.Millisecond})

	c.Input("left-pad")
	c.Close()
	c.Close()
	time.Sleep(60 * time.Millisecond)

	if n := reg.searches.Load(); n != 0 {
		t.Errorf("searches after Close = %d, want 0", n)
	}
}

func TestInputAfterCloseIsIgnored(t *testing.T) {
	reg := newStubRegistry()
	c := New(reg, Options{Debounce: 10 * time.Millisecond})
	c.Close()

	c.Input("left-pad")
	c.Input("")
	snap := c.CommitQuery("lodash")
	time.Sleep(40 * time.Millisecond)

	if n := reg.searches.Load(); n != 0 {
		t.Errorf("searches after Close = %d, want 0", n)
	}
	if snap.Loading || snap.Query != "" {
		t.Errorf("CommitQuery after Close = %+v, want idle snapshot", snap)
	}
}

func TestOnSearchUpdate(t *testing.T) {
	c := New(newStubRegistry(), Options{})
	defer c.Close()

	var mu sync.Mutex
	var loading []bool
	c.OnSearchUpdate(func(s search.Session) {
		mu.Lock()
		loading = append(loading, s.Loading)
		mu.Unlock()
	})

	c.CommitQuery("left-pad")
	waitIdle(t, c)
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(loading, []bool{true, false}) {
		t.Errorf("updates = %v, want loading then done", loading)
	}
}
