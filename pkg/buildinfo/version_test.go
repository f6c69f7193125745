package buildinfo

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })
	Version = "v1.2.3"

	info := Get()
	if info.Version != "v1.2.3" || info.Commit != Commit || info.Date != Date {
		t.Errorf("Get() = %+v", info)
	}
	if !strings.Contains(info.Go, "go") {
		t.Errorf("Go = %q", info.Go)
	}
	if got := UserAgent(); got != "curator/v1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
	if got := Template(); !strings.Contains(got, "v1.2.3") || !strings.HasPrefix(got, "{{.Name}}") {
		t.Errorf("Template() = %q", got)
	}
}
