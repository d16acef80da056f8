package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "legalsmart "+Version) {
		t.Errorf("String: got %q", s)
	}
	if !strings.Contains(s, GitCommit) {
		t.Errorf("String missing commit: %q", s)
	}
}
