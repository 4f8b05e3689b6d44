package procscan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNumericEntriesSkipsNonNumericNames(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"7", "12", "self", "thread-self", "net"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := NumericEntries(root)
	if err != nil {
		t.Fatalf("NumericEntries: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want exactly [7 12] in some order", ids)
	}
	seen := map[int]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[7] || !seen[12] {
		t.Errorf("ids = %v, want 7 and 12", ids)
	}
}

func TestNumericEntriesMissingDirReturnsError(t *testing.T) {
	if _, err := NumericEntries(filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Fatal("expected an error for an unreadable directory")
	}
}
