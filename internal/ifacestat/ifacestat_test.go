package ifacestat

import (
	"os"
	"path/filepath"
	"testing"
)

func writeNetDev(t *testing.T, root string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, "net"), 0o755); err != nil {
		t.Fatal(err)
	}
	header := "Inter-|   Receive                                                |  Transmit\n" +
		" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n"
	if err := os.WriteFile(filepath.Join(root, "net", "dev"), []byte(header+body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// The first observation reports zero rate, no prior sample to diff against.
func TestCollectFirstObservationHasZeroRate(t *testing.T) {
	root := t.TempDir()
	writeNetDev(t, root, "  eth0: 1000 10 0 0 0 0 0 0  2000 20 0 0 0 0 0 0\n")

	c := New()
	c.SetProcRoot(root)

	stats, err := c.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d interfaces, want 1", len(stats))
	}
	if stats[0].Name != "eth0" {
		t.Fatalf("got name %q, want eth0", stats[0].Name)
	}
	if stats[0].BytesRecv != 1000 || stats[0].BytesSent != 2000 {
		t.Fatalf("unexpected counters: %+v", stats[0])
	}
	if stats[0].RecvRate != 0 || stats[0].SendRate != 0 {
		t.Fatalf("expected zero rate on first observation, got %+v", stats[0])
	}
}

// A second observation derives a nonzero rate from the counter delta.
func TestCollectSecondObservationDerivesRate(t *testing.T) {
	root := t.TempDir()
	writeNetDev(t, root, "  eth0: 1000 10 0 0 0 0 0 0  2000 20 0 0 0 0 0 0\n")

	c := New()
	c.SetProcRoot(root)

	if _, err := c.Collect(); err != nil {
		t.Fatalf("Collect (first): %v", err)
	}

	writeNetDev(t, root, "  eth0: 2000 20 0 0 0 0 0 0  3000 30 0 0 0 0 0 0\n")

	stats, err := c.Collect()
	if err != nil {
		t.Fatalf("Collect (second): %v", err)
	}
	if stats[0].RecvRate <= 0 || stats[0].SendRate <= 0 {
		t.Fatalf("expected positive rates, got %+v", stats[0])
	}
}

// A counter that goes backwards (interface reset) reports a zero
// rate rather than underflowing into a huge bogus value.
func TestCollectCounterResetReportsZeroRate(t *testing.T) {
	root := t.TempDir()
	writeNetDev(t, root, "  eth0: 5000 10 0 0 0 0 0 0  5000 20 0 0 0 0 0 0\n")

	c := New()
	c.SetProcRoot(root)

	if _, err := c.Collect(); err != nil {
		t.Fatalf("Collect (first): %v", err)
	}

	writeNetDev(t, root, "  eth0: 100 1 0 0 0 0 0 0  100 2 0 0 0 0 0 0\n")

	stats, err := c.Collect()
	if err != nil {
		t.Fatalf("Collect (second): %v", err)
	}
	if stats[0].RecvRate != 0 || stats[0].SendRate != 0 {
		t.Fatalf("expected zero rate after counter reset, got %+v", stats[0])
	}
}

func TestCollectMultipleInterfaces(t *testing.T) {
	root := t.TempDir()
	writeNetDev(t, root, "    lo: 500 5 0 0 0 0 0 0   500 5 0 0 0 0 0 0\n"+
		"  eth0: 1000 10 0 0 0 0 0 0  2000 20 0 0 0 0 0 0\n")

	c := New()
	c.SetProcRoot(root)

	stats, err := c.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d interfaces, want 2", len(stats))
	}
}
