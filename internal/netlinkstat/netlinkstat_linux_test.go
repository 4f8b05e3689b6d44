//go:build linux

package netlinkstat

import (
	"encoding/binary"
	"testing"

	"github.com/mdlayher/netlink"
)

func TestWrapSafeDelta(t *testing.T) {
	cases := []struct {
		prev, cur uint64
		want      uint64
	}{
		{0, 100, 100},
		{100, 150, 50},
		{100, 100, 0},
		{200, 50, 0}, // counter reset/wrap: treat as no delta, not underflow
	}
	for _, c := range cases {
		if got := wrapSafeDelta(c.prev, c.cur); got != c.want {
			t.Errorf("wrapSafeDelta(%d, %d) = %d, want %d", c.prev, c.cur, got, c.want)
		}
	}
}

func TestParseTCPInfoBytes(t *testing.T) {
	tcpInfo := make([]byte, 136)
	binary.LittleEndian.PutUint64(tcpInfo[120:128], 4096)
	binary.LittleEndian.PutUint64(tcpInfo[128:136], 8192)

	raw, err := netlink.MarshalAttributes([]netlink.Attribute{
		{Type: inetDiagInfo, Data: tcpInfo},
	})
	if err != nil {
		t.Fatalf("MarshalAttributes: %v", err)
	}

	sent, recv, ok := parseTCPInfoBytes(raw)
	if !ok {
		t.Fatal("expected TCP_INFO attribute to parse")
	}
	if sent != 4096 || recv != 8192 {
		t.Errorf("sent=%d recv=%d, want 4096/8192", sent, recv)
	}
}

func TestParseTCPInfoBytesMissingAttribute(t *testing.T) {
	raw, err := netlink.MarshalAttributes([]netlink.Attribute{
		{Type: 99, Data: []byte{1, 2, 3, 4}},
	})
	if err != nil {
		t.Fatalf("MarshalAttributes: %v", err)
	}

	if _, _, ok := parseTCPInfoBytes(raw); ok {
		t.Error("expected no TCP_INFO attribute to be found")
	}
}
