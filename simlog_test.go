package flitsim

import (
	"bufio"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readAllLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()

	var r = bufio.NewScanner(f)
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			t.Fatalf("opening gzip reader for %s: %v", path, err)
		}
		defer gr.Close()
		r = bufio.NewScanner(gr)
	}
	var lines []string
	for r.Scan() {
		lines = append(lines, r.Text())
	}
	return lines
}

func TestMessageLogDisabledWithEmptyPath(t *testing.T) {
	log, err := NewMessageLog("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := NewMessage(0, 1, 0, 0, 1)
	msg.AddPacket(NewPacket(0, msg, 4))
	log.LogMessage(msg) // must not panic when disabled
	if err := log.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestMessageLogWritesRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.csv")
	log, err := NewMessageLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := NewMessage(7, 42, 1, 0, 1)
	p := NewPacket(0, msg, 4)
	msg.AddPacket(p)
	p.HeadFlit().SendTime = VirtualTime{Tick: 1, Epsilon: 0}
	p.TailFlit().ReceiveTime = VirtualTime{Tick: 5, Epsilon: 2}
	log.LogMessage(msg)

	if err := log.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	lines := readAllLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected a header and one row, got %d lines", len(lines))
	}
	want := "7,42,1,0,1,1,0,5,2,4"
	if lines[1] != want {
		t.Fatalf("unexpected row: got %q, want %q", lines[1], want)
	}
}

func TestRateLogWritesRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	log, err := NewRateLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.LogRates(3, "Network.Interface3", 1.0, 0.9, 0.8, 0.7)
	if err := log.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	lines := readAllLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected a header and one row, got %d lines", len(lines))
	}
	if lines[0] != "id,name,supply,injection,delivered,ejection" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
}

func TestChannelLogGzipSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.csv.gz")
	log, err := NewChannelLog(path, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	lines := readAllLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected only the header, got %d lines", len(lines))
	}
	if lines[0] != "name,0,1,total" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
}
