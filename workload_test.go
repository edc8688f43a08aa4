package flitsim

import (
	"encoding/json"
	"testing"
)

func mustRawMessages(t *testing.T, docs ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d)
	}
	return out
}

func TestSplitMessage(t *testing.T) {
	t.Run("EvenSplit", func(t *testing.T) {
		msg := splitMessage(0, 1, 0, 0, 1, []uint32{0}, []uint32{1}, 16, 8)
		if len(msg.Packets) != 2 {
			t.Fatalf("expected 2 packets, got %d", len(msg.Packets))
		}
		for _, p := range msg.Packets {
			if p.Length() != 8 {
				t.Fatalf("expected packet length 8, got %d", p.Length())
			}
		}
		if msg.NumFlits() != 16 {
			t.Fatalf("expected 16 total flits, got %d", msg.NumFlits())
		}
	})

	t.Run("RemainderSplit", func(t *testing.T) {
		msg := splitMessage(0, 1, 0, 0, 1, nil, nil, 10, 8)
		if len(msg.Packets) != 2 {
			t.Fatalf("expected 2 packets, got %d", len(msg.Packets))
		}
		if msg.Packets[0].Length() != 8 || msg.Packets[1].Length() != 2 {
			t.Fatalf("unexpected packet lengths: %d, %d", msg.Packets[0].Length(), msg.Packets[1].Length())
		}
	})

	t.Run("ZeroMaxPacketSizePanics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic for max packet size 0")
			}
		}()
		splitMessage(0, 1, 0, 0, 1, nil, nil, 8, 0)
	})
}

func TestScriptedSourceAttach(t *testing.T) {
	clocks := NewClocks(1, 1, 1)
	kernel := NewKernel(clocks)
	reg := NewRegistry(nil)

	sink := NewCollectingSink()
	ifc := NewInterface(kernel, reg, "Interface", nil, 0, []uint32{0}, 1, []ProtocolClassVcs{{BaseVc: 0, NumVcs: 1}}, InterfaceSettings{
		InitCreditsMode: InterfaceInputQueueFixed,
		InitCredits:     8,
		CrossbarLatency: 1,
		Rng:             NewPRNG(1),
	})
	ifc.SetMessageReceiver(sink)

	src := NewScriptedSource(kernel, 0, []uint32{0}, 8)
	src.Schedule(0, 1, 0, 1, []uint32{1}, 8)
	src.Schedule(5, 2, 0, 1, []uint32{1}, 16)
	src.Attach(ifc)

	if len(src.entries) != 2 {
		t.Fatalf("expected 2 scheduled entries, got %d", len(src.entries))
	}

	// Attach only schedules kernel events; no messages are injected yet.
	if len(sink.Messages) != 0 {
		t.Fatalf("expected no messages before Run, got %d", len(sink.Messages))
	}
}

func TestScriptedApplicationsUnknownType(t *testing.T) {
	cfg := &Config{
		Workload: WorkloadConfig{
			Applications: mustRawMessages(t, `{"type":"blast"}`),
		},
	}
	_, err := cfg.ScriptedApplications()
	if err == nil {
		t.Fatal("expected an error for an unregistered application type")
	}
}

func TestScriptedApplicationsDecode(t *testing.T) {
	cfg := &Config{
		Workload: WorkloadConfig{
			Applications: mustRawMessages(t, `{
				"type": "scripted",
				"terminal": 0,
				"address": [0],
				"max_packet_size": 8,
				"messages": [
					{"tick": 0, "transaction_id": 1, "traffic_class": 0, "dest_terminal": 1, "dest_address": [1], "num_flits": 8}
				]
			}`),
		},
	}
	apps, err := cfg.ScriptedApplications()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) != 1 || apps[0].Terminal != 0 || len(apps[0].Messages) != 1 {
		t.Fatalf("unexpected decode result: %+v", apps)
	}
}
