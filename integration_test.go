package flitsim_test

import (
	"strings"
	"testing"

	"github.com/bassosimone/flitsim"
)

// pointToPointScenarioJSON matches spec.md §8 scenario 1: a
// point-to-point topology, 1 VC, one-cycle latencies throughout, and
// ten 8-flit messages (max_packet_size 8, so one packet per message)
// streamed from terminal 0 to terminal 1.
func pointToPointScenarioJSON() string {
	var messages strings.Builder
	for i := 0; i < 10; i++ {
		if i > 0 {
			messages.WriteString(",")
		}
		messages.WriteString(`{"tick": 0, "transaction_id": 1, "traffic_class": 0, "dest_terminal": 1, "dest_address": [1], "num_flits": 8}`)
	}

	return `{
		"simulator": {"cycle_time_channel": 1, "cycle_time_router": 1, "cycle_time_interface": 1, "random_seed": 7},
		"network": {
			"topology": "point_to_point",
			"num_vcs": 1,
			"protocol_classes": [{"num_vcs": 1, "routing": {"algorithm": "direct", "latency": 1, "mode": "vc", "max_outputs": 1, "reduction": {"algorithm": "least_congested_minimal"}}}],
			"internal_channel": {"latency": 1},
			"external_channel": {"latency": 1}
		},
		"router": {
			"type": "input_queued",
			"input_queue_mode": "fixed",
			"input_queue_depth": 8,
			"output_queue_depth": 8,
			"congestion_mode": "output",
			"crossbar": {"latency": 1},
			"crossbar_scheduler": {"type": "r_separable", "resource_arbiter": "random", "client_arbiter": "random", "iterations": 1},
			"vc_scheduler": {"type": "r_separable", "resource_arbiter": "random", "client_arbiter": "random", "iterations": 1},
			"output_crossbar": {"latency": 1},
			"output_crossbar_scheduler": {"type": "r_separable", "resource_arbiter": "random", "client_arbiter": "random", "iterations": 1},
			"congestion_sensor": {"algorithm": "null"}
		},
		"interface": {
			"init_credits_mode": "fixed",
			"init_credits": 8,
			"crossbar": {"latency": 1},
			"crossbar_scheduler": {"type": "r_separable", "resource_arbiter": "random", "client_arbiter": "random", "iterations": 1}
		},
		"workload": {
			"applications": [{
				"type": "scripted",
				"terminal": 0,
				"address": [0],
				"max_packet_size": 8,
				"messages": [` + messages.String() + `]
			}]
		}
	}`
}

func TestEndToEndPointToPointStream(t *testing.T) {
	cfg, err := flitsim.DecodeConfig(strings.NewReader(pointToPointScenarioJSON()))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	clocks := cfg.NewClocksFromConfig()
	kernel := flitsim.NewKernel(clocks)
	reg := cfg.DebugRegistry()

	topology, err := cfg.NewTopology()
	if err != nil {
		t.Fatalf("unexpected topology error: %v", err)
	}
	settings, err := cfg.BuildNetworkSettings(topology, cfg.Simulator.RandomSeed)
	if err != nil {
		t.Fatalf("unexpected settings error: %v", err)
	}
	net := flitsim.NewNetwork(kernel, reg, "Network", nil, topology, settings)

	sink := flitsim.NewCollectingSink()
	destIfc := net.Interface(1)
	destIfc.SetMessageReceiver(sink)

	apps, err := cfg.ScriptedApplications()
	if err != nil {
		t.Fatalf("unexpected applications error: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 application, got %d", len(apps))
	}
	srcIfc := net.Interface(apps[0].Terminal)
	apps[0].NewScriptedSource(kernel).Attach(srcIfc)

	kernel.Run()

	if len(sink.Messages) != 10 {
		t.Fatalf("expected 10 delivered messages, got %d", len(sink.Messages))
	}
	for i, msg := range sink.Messages {
		if msg.NumFlits() != 8 {
			t.Fatalf("message %d: expected 8 flits, got %d", i, msg.NumFlits())
		}
		if msg.SourceID != 0 || msg.DestinationID != 1 {
			t.Fatalf("message %d: unexpected source/destination %d/%d", i, msg.SourceID, msg.DestinationID)
		}
		for _, p := range msg.Packets {
			for j, flit := range p.Flits {
				if flit.ReceiveTime.Tick < flit.SendTime.Tick {
					t.Fatalf("message %d packet %d flit %d: received before sent", i, p.ID, j)
				}
			}
			head, tail := p.HeadFlit(), p.TailFlit()
			if tail.ReceiveTime.Tick < head.ReceiveTime.Tick {
				t.Fatalf("message %d packet %d: tail delivered before head", i, p.ID)
			}
		}
	}
}
