package flitsim

import (
	"strings"
	"testing"
)

func TestDecodeConfigRejectsUnknownFields(t *testing.T) {
	doc := `{"simulator": {"cycle_time_channel": 1}, "bogus_top_level_key": true}`
	_, err := DecodeConfig(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected an error for an unknown top-level key")
	}
}

func testPointToPointConfigJSON() string {
	return `{
		"simulator": {"cycle_time_channel": 1, "cycle_time_router": 1, "cycle_time_interface": 1, "random_seed": 42},
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
				"messages": [{"tick": 0, "transaction_id": 1, "traffic_class": 0, "dest_terminal": 1, "dest_address": [1], "num_flits": 8}]
			}]
		}
	}`
}

func TestDecodeConfigAndBuildNetworkSettings(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(testPointToPointConfigJSON()))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	topology, err := cfg.NewTopology()
	if err != nil {
		t.Fatalf("unexpected topology error: %v", err)
	}
	if topology.NumRouters() != 2 || topology.NumInterfaces() != 2 {
		t.Fatalf("unexpected point-to-point shape: %d routers, %d interfaces", topology.NumRouters(), topology.NumInterfaces())
	}

	settings, err := cfg.BuildNetworkSettings(topology, cfg.Simulator.RandomSeed)
	if err != nil {
		t.Fatalf("unexpected settings error: %v", err)
	}
	if settings.NumVcs != 1 {
		t.Fatalf("expected 1 vc, got %d", settings.NumVcs)
	}

	apps, err := cfg.ScriptedApplications()
	if err != nil {
		t.Fatalf("unexpected applications error: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 application, got %d", len(apps))
	}
}

func TestBuildNetworkSettingsRejectsUnknownRouterType(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(testPointToPointConfigJSON()))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	cfg.Router.Type = "nonexistent"

	topology, err := cfg.NewTopology()
	if err != nil {
		t.Fatalf("unexpected topology error: %v", err)
	}
	if _, err := cfg.BuildNetworkSettings(topology, cfg.Simulator.RandomSeed); err == nil {
		t.Fatal("expected an error for an unknown router type")
	}
}
