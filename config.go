package flitsim

import (
	"encoding/json"
	"fmt"
	"io"
)

//
// Configuration: the JSON document spec.md §6 describes, decoded with
// the standard library's encoding/json (grounded on SPEC_FULL.md's
// ambient-stack decision: one Config struct tree, unknown top-level
// keys per section a decode-time fatal error via
// json.Decoder.DisallowUnknownFields, matching original_source's
// jsoncpp-keyed-by-the-same-field-names config tree).
//

// Config is the top-level decoded configuration (spec.md §6).
type Config struct {
	Simulator SimulatorConfig `json:"simulator"`
	Network   NetworkConfig   `json:"network"`
	Router    RouterConfig    `json:"router"`
	Interface InterfaceConfig `json:"interface"`
	Workload  WorkloadConfig  `json:"workload"`
	Debug     []string        `json:"debug"`
}

// SimulatorConfig is spec.md §6's `simulator` key.
type SimulatorConfig struct {
	CycleTimeChannel   uint64 `json:"cycle_time_channel"`
	CycleTimeRouter    uint64 `json:"cycle_time_router"`
	CycleTimeInterface uint64 `json:"cycle_time_interface"`
	RandomSeed         int64  `json:"random_seed"`
	PrintProgress      bool   `json:"print_progress"`
}

// ChannelConfig is the `{latency}` shape shared by
// `network.internal_channel`/`network.external_channel`.
type ChannelConfig struct {
	Latency uint32 `json:"latency"`
}

// RoutingConfig is spec.md §6's per-protocol-class
// `routing: {algorithm, latency, ...}`.
type RoutingConfig struct {
	Algorithm        string                  `json:"algorithm"`
	Latency          uint32                  `json:"latency"`
	Mode             string                  `json:"mode"`
	MaxOutputs       uint32                  `json:"max_outputs"`
	IgnoreDuplicates bool                    `json:"ignore_duplicates"`
	Reduction        ReductionStrategyConfig `json:"reduction"`
}

// ProtocolClassConfig is one entry of spec.md §6's
// `network.protocol_classes: [{num_vcs, routing}]`.
type ProtocolClassConfig struct {
	NumVcs  uint32        `json:"num_vcs"`
	Routing RoutingConfig `json:"routing"`
}

// NetworkConfig is spec.md §6's `network` key. `Topology` selects the
// concrete Topology fixture by name (only "point_to_point" is
// registered by this repo — see NewTopology).
type NetworkConfig struct {
	Topology        string                `json:"topology"`
	NumVcs          uint32                `json:"num_vcs"`
	ProtocolClasses []ProtocolClassConfig `json:"protocol_classes"`
	InternalChannel ChannelConfig         `json:"internal_channel"`
	ExternalChannel ChannelConfig         `json:"external_channel"`
}

// CrossbarConfig is the `{latency}` shape shared by every
// `crossbar`/`output_crossbar` key.
type CrossbarConfig struct {
	Latency uint32 `json:"latency"`
}

// RouterConfig is spec.md §6's `router` key.
type RouterConfig struct {
	Type                    string                  `json:"type"`
	InputQueueMode          string                  `json:"input_queue_mode"`
	InputQueueDepth         uint32                  `json:"input_queue_depth"`
	InputQueueMin           uint32                  `json:"input_queue_min"`
	InputQueueMax           uint32                  `json:"input_queue_max"`
	InputQueueTailorMult    float64                 `json:"input_queue_tailor_mult"`
	OutputQueueDepth        uint32                  `json:"output_queue_depth"`
	VcaSwaWait              bool                    `json:"vca_swa_wait"`
	CongestionMode          string                  `json:"congestion_mode"`
	Crossbar                CrossbarConfig          `json:"crossbar"`
	CrossbarScheduler       AllocatorSettingsConfig `json:"crossbar_scheduler"`
	VcScheduler             AllocatorSettingsConfig `json:"vc_scheduler"`
	OutputCrossbar          CrossbarConfig          `json:"output_crossbar"`
	OutputCrossbarScheduler AllocatorSettingsConfig `json:"output_crossbar_scheduler"`
	CongestionSensor        CongestionSensorConfig  `json:"congestion_sensor"`
}

// InterfaceConfig is spec.md §6's `interface` key.
type InterfaceConfig struct {
	InitCreditsMode      string                  `json:"init_credits_mode"`
	InitCredits          uint32                  `json:"init_credits"`
	CreditsMin           uint32                  `json:"credits_min"`
	CreditsMax           uint32                  `json:"credits_max"`
	InputQueueTailorMult float64                 `json:"input_queue_tailor_mult"`
	Adaptive             bool                    `json:"adaptive"`
	FixedMsgVc           bool                    `json:"fixed_msg_vc"`
	Crossbar             CrossbarConfig          `json:"crossbar"`
	CrossbarScheduler    AllocatorSettingsConfig `json:"crossbar_scheduler"`
}

// LogFileConfig is the `{file}` shape of `workload.message_log`/
// `workload.rate_log`/`channel_log`. A `.gz` suffix on File selects
// gzip compression (spec.md §6: "CSV (.csv or .csv.gz)").
type LogFileConfig struct {
	File string `json:"file"`
}

// WorkloadConfig is spec.md §6's `workload` key. Applications are kept
// as raw JSON and decoded on demand by ScriptedApplications
// (workload.go), which accepts only entries of type "scripted"; no
// blast/all-to-all/stream/simple-mem generator is implemented
// (spec.md §1 non-goal).
type WorkloadConfig struct {
	Applications []json.RawMessage `json:"applications"`
	MessageLog   LogFileConfig     `json:"message_log"`
	RateLog      LogFileConfig     `json:"rate_log"`
	ChannelLog   LogFileConfig     `json:"channel_log"`
}

// DecodeConfig reads and decodes one Config document from r, failing
// decode-time on any unknown top-level key in any section (spec.md §7:
// "unknown factory keys ... abort").
func DecodeConfig(r io.Reader) (*Config, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// NewClocksFromConfig builds the Clocks table named by
// `simulator.cycle_time_{channel,router,interface}`.
func (cfg *Config) NewClocksFromConfig() *Clocks {
	s := cfg.Simulator
	return NewClocks(s.CycleTimeChannel, s.CycleTimeRouter, s.CycleTimeInterface)
}

// ProtocolClassVcs derives the [BaseVc, BaseVc+NumVcs) ranges spec.md
// §6's `network.protocol_classes` partitions network.num_vcs into, in
// declaration order.
func (cfg *Config) ProtocolClassVcs() []ProtocolClassVcs {
	out := make([]ProtocolClassVcs, len(cfg.Network.ProtocolClasses))
	var base uint32
	for i, pc := range cfg.Network.ProtocolClasses {
		out[i] = ProtocolClassVcs{BaseVc: base, NumVcs: pc.NumVcs}
		base += pc.NumVcs
	}
	return out
}

// BuildNetworkSettings assembles a NetworkSettings from cfg: every
// router in topology shares the same RouterConfig (spec.md §6 has one
// `router` key, not a per-router tree), and its routing function is
// supplied per (router, port, vc) by topology itself, closing the
// loop spec.md §1 requires ("the core consumes only a Topology
// interface giving ... per-interface routing-algorithm construction").
func (cfg *Config) BuildNetworkSettings(topology Topology, seed int64) (NetworkSettings, error) {
	pcVcs := cfg.ProtocolClassVcs()
	if len(pcVcs) == 0 {
		return NetworkSettings{}, fmt.Errorf("%w: network.protocol_classes must be non-empty", ErrInvalidConfig)
	}
	routerKind, err := ParseRouterKind(cfg.Router.Type)
	if err != nil {
		return NetworkSettings{}, err
	}
	congestionMode, err := ParseRouterCongestionMode(cfg.Router.CongestionMode)
	if err != nil {
		return NetworkSettings{}, err
	}
	inputQueueMode, err := ParseInputQueueMode(cfg.Router.InputQueueMode)
	if err != nil {
		return NetworkSettings{}, err
	}
	vcSchedulerSettings, err := cfg.Router.VcScheduler.Build()
	if err != nil {
		return NetworkSettings{}, err
	}
	crossbarSchedulerSettings, err := cfg.Router.CrossbarScheduler.Build()
	if err != nil {
		return NetworkSettings{}, err
	}
	outputCrossbarSchedulerSettings, err := cfg.Router.OutputCrossbarScheduler.Build()
	if err != nil {
		return NetworkSettings{}, err
	}
	routingLatency := cfg.routingLatency()
	if routingLatency == 0 {
		return NetworkSettings{}, fmt.Errorf("%w: a protocol class's routing.latency must be positive", ErrInvalidConfig)
	}

	interfaceInitMode, err := ParseInterfaceInputQueueMode(cfg.Interface.InitCreditsMode)
	if err != nil {
		return NetworkSettings{}, err
	}
	interfaceCrossbarSchedulerSettings, err := cfg.Interface.CrossbarScheduler.Build()
	if err != nil {
		return NetworkSettings{}, err
	}

	rng := NewPRNG(seed)

	routerSettingsFn := func(routerID uint32) RouterSettings {
		return RouterSettings{
			Kind:                            routerKind,
			CongestionMode:                  congestionMode,
			InputQueueMode:                  inputQueueMode,
			InputQueueDepth:                 cfg.Router.InputQueueDepth,
			InputQueueTailorMult:            cfg.Router.InputQueueTailorMult,
			InputQueueMin:                   cfg.Router.InputQueueMin,
			InputQueueMax:                   cfg.Router.InputQueueMax,
			VcaSwaWait:                      cfg.Router.VcaSwaWait,
			OutputQueueDepth:                cfg.Router.OutputQueueDepth,
			VcSchedulerSettings:             vcSchedulerSettings,
			CrossbarSchedulerSettings:       crossbarSchedulerSettings,
			OutputCrossbarSchedulerSettings: outputCrossbarSchedulerSettings,
			CrossbarLatency:                 cfg.Router.Crossbar.Latency,
			OutputCrossbarLatency:           cfg.Router.OutputCrossbar.Latency,
			NewCongestionSensor: func(device *PortedDevice) CongestionSensor {
				return Must1(NewCongestionSensor(device, cfg.Router.CongestionSensor))
			},
			NewRoutingFunc: func(port, vc uint32) RoutingFunc {
				return topology.NewRoutingFunc(routerID, port, vc)
			},
			RoutingLatency: routingLatency,
			Rng:            rng,
		}
	}

	interfaceSettingsFn := func(interfaceID uint32) InterfaceSettings {
		return InterfaceSettings{
			InitCreditsMode:           interfaceInitMode,
			InitCredits:               cfg.Interface.InitCredits,
			InputQueueMult:            cfg.Interface.InputQueueTailorMult,
			InputQueueMin:             cfg.Interface.CreditsMin,
			InputQueueMax:             cfg.Interface.CreditsMax,
			Adaptive:                  cfg.Interface.Adaptive,
			FixedMsgVc:                cfg.Interface.FixedMsgVc,
			CrossbarSchedulerSettings: interfaceCrossbarSchedulerSettings,
			CrossbarLatency:           cfg.Interface.Crossbar.Latency,
			Rng:                       rng,
		}
	}

	return NetworkSettings{
		NumVcs:                 cfg.Network.NumVcs,
		ProtocolClassVcs:       pcVcs,
		InternalChannelLatency: cfg.Network.InternalChannel.Latency,
		ExternalChannelLatency: cfg.Network.ExternalChannel.Latency,
		RouterSettings:         routerSettingsFn,
		InterfaceSettings:      interfaceSettingsFn,
	}, nil
}

// routingLatency returns the routing.latency of the first protocol
// class that sets a positive one; the other classes' values are not
// compared against it. RouterSettings carries a single RoutingLatency
// shared by every RoutingAlgorithm a router builds (one per
// (port, vc), spanning all protocol classes).
func (cfg *Config) routingLatency() uint32 {
	for _, pc := range cfg.Network.ProtocolClasses {
		if pc.Routing.Latency > 0 {
			return pc.Routing.Latency
		}
	}
	return 0
}

// NewTopology builds the Topology named by `network.topology`. Only
// "point_to_point" is registered (spec.md §1 non-goal: no topology
// enumerator library).
func (cfg *Config) NewTopology() (Topology, error) {
	switch cfg.Network.Topology {
	case "point_to_point":
		return NewPointToPointTopology(cfg.Network.NumVcs), nil
	default:
		return nil, fmt.Errorf("%w: network.topology %q", ErrUnknownFactory, cfg.Network.Topology)
	}
}

// DebugRegistry builds a registry pre-seeded with cfg.Debug's
// full component names, so Component.Debug() matches them once built.
func (cfg *Config) DebugRegistry() *registry {
	return NewRegistry(cfg.Debug)
}
