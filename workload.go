package flitsim

import (
	"encoding/json"
	"fmt"
)

//
// Workload boundary: the core depends on nothing beyond MessageSource
// (injects traffic into one terminal) and MessageSink (receives
// delivered traffic), per spec.md §1's explicit non-goal — "Traffic
// patterns, message-size distributions, and Application classes
// (blast, all-to-all, stream, simple-mem). The core consumes only the
// MessageSource/MessageSink contract." Grounded on
// original_source/src/application/{Application,Messenger}.h, the
// original's workload-driver layer, generalized down to this one
// pluggable contract; no blast/all-to-all/stream/simple-mem generator
// is ported. ScriptedSource and CollectingSink below are test
// fixtures exercising the contract (spec.md §8 scenario 1's
// "two-terminal stream"), not a production traffic-pattern library.
//

// MessageSource generates one terminal's outbound traffic. Attach is
// called once, after the owning Interface exists, so the source can
// schedule its own injection events against the kernel.
type MessageSource interface {
	Attach(ifc *Interface)
}

// MessageSink is the contract for receiving messages delivered at
// their destination terminal. An Interface's own MessageReceiver
// already satisfies this; MessageSink is the same contract named from
// the workload's perspective (spec.md §1).
type MessageSink = MessageReceiver

// splitMessage builds a Message of numFlits total flits for one
// (source, destination) pair, split into packets of at most
// maxPacketSize flits each (spec.md §6 "max_packet_size"), so a
// workload doesn't have to hand-roll packet boundaries.
func splitMessage(id uint32, transactionID uint64, trafficClass, sourceID, destID uint32, sourceAddress, destAddress []uint32, numFlits, maxPacketSize uint32) *Message {
	if maxPacketSize == 0 {
		panic("flitsim: max packet size must be positive")
	}
	msg := NewMessage(id, transactionID, trafficClass, sourceID, destID)
	msg.SourceAddress = sourceAddress
	msg.DestinationAddress = destAddress

	var packetID uint32
	for remaining := numFlits; remaining > 0; packetID++ {
		size := maxPacketSize
		if size > remaining {
			size = remaining
		}
		msg.AddPacket(NewPacket(packetID, msg, size))
		remaining -= size
	}
	return msg
}

// scriptedEntry is one message to inject at a fixed virtual tick.
type scriptedEntry struct {
	tick          uint64
	transactionID uint64
	trafficClass  uint32
	destID        uint32
	destAddress   []uint32
	numFlits      uint32
}

// ScriptedSource is a MessageSource that injects a fixed, pre-built
// sequence of messages at fixed ticks, used to drive deterministic
// end-to-end tests (spec.md §8 scenario 1: "10 messages of 8 flits
// each"). It does not model any traffic distribution; every message
// and its injection time is supplied up front.
type ScriptedSource struct {
	kernel        *Kernel
	sourceID      uint32
	sourceAddress []uint32
	maxPacketSize uint32

	entries []scriptedEntry
	nextID  uint32

	ifc *Interface
}

// NewScriptedSource creates a ScriptedSource for terminal sourceID.
func NewScriptedSource(kernel *Kernel, sourceID uint32, sourceAddress []uint32, maxPacketSize uint32) *ScriptedSource {
	return &ScriptedSource{kernel: kernel, sourceID: sourceID, sourceAddress: sourceAddress, maxPacketSize: maxPacketSize}
}

// Schedule queues one message of numFlits flits, addressed to destID
// (with address destAddress), to be injected at virtual tick tick.
// transactionID and trafficClass are carried through unchanged (spec
// §3 "each create is matched by exactly one end" transaction
// bookkeeping is the caller's responsibility).
func (s *ScriptedSource) Schedule(tick uint64, transactionID uint64, trafficClass, destID uint32, destAddress []uint32, numFlits uint32) {
	s.entries = append(s.entries, scriptedEntry{
		tick:          tick,
		transactionID: transactionID,
		trafficClass:  trafficClass,
		destID:        destID,
		destAddress:   destAddress,
		numFlits:      numFlits,
	})
}

var _ MessageSource = &ScriptedSource{}

// Attach implements MessageSource: schedules every queued entry
// against the kernel, each injected directly into ifc at epsilon 0.
func (s *ScriptedSource) Attach(ifc *Interface) {
	s.ifc = ifc
	for _, e := range s.entries {
		entry := e
		s.kernel.Schedule(VirtualTime{Tick: entry.tick, Epsilon: 0}, EventHandlerFunc(func(any, int32) {
			msg := splitMessage(s.nextID, entry.transactionID, entry.trafficClass, s.sourceID, entry.destID, s.sourceAddress, entry.destAddress, entry.numFlits, s.maxPacketSize)
			s.nextID++
			s.ifc.ReceiveMessage(msg)
		}), nil, 0)
	}
}

// CollectingSink is a MessageSink that records every delivered message
// in arrival order, for test assertions (spec.md §8 scenario 1: "10
// messages delivered in order").
type CollectingSink struct {
	Messages []*Message
}

// NewCollectingSink creates an empty CollectingSink.
func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

var _ MessageSink = &CollectingSink{}

// ReceiveMessage implements MessageReceiver.
func (s *CollectingSink) ReceiveMessage(msg *Message) {
	s.Messages = append(s.Messages, msg)
}

// LoggingSink is a MessageSink that forwards every delivered message to
// a MessageLog, for a CLI run that doesn't need the messages retained
// in memory afterward (unlike CollectingSink, used by tests).
type LoggingSink struct {
	Log *MessageLog
}

var _ MessageSink = &LoggingSink{}

// ReceiveMessage implements MessageReceiver.
func (s *LoggingSink) ReceiveMessage(msg *Message) {
	s.Log.LogMessage(msg)
}

// ScriptedMessageConfig is one `workload.applications[].messages[]`
// entry: a single message a ScriptedSource injects at a fixed tick.
// Decoded from the otherwise-opaque `workload.applications` key (see
// WorkloadConfig) for the one concrete scripted-traffic application
// type this repo registers — not a general traffic-pattern generator.
type ScriptedMessageConfig struct {
	Tick          uint64   `json:"tick"`
	TransactionID uint64   `json:"transaction_id"`
	TrafficClass  uint32   `json:"traffic_class"`
	DestTerminal  uint32   `json:"dest_terminal"`
	DestAddress   []uint32 `json:"dest_address"`
	NumFlits      uint32   `json:"num_flits"`
}

// ScriptedApplicationConfig is one `workload.applications[]` entry with
// `"type": "scripted"`: a fixed, pre-built message sequence for one
// source terminal (spec.md §8 scenario 1's "two-terminal stream").
type ScriptedApplicationConfig struct {
	Type          string                  `json:"type"`
	Terminal      uint32                  `json:"terminal"`
	Address       []uint32                `json:"address"`
	MaxPacketSize uint32                  `json:"max_packet_size"`
	Messages      []ScriptedMessageConfig `json:"messages"`
}

// ScriptedApplications decodes cfg.Workload.Applications, requiring
// every entry to have `"type": "scripted"` (the only application type
// this repo registers). Returns ErrUnknownFactory for any other type.
func (cfg *Config) ScriptedApplications() ([]ScriptedApplicationConfig, error) {
	apps := make([]ScriptedApplicationConfig, 0, len(cfg.Workload.Applications))
	for _, raw := range cfg.Workload.Applications {
		var app ScriptedApplicationConfig
		if err := json.Unmarshal(raw, &app); err != nil {
			return nil, err
		}
		if app.Type != "scripted" {
			return nil, errUnknownApplicationType(app.Type)
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func errUnknownApplicationType(t string) error {
	return fmt.Errorf("%w: workload application type %q", ErrUnknownFactory, t)
}

// NewScriptedSource builds a ScriptedSource from app, pre-loaded with
// every one of its scripted messages.
func (app ScriptedApplicationConfig) NewScriptedSource(kernel *Kernel) *ScriptedSource {
	src := NewScriptedSource(kernel, app.Terminal, app.Address, app.MaxPacketSize)
	for _, m := range app.Messages {
		src.Schedule(m.Tick, m.TransactionID, m.TrafficClass, m.DestTerminal, m.DestAddress, m.NumFlits)
	}
	return src
}
