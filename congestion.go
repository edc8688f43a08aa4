package flitsim

import "math"

//
// Congestion sensing: per-(port,vc) downstream pressure feeding
// adaptive routing decisions. Grounded on
// original_source/src/congestion/{CongestionSensor,CongestionStatus,
// BufferOccupancy,PhantomBufferOccupancy,NullSensor}.{h,cc}.
//

// CongestionStyle names the value range a CongestionSensor reports.
type CongestionStyle uint8

const (
	// StyleNull sensors are never queried for a status value.
	StyleNull CongestionStyle = iota
	// StyleAbsolute sensors report values in [0, +Inf).
	StyleAbsolute
	// StyleNormalized sensors report values in [0, 1].
	StyleNormalized
)

// CongestionMode names how a CongestionSensor's values are scoped.
type CongestionMode uint8

const (
	// ModeNull sensors ignore both port and vc.
	ModeNull CongestionMode = iota
	// ModeVc sensors report a distinct value per (port, vc).
	ModeVc
	// ModePort sensors report one value per port (vc is ignored).
	ModePort
)

// CreditWatcher is notified of every credit lifecycle event for a
// (port, vc) pair it was configured to track, so it can maintain a
// congestion estimate without participating in the flow-control path
// itself (spec §5 "Congestion sensing").
type CreditWatcher interface {
	// InitCredits records the initial (and maximum) credit count for vcIdx.
	InitCredits(vcIdx uint32, credits uint32)
	// IncrementCredit records a credit returned from downstream.
	IncrementCredit(vcIdx uint32)
	// DecrementCredit records a credit consumed locally (a flit sent).
	DecrementCredit(vcIdx uint32)
}

// CongestionSensor reports, per (inputPort, inputVc, outputPort,
// outputVc), a value in [0.0, 1.0] raw from the subclass, then
// post-processed per spec §5: granularity rounding, then
// offset+max(minimum, value), then clamped to 1.0 if Normalized.
type CongestionSensor interface {
	CreditWatcher

	// Status returns the post-processed congestion value. Must only be
	// called at epsilon >= 1 within the current Router cycle.
	Status(inputPort, inputVc, outputPort, outputVc uint32) float64

	Style() CongestionStyle
	Mode() CongestionMode
}

// CongestionSensorSettings carries the common tuning knobs shared by
// every CongestionSensor implementation (spec §5).
type CongestionSensorSettings struct {
	Granularity uint32
	Minimum     float64
	Offset      float64
}

func postProcess(style CongestionStyle, settings CongestionSensorSettings, raw float64) float64 {
	if raw < 0.0 {
		panic("flitsim: congestion sensor returned a negative raw value")
	}
	if style == StyleNormalized && raw > 1.0 {
		panic("flitsim: normalized congestion sensor returned a value > 1.0")
	}
	value := raw
	if settings.Granularity > 0 {
		g := float64(settings.Granularity)
		value = math.Round(value*g) / g
	}
	value = settings.Offset + math.Max(settings.Minimum, value)
	if style == StyleNormalized {
		value = math.Min(1.0, value)
	}
	return value
}

// NullSensor never reports a usable value; it exists for devices that
// do not participate in congestion-sensitive routing.
type NullSensor struct{}

// NewNullSensor creates a NullSensor.
func NewNullSensor() *NullSensor { return &NullSensor{} }

func (*NullSensor) InitCredits(uint32, uint32)     {}
func (*NullSensor) IncrementCredit(uint32)         {}
func (*NullSensor) DecrementCredit(uint32)         {}
func (*NullSensor) Style() CongestionStyle         { return StyleNull }
func (*NullSensor) Mode() CongestionMode           { return ModeNull }
func (*NullSensor) Status(_, _, _, _ uint32) float64 {
	panic("flitsim: null sensor has no status")
}

var _ CongestionSensor = &NullSensor{}

// BufferOccupancyMode selects whether BufferOccupancy reports per-VC
// or port-averaged occupancy.
type BufferOccupancyMode uint8

const (
	// BufferOccupancyVc reports the occupancy of the queried (port, vc).
	BufferOccupancyVc BufferOccupancyMode = iota
	// BufferOccupancyPort averages occupancy across all VCs of the
	// queried port.
	BufferOccupancyPort
)

// BufferOccupancy is the standard credit-based congestion sensor: the
// fraction of a downstream VC's buffer that is occupied, optionally
// dampened by a phantom window that decays slowly after a flit
// departs (spec §5, grounded on BufferOccupancy.cc and
// PhantomBufferOccupancy.cc).
type BufferOccupancy struct {
	device      *PortedDevice
	settings    CongestionSensorSettings
	mode        BufferOccupancyMode
	maximums    []uint32
	counts      []uint32
	phantom     bool
	valueCoeff  float64
	lengthCoeff float64
	windows     []uint32
}

// NewBufferOccupancy creates a BufferOccupancy sensor for device. If
// phantom is true, valueCoeff/lengthCoeff parameterize the phantom
// window decay (see DecayWindow).
func NewBufferOccupancy(device *PortedDevice, settings CongestionSensorSettings, mode BufferOccupancyMode, phantom bool, valueCoeff, lengthCoeff float64) *BufferOccupancy {
	total := device.NumPorts() * device.NumVcs()
	bo := &BufferOccupancy{
		device:      device,
		settings:    settings,
		mode:        mode,
		maximums:    make([]uint32, total),
		counts:      make([]uint32, total),
		phantom:     phantom,
		valueCoeff:  valueCoeff,
		lengthCoeff: lengthCoeff,
	}
	if phantom {
		bo.windows = make([]uint32, total)
	}
	return bo
}

func (bo *BufferOccupancy) InitCredits(vcIdx uint32, credits uint32) {
	if credits == 0 {
		panic("flitsim: InitCredits called with zero credits")
	}
	bo.maximums[vcIdx] += credits
	bo.counts[vcIdx] += credits
}

func (bo *BufferOccupancy) IncrementCredit(vcIdx uint32) {
	if bo.counts[vcIdx] >= bo.maximums[vcIdx] {
		panic("flitsim: buffer occupancy credit count exceeds maximum")
	}
	bo.counts[vcIdx]++
}

func (bo *BufferOccupancy) DecrementCredit(vcIdx uint32) {
	if bo.counts[vcIdx] == 0 {
		panic("flitsim: buffer occupancy credit count underflow")
	}
	bo.counts[vcIdx]--
	if bo.phantom {
		bo.windows[vcIdx]++
	}
}

// DecayWindow releases one phantom-window unit for vcIdx. Callers
// schedule this a windowLength of Channel cycles after each
// DecrementCredit when phantom mode is enabled (grounded on
// BufferOccupancy::performDecrementWindow).
func (bo *BufferOccupancy) DecayWindow(vcIdx uint32) {
	if !bo.phantom {
		panic("flitsim: DecayWindow called on a non-phantom sensor")
	}
	if bo.windows[vcIdx] == 0 {
		panic("flitsim: phantom window underflow")
	}
	bo.windows[vcIdx]--
}

// WindowLength returns the number of Channel cycles a phantom window
// entry should persist for the channel of the given output port.
func (bo *BufferOccupancy) WindowLength(outputChannel *Channel) uint32 {
	return uint32(float64(outputChannel.Latency()) * bo.lengthCoeff)
}

func (bo *BufferOccupancy) occupied(vcIdx uint32) float64 {
	free := float64(bo.maximums[vcIdx]) - float64(bo.counts[vcIdx])
	if bo.phantom {
		free -= float64(bo.windows[vcIdx]) * bo.valueCoeff
	}
	return free
}

func (bo *BufferOccupancy) Status(_, _, outputPort, outputVc uint32) float64 {
	var raw float64
	switch bo.mode {
	case BufferOccupancyVc:
		vcIdx := bo.device.VcIndex(outputPort, outputVc)
		raw = clamp01(bo.occupied(vcIdx) / float64(bo.maximums[vcIdx]))
	case BufferOccupancyPort:
		var curSum, maxSum float64
		for vc := uint32(0); vc < bo.device.NumVcs(); vc++ {
			vcIdx := bo.device.VcIndex(outputPort, vc)
			curSum += bo.occupied(vcIdx)
			maxSum += float64(bo.maximums[vcIdx])
		}
		raw = clamp01(curSum / maxSum)
	default:
		panic("flitsim: unknown buffer occupancy mode")
	}
	return postProcess(bo.Style(), bo.settings, raw)
}

func (*BufferOccupancy) Style() CongestionStyle { return StyleNormalized }

func (bo *BufferOccupancy) Mode() CongestionMode {
	if bo.mode == BufferOccupancyPort {
		return ModePort
	}
	return ModeVc
}

var _ CongestionSensor = &BufferOccupancy{}

func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}
