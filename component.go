package flitsim

//
// Component base and the process-global debug-name registry
//

import (
	"fmt"
	"sync"
)

// registry is the process-global, name-keyed component table plus the
// set of full names awaiting a debug-enabled component (spec §4.2).
// It is owned by a Kernel-adjacent simulation context rather than a
// true package-level global, so that distinct simulation runs in the
// same process (e.g. parallel tests) don't interfere with each other.
type registry struct {
	mu           sync.Mutex
	components   map[string]*Component
	toBeDebugged map[string]bool
	logger       Logger
}

// NewRegistry creates an empty component registry. One Network owns
// exactly one registry for its lifetime. Components log through
// NullLogger until SetLogger attaches a real one.
func NewRegistry(debugNames []string) *registry {
	r := &registry{
		components:   map[string]*Component{},
		toBeDebugged: map[string]bool{},
		logger:       &NullLogger{},
	}
	for _, n := range debugNames {
		r.toBeDebugged[n] = true
	}
	return r
}

// SetLogger attaches the Logger every registered Component's Debugf/
// Debug methods emit through, when that component matched a
// configured debug name.
func (r *registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// DebugCheck panics if any configured debug name was never matched by
// a constructed component, the same fatal check original_source
// performs at startup (a typo'd debug target is a misconfiguration).
func (r *registry) DebugCheck() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toBeDebugged) > 0 {
		panic(fmt.Sprintf("flitsim: %d debug name(s) never matched a component", len(r.toBeDebugged)))
	}
}

// Component is the shared base for every simulated object: routers,
// channels, queues, schedulers, interfaces, sensors. It gives a
// hierarchical dotted name, a parent pointer, debug-enable matching
// against the registry, and a convenience to schedule events against
// itself (spec §4.2).
type Component struct {
	kernel   *Kernel
	registry *registry
	name     string
	parent   *Component
	debug    bool
	handler  EventHandler // set by the embedding type via SetHandler
}

// NewComponent constructs a Component and registers its full dotted
// name in the registry, panicking on a duplicate name (a program bug:
// two components can never legitimately share a full name).
func NewComponent(kernel *Kernel, reg *registry, name string, parent *Component) *Component {
	c := &Component{kernel: kernel, registry: reg, name: name, parent: parent}
	full := c.FullName()
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.components == nil {
		reg.components = map[string]*Component{}
	}
	if _, dup := reg.components[full]; dup {
		panic(fmt.Sprintf("flitsim: duplicate component name: %s", full))
	}
	reg.components[full] = c
	if reg.toBeDebugged[full] {
		c.debug = true
		delete(reg.toBeDebugged, full)
	}
	return c
}

// SetHandler attaches the EventHandler that AddEvent's scheduled
// events will be dispatched to. Embedding types call this once in
// their constructor with themselves (or an adapter) as the handler.
func (c *Component) SetHandler(h EventHandler) { c.handler = h }

// Name returns this component's own (non-hierarchical) name.
func (c *Component) Name() string { return c.name }

// FullName returns the dotted hierarchical name: parent.FullName() +
// "." + name, or just name at the root.
func (c *Component) FullName() string {
	if c.parent != nil {
		return c.parent.FullName() + "." + c.name
	}
	return c.name
}

// Parent returns the parent component, or nil at the root.
func (c *Component) Parent() *Component { return c.parent }

// Debug reports whether this component was matched by a configured
// debug name.
func (c *Component) Debug() bool { return c.debug }

// Debugf formats and emits a debug message through the registry's
// Logger, but only for components matched by a configured debug name
// (spec §7 "selective per-component debug logging"); other components
// pay only the Debug() check.
func (c *Component) Debugf(format string, v ...any) {
	if c.debug {
		c.registry.logger.Debugf(c.FullName()+": "+format, v...)
	}
}

// AddEvent schedules an event addressed to this component's handler.
func (c *Component) AddEvent(when VirtualTime, payload any, kind int32) {
	if c.handler == nil {
		panic(fmt.Sprintf("flitsim: component %s has no event handler set", c.FullName()))
	}
	c.kernel.Schedule(when, c.handler, payload, kind)
}

// Kernel returns the event kernel driving this component.
func (c *Component) Kernel() *Kernel { return c.kernel }
