// Package simulated provides an in-memory GPU system for development without
// NVIDIA hardware and for tests. The control API enumerates devices in the
// reverse order of the monitoring API so that correlation is exercised.
package simulated

import (
	"fmt"
	"sync"

	"github.com/haskel/pstated/internal/domain"
)

// GPU describes one simulated device.
type GPU struct {
	Name        string
	Bus         uint32
	Temperature uint32
	Utilization uint32
}

// Call records a vendor call made against the simulated system.
type Call struct {
	Name   string
	Bus    uint32
	PState uint32
}

const (
	monitorHandleBase = 0x1000
	libraryName       = "simulated"
)

// System is a set of simulated GPUs shared by a Control and a Monitoring view.
type System struct {
	mu           sync.Mutex
	gpus         []GPU
	controlOrder []int
	pstates      map[uint32]uint32
	calls        []Call
	failures     map[string]error

	controlLoaded    bool
	monitoringLoaded bool
}

// NewSystem creates a system with the given GPUs in monitoring order.
func NewSystem(gpus ...GPU) *System {
	order := make([]int, len(gpus))
	for i := range order {
		order[i] = len(gpus) - 1 - i
	}
	return &System{
		gpus:         append([]GPU(nil), gpus...),
		controlOrder: order,
		pstates:      make(map[uint32]uint32),
		failures:     make(map[string]error),
	}
}

// Default returns an idle system of n GPUs, used by the --simulate flag.
func Default(n int) *System {
	gpus := make([]GPU, n)
	for i := range gpus {
		gpus[i] = GPU{
			Name:        fmt.Sprintf("Simulated GPU %d", i),
			Bus:         uint32(1 + i*16),
			Temperature: 45,
		}
	}
	return NewSystem(gpus...)
}

// SetControlOrder overrides the control enumeration order. order[i] is the
// monitoring index of the i-th control handle.
func (s *System) SetControlOrder(order []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controlOrder = append([]int(nil), order...)
}

// SetReading updates the metrics reported for the GPU at monitoring index i.
func (s *System) SetReading(i int, temperature, utilization uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gpus[i].Temperature = temperature
	s.gpus[i].Utilization = utilization
}

// Fail makes every subsequent call with the given name return err. A nil err
// clears the failure.
func (s *System) Fail(call string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, call)
		return
	}
	s.failures[call] = err
}

// Calls returns a copy of the recorded calls.
func (s *System) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many times a call was made.
func (s *System) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// ResetCalls forgets the recorded calls.
func (s *System) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// PState returns the last pstate forced on the GPU with the given bus.
func (s *System) PState(bus uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pstates[bus]
	return p, ok
}

// Control returns the control API view.
func (s *System) Control() *Control {
	return &Control{s: s}
}

// Monitoring returns the monitoring API view.
func (s *System) Monitoring() *Monitoring {
	return &Monitoring{s: s}
}

// record appends a call and returns its injected failure, if any. Caller must hold the lock.
func (s *System) record(c Call) error {
	s.calls = append(s.calls, c)
	return s.failures[c.Name]
}

// Control implements domain.ControlLibrary.
type Control struct {
	s *System
}

func (c *Control) Initialize() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.record(Call{Name: "Initialize"}); err != nil {
		return err
	}
	c.s.controlLoaded = true
	return nil
}

func (c *Control) Unload() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if !c.s.controlLoaded {
		return nil
	}
	if err := c.s.record(Call{Name: "Unload"}); err != nil {
		return err
	}
	c.s.controlLoaded = false
	return nil
}

// LibraryName identifies the simulated backend in logs.
func (c *Control) LibraryName() string { return libraryName }

func (c *Control) Loaded() bool {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.controlLoaded
}

func (c *Control) EnumeratePhysicalGPUs() ([]domain.ControlHandle, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.record(Call{Name: "EnumeratePhysicalGPUs"}); err != nil {
		return nil, err
	}
	handles := make([]domain.ControlHandle, len(c.s.controlOrder))
	for i, idx := range c.s.controlOrder {
		handles[i] = domain.ControlHandle(idx + 1)
	}
	return handles, nil
}

func (c *Control) BusID(h domain.ControlHandle) (uint32, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	gpu, err := c.s.controlGPU(h)
	if err != nil {
		return 0, err
	}
	if err := c.s.record(Call{Name: "ControlBusID", Bus: gpu.Bus}); err != nil {
		return 0, err
	}
	return gpu.Bus, nil
}

func (c *Control) SetPerformanceState(h domain.ControlHandle, pstate uint32) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	gpu, err := c.s.controlGPU(h)
	if err != nil {
		return err
	}
	if err := c.s.record(Call{Name: "SetPerformanceState", Bus: gpu.Bus, PState: pstate}); err != nil {
		return err
	}
	c.s.pstates[gpu.Bus] = pstate
	return nil
}

func (s *System) controlGPU(h domain.ControlHandle) (GPU, error) {
	i := int(h) - 1
	if i < 0 || i >= len(s.gpus) {
		return GPU{}, fmt.Errorf("simulated: invalid control handle %d", h)
	}
	return s.gpus[i], nil
}

// Monitoring implements domain.MonitoringLibrary.
type Monitoring struct {
	s *System
}

func (m *Monitoring) Init() error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.record(Call{Name: "Init"}); err != nil {
		return err
	}
	m.s.monitoringLoaded = true
	return nil
}

func (m *Monitoring) Shutdown() error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if !m.s.monitoringLoaded {
		return nil
	}
	if err := m.s.record(Call{Name: "Shutdown"}); err != nil {
		return err
	}
	m.s.monitoringLoaded = false
	return nil
}

func (m *Monitoring) LibraryName() string { return libraryName }

func (m *Monitoring) Loaded() bool {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.monitoringLoaded
}

func (m *Monitoring) DeviceCount() (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.record(Call{Name: "DeviceCount"}); err != nil {
		return 0, err
	}
	return len(m.s.gpus), nil
}

func (m *Monitoring) DeviceHandle(index int) (domain.MonitorHandle, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.record(Call{Name: "DeviceHandle"}); err != nil {
		return 0, err
	}
	if index < 0 || index >= len(m.s.gpus) {
		return 0, fmt.Errorf("simulated: invalid device index %d", index)
	}
	return domain.MonitorHandle(monitorHandleBase + index), nil
}

func (m *Monitoring) BusID(h domain.MonitorHandle) (uint32, error) {
	return m.read(h, "MonitoringBusID", func(g GPU) uint32 { return g.Bus })
}

func (m *Monitoring) Temperature(h domain.MonitorHandle) (uint32, error) {
	return m.read(h, "Temperature", func(g GPU) uint32 { return g.Temperature })
}

func (m *Monitoring) Utilization(h domain.MonitorHandle) (uint32, error) {
	return m.read(h, "Utilization", func(g GPU) uint32 { return g.Utilization })
}

func (m *Monitoring) Name(h domain.MonitorHandle) (string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	gpu, err := m.s.monitorGPU(h)
	if err != nil {
		return "", err
	}
	if err := m.s.record(Call{Name: "Name", Bus: gpu.Bus}); err != nil {
		return "", err
	}
	return gpu.Name, nil
}

func (m *Monitoring) read(h domain.MonitorHandle, call string, get func(GPU) uint32) (uint32, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	gpu, err := m.s.monitorGPU(h)
	if err != nil {
		return 0, err
	}
	if err := m.s.record(Call{Name: call, Bus: gpu.Bus}); err != nil {
		return 0, err
	}
	return get(gpu), nil
}

func (s *System) monitorGPU(h domain.MonitorHandle) (GPU, error) {
	i := int(h) - monitorHandleBase
	if i < 0 || i >= len(s.gpus) {
		return GPU{}, fmt.Errorf("simulated: invalid monitor handle %d", h)
	}
	return s.gpus[i], nil
}

// Compile-time interface checks
var (
	_ domain.ControlLibrary    = (*Control)(nil)
	_ domain.MonitoringLibrary = (*Monitoring)(nil)
)
