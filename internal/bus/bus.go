// Package bus implements the system bus that ties CPU, PPU, APU, cartridge
// and controller ports together and drives the cycle-by-cycle scheduler.
package bus

import (
	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/memory"
	"gones/internal/ppu"
)

// Bus connects all NES components and owns the tick discipline: one CPU
// instruction, then that many CPU cycles worth of PPU (x3) and APU (x1)
// ticks, in order, satisfying the 3:1:1 invariant exactly.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.InputState

	cart *cartridge.Cartridge

	totalCycles uint64
	cpuCycles   uint64
	ppuCycles   uint64
	frameCount  uint64

	dmaSuspendCycles uint64
	dmaInProgress    bool
	nmiPending       bool

	cyclesPerFrame uint64
	oddFrame       bool

	executionLog   []BusExecutionEvent
	loggingEnabled bool
}

// New creates a new system bus with all components wired together.
func New() *Bus {
	bus := &Bus{
		PPU:            ppu.New(),
		APU:            apu.New(),
		Input:          input.NewInputState(),
		cyclesPerFrame: 89342,
	}

	bus.Memory = memory.New(bus.PPU, bus.APU, nil)
	bus.Memory.SetInputSystem(bus.Input)
	bus.CPU = cpu.New(bus.Memory)

	bus.PPU.SetNMICallback(bus.triggerNMI)
	bus.PPU.SetFrameCompleteCallback(bus.handleFrameComplete)
	bus.Memory.SetDMACallback(bus.TriggerOAMDMA)

	bus.Reset()

	return bus
}

// Reset resets all components to their initial state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()
	if b.cart != nil {
		b.cart.Reset()
	}

	b.totalCycles = 0
	b.cpuCycles = 0
	b.ppuCycles = 0
	b.frameCount = 0
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false
	b.nmiPending = false
	b.oddFrame = false

	b.PPU.SetFrameCount(0)

	b.executionLog = b.executionLog[:0]
}

func (b *Bus) triggerNMI() {
	b.nmiPending = true
}

func (b *Bus) handleFrameComplete() {
	b.frameCount = b.PPU.GetFrameCount()
}

// Step executes one CPU instruction (or one stalled cycle, if DMA/DMC are
// stealing cycles) and advances PPU/APU the matching amount.
func (b *Bus) Step() {
	var cpuCycles uint64

	prePC := b.CPU.PC
	var preOpcode uint8
	if b.Memory != nil {
		preOpcode = b.Memory.Read(prePC)
	}
	preFrameCount := b.frameCount

	if b.dmaSuspendCycles > 0 {
		cpuCycles = 1
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
	} else if addr, ok := b.APU.DMCStall(); ok {
		sample := b.Memory.Read(addr)
		b.APU.FeedDMCSample(sample)
		cpuCycles = 4
	} else {
		if b.nmiPending {
			b.CPU.TriggerNMI()
			b.nmiPending = false
		}
		b.CPU.SetIRQ(b.irqLine())

		cpuCycles = b.CPU.Step()
	}

	b.tick(cpuCycles)

	if b.loggingEnabled {
		b.executionLog = append(b.executionLog, BusExecutionEvent{
			StepNumber:    len(b.executionLog) + 1,
			CPUCycles:     b.cpuCycles,
			PPUCycles:     b.cpuCycles * 3,
			FrameCount:    b.frameCount,
			DMAActive:     b.dmaInProgress,
			NMIProcessed:  b.frameCount > preFrameCount,
			PCValue:       prePC,
			InstructionOp: preOpcode,
		})
	}
}

// tick advances the PPU 3x and the APU 1x per CPU cycle consumed, and keeps
// the cartridge's own per-dot state (MMC3/MMC5 IRQ counters, MMC5's
// sprite/background CHR-set switch) in lockstep with the PPU.
func (b *Bus) tick(cpuCycles uint64) {
	renderingEnabled := b.isRenderingEnabled()
	for i := uint64(0); i < cpuCycles; i++ {
		for d := 0; d < 3; d++ {
			b.PPU.Step()
			b.ppuCycles++
			if b.cart != nil {
				scanline, dot := b.PPU.Position()
				b.cart.Tick(scanline, dot, renderingEnabled)
			}
		}
		b.APU.Step()
	}
	b.cpuCycles += cpuCycles
	b.totalCycles += cpuCycles
}

func (b *Bus) irqLine() bool {
	line := b.APU.GetFrameIRQ() || b.APU.GetDMCIRQ()
	if b.cart != nil {
		line = line || b.cart.IRQ()
	}
	return line
}

// TriggerOAMDMA initiates an OAM DMA transfer, stalling the CPU for
// 513 (even cpuCycles) or 514 (odd) cycles.
func (b *Bus) TriggerOAMDMA(sourcePage uint8) {
	if b.dmaInProgress {
		return
	}

	dmaCycles := uint64(513)
	if b.cpuCycles%2 == 1 {
		dmaCycles = 514
	}

	b.dmaInProgress = true
	b.dmaSuspendCycles = dmaCycles

	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		data := b.Memory.Read(sourceAddress + uint16(i))
		b.PPU.WriteOAM(uint8(i), data)
	}
}

// LoadCartridge loads a cartridge into the system, rebuilding memory and the
// CPU around it and re-deriving PPU nametable mirroring.
func (b *Bus) LoadCartridge(cart *cartridge.Cartridge) {
	b.cart = cart

	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	ppuMemory := memory.NewPPUMemory(cart, memory.MirrorMode(cart.Mirror()))
	b.PPU.SetMemory(ppuMemory)

	b.PPU.SetNMICallback(b.triggerNMI)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.CPU.Reset()
}

// Run runs the emulator for a specified number of frames.
func (b *Bus) Run(frames int) {
	targetFrames := b.frameCount + uint64(frames)
	for b.frameCount < targetFrames {
		b.Step()
	}
}

// RunCycles runs the emulator for a specified number of CPU cycles.
func (b *Bus) RunCycles(cycles uint64) {
	targetCycles := b.cpuCycles + cycles
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

// Frame executes one complete NTSC frame worth of CPU cycles.
func (b *Bus) Frame() {
	targetCycles := b.cpuCycles + 29781
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

func (b *Bus) GetFrameRate() float64 {
	cpuFrequency := 1789773.0
	cpuCyclesPerFrame := cpuFrequency / 60.098803
	return cpuFrequency / cpuCyclesPerFrame
}

func (b *Bus) GetFrameBuffer() []uint32 {
	frameBuffer := b.PPU.GetFrameBuffer()
	return frameBuffer[:]
}

func (b *Bus) GetAudioSamples() []float32    { return b.APU.GetSamples() }
func (b *Bus) SetAudioSampleRate(rate int)   { b.APU.SetSampleRate(rate) }
func (b *Bus) GetCycleCount() uint64         { return b.cpuCycles }
func (b *Bus) GetFrameCount() uint64         { return b.frameCount }
func (b *Bus) IsDMAInProgress() bool         { return b.dmaInProgress }

// Cartridge returns the currently loaded cartridge, or nil if none is
// loaded, so callers like the save-state manager can reach mapper state.
func (b *Bus) Cartridge() *cartridge.Cartridge { return b.cart }

// SetCycleCount restores the bus's cycle counters from a save state. PPU
// cycles run 3x CPU cycles and total cycles track CPU cycles exactly, so
// both are re-derived from the single restored count rather than stored
// independently.
func (b *Bus) SetCycleCount(cpuCycles uint64) {
	b.cpuCycles = cpuCycles
	b.ppuCycles = cpuCycles * 3
	b.totalCycles = cpuCycles
}

// SetFrameCount restores the bus's frame counter and keeps the PPU's own
// counter, which drives handleFrameComplete, in sync.
func (b *Bus) SetFrameCount(count uint64) {
	b.frameCount = count
	b.PPU.SetFrameCount(count)
}

func (b *Bus) isRenderingEnabled() bool {
	mask := b.PPU.ReadRegister(0x2001)
	return (mask & 0x18) != 0
}

func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

func (b *Bus) EnableInputDebug(enable bool)      { b.Input.EnableDebug(enable) }
func (b *Bus) GetInputState() *input.InputState  { return b.Input }

func (b *Bus) GetExecutionLog() []BusExecutionEvent { return b.executionLog }
func (b *Bus) EnableExecutionLogging()              { b.loggingEnabled = true }
func (b *Bus) DisableExecutionLogging()             { b.loggingEnabled = false }
func (b *Bus) ClearExecutionLog()                   { b.executionLog = b.executionLog[:0] }

// BusExecutionEvent represents a single execution step, used by tests that
// assert on instruction-by-instruction timing behavior.
type BusExecutionEvent struct {
	StepNumber    int
	CPUCycles     uint64
	PPUCycles     uint64
	FrameCount    uint64
	DMAActive     bool
	NMIProcessed  bool
	PCValue       uint16
	InstructionOp uint8
}

func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.cpuCycles,
		Flags: CPUFlags{
			N: b.CPU.N,
			V: b.CPU.V,
			B: b.CPU.B,
			D: b.CPU.D,
			I: b.CPU.I,
			Z: b.CPU.Z,
			C: b.CPU.C,
		},
	}
}

type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

func (b *Bus) GetPPUState() PPUState {
	scanline, cycle := b.PPU.Position()
	return PPUState{
		Scanline:    scanline,
		Cycle:       cycle,
		FrameCount:  b.frameCount,
		VBlankFlag:  (b.PPU.ReadRegister(0x2002) & 0x80) != 0,
		RenderingOn: b.isRenderingEnabled(),
		NMIEnabled:  b.PPU.NMIEnabled(),
	}
}

type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
	NMIEnabled  bool
}

func (b *Bus) EnableCPUDebug(enable bool) {
	if b.CPU != nil {
		b.CPU.EnableDebugLogging(enable)
		b.CPU.EnableLoopDetection(enable)
	}
}
