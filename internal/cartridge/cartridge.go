// Package cartridge implements iNES ROM loading and the mapper abstraction
// that routes CPU/PPU bus activity into cartridge-specific bank switching.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// MirrorMode represents nametable mirroring mode.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// Mapper is the contract every cartridge mapper implements. It owns PRG/CHR
// bank switching, nametable routing (real hardware routes the CIRAM address
// lines through the cartridge edge connector, so mappers with exotic
// mirroring such as MMC5 decide this themselves), IRQ generation driven by
// PPU activity, and save-state serialization.
type Mapper interface {
	CPURead(address uint16) uint8
	CPUWrite(address uint16, value uint8)

	PPUReadCHR(address uint16) uint8
	PPUWriteCHR(address uint16, value uint8)
	PPUReadNametable(address uint16) uint8
	PPUWriteNametable(address uint16, value uint8)

	// Tick is called once per PPU dot with the current scanline (-1..260,
	// -1 is pre-render) and dot (0..340), and whether rendering is enabled
	// (PPUMASK bit 3 or 4). Mappers that generate scanline IRQs (MMC3,
	// MMC5) use this to track the PPU's position.
	Tick(scanline int, dot int, renderingEnabled bool)

	// IRQ reports whether the mapper is currently asserting its IRQ line.
	IRQ() bool

	Reset()
	Mirror() MirrorMode

	SaveState() MapperState
	LoadState(MapperState)
}

// MapperState is a generic, mapper-agnostic serialization bag. Every mapper
// packs its registers/counters into Regs/Ints and its RAM-backed storage
// (CIRAM, PRG-RAM, CHR-RAM, ExRAM) into the byte slices; savestate.State
// stores this verbatim and restores it via LoadState.
type MapperState struct {
	Regs   []uint8
	Ints   []int32
	CIRAM  []uint8
	PRGRAM []uint8
	CHRRAM []uint8
	ExRAM  []uint8
}

// Cartridge owns the raw ROM images and delegates all addressed access to
// the active Mapper.
type Cartridge struct {
	prgROM []uint8
	chrROM []uint8

	mapperID uint8
	mapper   Mapper
	mirror   MirrorMode // header-derived mirroring, read once by the mapper constructor

	hasBattery bool
	sram       [0x2000]uint8

	hasCHRRAM bool
}

type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8
	CHRROMSize uint8
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// LoadError describes why a ROM image failed to load.
type LoadError struct {
	Reason string
}

func (e *LoadError) Error() string { return "cartridge: " + e.Reason }

// LoadFromFile loads a cartridge from an iNES file on disk.
func LoadFromFile(filename string) (*Cartridge, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader loads a cartridge from an iNES-formatted stream.
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	var raw [16]byte
	n, readErr := io.ReadFull(r, raw[:])
	if n >= 4 && string(raw[:4]) != "NES\x1A" {
		return nil, &LoadError{Reason: "invalid iNES file: missing magic number"}
	}
	if readErr != nil {
		return nil, readErr
	}

	var header iNESHeader
	if err := binary.Read(bytes.NewReader(raw[:]), binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.PRGROMSize == 0 {
		return nil, &LoadError{Reason: "PRG ROM size cannot be zero"}
	}

	cart := &Cartridge{
		mapperID:   (header.Flags6 >> 4) | (header.Flags7 & 0xF0),
		hasBattery: (header.Flags6 & 0x02) != 0,
	}

	switch {
	case header.Flags6&0x08 != 0:
		cart.mirror = MirrorFourScreen
	case header.Flags6&0x01 != 0:
		cart.mirror = MirrorVertical
	default:
		cart.mirror = MirrorHorizontal
	}

	if header.Flags6&0x04 != 0 {
		trainer := make([]uint8, 512)
		if _, err := io.ReadFull(r, trainer); err != nil {
			return nil, err
		}
	}

	prgSize := int(header.PRGROMSize) * 16384
	cart.prgROM = make([]uint8, prgSize)
	if _, err := io.ReadFull(r, cart.prgROM); err != nil {
		return nil, err
	}

	chrSize := int(header.CHRROMSize) * 8192
	if chrSize > 0 {
		cart.chrROM = make([]uint8, chrSize)
		if _, err := io.ReadFull(r, cart.chrROM); err != nil {
			return nil, err
		}
	} else {
		cart.chrROM = make([]uint8, 8192)
		cart.hasCHRRAM = true
	}

	mapper, err := createMapper(cart.mapperID, cart)
	if err != nil {
		return nil, err
	}
	cart.mapper = mapper

	return cart, nil
}

func (c *Cartridge) CPURead(address uint16) uint8         { return c.mapper.CPURead(address) }
func (c *Cartridge) CPUWrite(address uint16, value uint8) { c.mapper.CPUWrite(address, value) }
func (c *Cartridge) PPUReadCHR(address uint16) uint8      { return c.mapper.PPUReadCHR(address) }
func (c *Cartridge) PPUWriteCHR(address uint16, value uint8) {
	c.mapper.PPUWriteCHR(address, value)
}
func (c *Cartridge) PPUReadNametable(address uint16) uint8 { return c.mapper.PPUReadNametable(address) }
func (c *Cartridge) PPUWriteNametable(address uint16, value uint8) {
	c.mapper.PPUWriteNametable(address, value)
}
func (c *Cartridge) Tick(scanline, dot int, renderingEnabled bool) {
	c.mapper.Tick(scanline, dot, renderingEnabled)
}
func (c *Cartridge) IRQ() bool          { return c.mapper.IRQ() }
func (c *Cartridge) Reset()             { c.mapper.Reset() }
func (c *Cartridge) Mirror() MirrorMode { return c.mapper.Mirror() }

// GetMirrorMode is kept for callers grounded on the pre-expansion API.
func (c *Cartridge) GetMirrorMode() MirrorMode { return c.mapper.Mirror() }

func (c *Cartridge) SaveState() MapperState { return c.mapper.SaveState() }
func (c *Cartridge) LoadState(s MapperState) { c.mapper.LoadState(s) }

func (c *Cartridge) MapperID() uint8 { return c.mapperID }

// extendedAttributeMapper is implemented by mappers (MMC5) whose nametable
// fetches can substitute a per-tile palette/CHR-bank pair instead of the
// ordinary attribute-table byte.
type extendedAttributeMapper interface {
	ExtendedAttribute(tileX, tileY int) (palette uint8, chrBank uint8, ok bool)
}

// splitScreenMapper is implemented by mappers (MMC5) with a vertical
// split-screen region overlaid on the background.
type splitScreenMapper interface {
	SplitScreenColumn(pixelX, scanline int) (active bool, chrBank, tileID, attribute uint8)
}

// ExtendedAttribute reports a per-tile palette/CHR-bank override from the
// active mapper's extended-attribute mode, if it has one.
func (c *Cartridge) ExtendedAttribute(tileX, tileY int) (palette uint8, chrBank uint8, ok bool) {
	if m, supports := c.mapper.(extendedAttributeMapper); supports {
		return m.ExtendedAttribute(tileX, tileY)
	}
	return 0, 0, false
}

// SplitScreenColumn reports whether the active mapper's split-screen region
// covers the given screen pixel column/scanline.
func (c *Cartridge) SplitScreenColumn(pixelX, scanline int) (active bool, chrBank, tileID, attribute uint8) {
	if m, supports := c.mapper.(splitScreenMapper); supports {
		return m.SplitScreenColumn(pixelX, scanline)
	}
	return false, 0, 0, 0
}

// chrBankReader is implemented by mappers (MMC5) whose extended-attribute
// and split-screen modes name a CHR bank directly instead of going through
// the ordinary windowed CHR read path.
type chrBankReader interface {
	ReadCHRBank(bank uint8, offset uint16) uint8
}

// ReadCHRBank reads a byte from an explicit 4KB CHR bank. Mappers without a
// direct-bank read path (anything but MMC5) never receive this call, since
// callers only use it behind ExtendedAttribute/SplitScreenColumn.
func (c *Cartridge) ReadCHRBank(bank uint8, offset uint16) uint8 {
	if m, supports := c.mapper.(chrBankReader); supports {
		return m.ReadCHRBank(bank, offset)
	}
	return 0
}

func createMapper(id uint8, cart *Cartridge) (Mapper, error) {
	switch id {
	case 0:
		return newMapper000(cart), nil
	case 1:
		return newMapper001(cart), nil
	case 2:
		return newMapper002(cart), nil
	case 3:
		return newMapper003(cart), nil
	case 4:
		return newMapper004(cart), nil
	case 5:
		return newMapper005(cart), nil
	case 7:
		return newMapper007(cart), nil
	default:
		return nil, &LoadError{Reason: fmt.Sprintf("unsupported mapper %d", id)}
	}
}

// ciramSize returns the CIRAM allocation a standard mapper needs: four
// independent 1KB nametables when the board wires all four lines (four
// screen), otherwise the usual 2KB the PPU mirrors down to two tables.
func ciramSize(mode MirrorMode) int {
	if mode == MirrorFourScreen {
		return 0x1000
	}
	return 0x800
}

// mirrorNametableIndex maps a $2000-$2FFF PPU address to an offset into a
// standard 2KB (or 4KB four-screen) CIRAM array under the given mirroring.
func mirrorNametableIndex(mode MirrorMode, address uint16) int {
	addr := address & 0x0FFF
	table := addr / 0x400
	offset := int(addr % 0x400)

	switch mode {
	case MirrorHorizontal:
		return int(table/2)*0x400 + offset
	case MirrorVertical:
		return int(table%2)*0x400 + offset
	case MirrorSingleScreen0:
		return offset
	case MirrorSingleScreen1:
		return 0x400 + offset
	case MirrorFourScreen:
		return int(table)*0x400 + offset
	default:
		return offset
	}
}

// MockCartridge implements the memory package's CartridgeInterface for unit
// tests that want direct, uninstrumented PRG/CHR arrays instead of a parsed
// iNES image.
type MockCartridge struct {
	prgROM    [0x8000]uint8
	chrROM    [0x2000]uint8
	prgRAM    [0x2000]uint8
	chrRAM    [0x2000]uint8
	mirroring MirrorMode

	prgReads  []uint16
	prgWrites []uint16
	chrReads  []uint16
	chrWrites []uint16
}

func NewMockCartridge() *MockCartridge {
	return &MockCartridge{mirroring: MirrorHorizontal}
}

func (c *MockCartridge) CPURead(address uint16) uint8 {
	c.prgReads = append(c.prgReads, address)
	if address >= 0x8000 {
		index := address - 0x8000
		if index >= 0x4000 && len(c.prgROM) == 0x4000 {
			index %= 0x4000
		}
		return c.prgROM[index]
	}
	if address >= 0x6000 && address < 0x8000 {
		return c.prgRAM[address-0x6000]
	}
	return 0
}

func (c *MockCartridge) CPUWrite(address uint16, value uint8) {
	c.prgWrites = append(c.prgWrites, address)
	if address >= 0x6000 && address < 0x8000 {
		c.prgRAM[address-0x6000] = value
	}
}

func (c *MockCartridge) PPUReadCHR(address uint16) uint8 {
	c.chrReads = append(c.chrReads, address)
	if address < 0x2000 {
		return c.chrROM[address]
	}
	return 0
}

func (c *MockCartridge) PPUWriteCHR(address uint16, value uint8) {
	c.chrWrites = append(c.chrWrites, address)
	if address < 0x2000 {
		c.chrRAM[address] = value
	}
}

func (c *MockCartridge) PPUReadNametable(address uint16) uint8     { return 0 }
func (c *MockCartridge) PPUWriteNametable(address uint16, v uint8) {}

func (c *MockCartridge) ExtendedAttribute(tileX, tileY int) (uint8, uint8, bool) { return 0, 0, false }
func (c *MockCartridge) SplitScreenColumn(pixelX, scanline int) (bool, uint8, uint8, uint8) {
	return false, 0, 0, 0
}
func (c *MockCartridge) ReadCHRBank(bank uint8, offset uint16) uint8 { return 0 }

func (c *MockCartridge) LoadPRG(data []uint8) { copy(c.prgROM[:], data) }
func (c *MockCartridge) LoadCHR(data []uint8) { copy(c.chrROM[:], data) }

func (c *MockCartridge) SetMirroring(mode MirrorMode) { c.mirroring = mode }
func (c *MockCartridge) GetMirroring() MirrorMode     { return c.mirroring }

func (c *MockCartridge) ClearLogs() {
	c.prgReads = c.prgReads[:0]
	c.prgWrites = c.prgWrites[:0]
	c.chrReads = c.chrReads[:0]
	c.chrWrites = c.chrWrites[:0]
}
