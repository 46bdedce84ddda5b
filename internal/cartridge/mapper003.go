package cartridge

// mapper003 implements CNROM: fixed PRG (16 or 32KB, mirrored like NROM)
// and a single switchable 8KB CHR bank selected by any write to $8000-$FFFF.
type mapper003 struct {
	cart     *Cartridge
	chrBank  uint8
	prgBanks int
	mirror   MirrorMode
	ciram    []uint8
}

func newMapper003(cart *Cartridge) *mapper003 {
	return &mapper003{
		cart:     cart,
		prgBanks: len(cart.prgROM) / 0x4000,
		mirror:   cart.mirror,
		ciram:    make([]uint8, ciramSize(cart.mirror)),
	}
}

func (m *mapper003) Reset()             { m.chrBank = 0 }
func (m *mapper003) Mirror() MirrorMode { return m.mirror }

func (m *mapper003) CPURead(address uint16) uint8 {
	if address >= 0x8000 {
		offset := address - 0x8000
		if m.prgBanks == 1 {
			offset &= 0x3FFF
		}
		if int(offset) < len(m.cart.prgROM) {
			return m.cart.prgROM[offset]
		}
	} else if address >= 0x6000 {
		return m.cart.sram[address-0x6000]
	}
	return 0
}

func (m *mapper003) CPUWrite(address uint16, value uint8) {
	if address >= 0x8000 {
		m.chrBank = value & 0x03
	} else if address >= 0x6000 {
		m.cart.sram[address-0x6000] = value
	}
}

func (m *mapper003) PPUReadCHR(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	idx := int(m.chrBank)*0x2000 + int(address)
	if idx < len(m.cart.chrROM) {
		return m.cart.chrROM[idx]
	}
	return 0
}

func (m *mapper003) PPUWriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM || address >= 0x2000 {
		return
	}
	idx := int(m.chrBank)*0x2000 + int(address)
	if idx < len(m.cart.chrROM) {
		m.cart.chrROM[idx] = value
	}
}

func (m *mapper003) PPUReadNametable(address uint16) uint8 {
	return m.ciram[mirrorNametableIndex(m.mirror, address)%len(m.ciram)]
}

func (m *mapper003) PPUWriteNametable(address uint16, value uint8) {
	m.ciram[mirrorNametableIndex(m.mirror, address)%len(m.ciram)] = value
}

func (m *mapper003) Tick(scanline, dot int, renderingEnabled bool) {}
func (m *mapper003) IRQ() bool                                     { return false }

func (m *mapper003) SaveState() MapperState {
	return MapperState{Regs: []uint8{m.chrBank}, CIRAM: append([]uint8(nil), m.ciram...)}
}

func (m *mapper003) LoadState(s MapperState) {
	if len(s.Regs) >= 1 {
		m.chrBank = s.Regs[0]
	}
	copy(m.ciram, s.CIRAM)
}
