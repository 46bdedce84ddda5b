package cartridge

// mapper002 implements UxROM: a single 16KB switchable bank at $8000-$BFFF
// and the last 16KB bank fixed at $C000-$FFFF. CHR is always RAM (8KB).
type mapper002 struct {
	cart     *Cartridge
	prgBank  uint8
	prgBanks int
	mirror   MirrorMode
	ciram    []uint8
}

func newMapper002(cart *Cartridge) *mapper002 {
	return &mapper002{
		cart:     cart,
		prgBanks: len(cart.prgROM) / 0x4000,
		mirror:   cart.mirror,
		ciram:    make([]uint8, ciramSize(cart.mirror)),
	}
}

func (m *mapper002) Reset()             { m.prgBank = 0 }
func (m *mapper002) Mirror() MirrorMode { return m.mirror }

func (m *mapper002) CPURead(address uint16) uint8 {
	switch {
	case address >= 0xC000:
		last := m.prgBanks - 1
		idx := last*0x4000 + int(address-0xC000)
		if idx < len(m.cart.prgROM) {
			return m.cart.prgROM[idx]
		}
	case address >= 0x8000:
		idx := int(m.prgBank)*0x4000 + int(address-0x8000)
		if idx < len(m.cart.prgROM) {
			return m.cart.prgROM[idx]
		}
	case address >= 0x6000:
		return m.cart.sram[address-0x6000]
	}
	return 0
}

func (m *mapper002) CPUWrite(address uint16, value uint8) {
	switch {
	case address >= 0x8000:
		m.prgBank = value & 0x0F
	case address >= 0x6000:
		m.cart.sram[address-0x6000] = value
	}
}

func (m *mapper002) PPUReadCHR(address uint16) uint8 {
	if address < 0x2000 && int(address) < len(m.cart.chrROM) {
		return m.cart.chrROM[address]
	}
	return 0
}

func (m *mapper002) PPUWriteCHR(address uint16, value uint8) {
	if address < 0x2000 && int(address) < len(m.cart.chrROM) {
		m.cart.chrROM[address] = value
	}
}

func (m *mapper002) PPUReadNametable(address uint16) uint8 {
	return m.ciram[mirrorNametableIndex(m.mirror, address)%len(m.ciram)]
}

func (m *mapper002) PPUWriteNametable(address uint16, value uint8) {
	m.ciram[mirrorNametableIndex(m.mirror, address)%len(m.ciram)] = value
}

func (m *mapper002) Tick(scanline, dot int, renderingEnabled bool) {}
func (m *mapper002) IRQ() bool                                     { return false }

func (m *mapper002) SaveState() MapperState {
	return MapperState{
		Regs:   []uint8{m.prgBank},
		CIRAM:  append([]uint8(nil), m.ciram...),
		CHRRAM: append([]uint8(nil), m.cart.chrROM...),
	}
}

func (m *mapper002) LoadState(s MapperState) {
	if len(s.Regs) >= 1 {
		m.prgBank = s.Regs[0]
	}
	copy(m.ciram, s.CIRAM)
	copy(m.cart.chrROM, s.CHRRAM)
}
