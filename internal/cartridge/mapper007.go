package cartridge

// mapper007 implements AxROM: a single switchable 32KB PRG bank plus a
// single-screen nametable selector driven by the same register (bit 4).
// CHR is always RAM.
type mapper007 struct {
	cart     *Cartridge
	prgBank  uint8
	screen   uint8 // 0 or 1, selects which CIRAM half is mirrored everywhere
	prgBanks int
	ciram    []uint8
}

func newMapper007(cart *Cartridge) *mapper007 {
	return &mapper007{
		cart:     cart,
		prgBanks: len(cart.prgROM) / 0x8000,
		ciram:    make([]uint8, 0x800),
	}
}

func (m *mapper007) Reset() { m.prgBank, m.screen = 0, 0 }
func (m *mapper007) Mirror() MirrorMode {
	if m.screen == 0 {
		return MirrorSingleScreen0
	}
	return MirrorSingleScreen1
}

func (m *mapper007) CPURead(address uint16) uint8 {
	if address >= 0x8000 {
		idx := int(m.prgBank)*0x8000 + int(address-0x8000)
		if idx < len(m.cart.prgROM) {
			return m.cart.prgROM[idx]
		}
	}
	return 0
}

func (m *mapper007) CPUWrite(address uint16, value uint8) {
	if address >= 0x8000 {
		m.prgBank = value & 0x07
		m.screen = (value >> 4) & 0x01
	}
}

func (m *mapper007) PPUReadCHR(address uint16) uint8 {
	if address < 0x2000 && int(address) < len(m.cart.chrROM) {
		return m.cart.chrROM[address]
	}
	return 0
}

func (m *mapper007) PPUWriteCHR(address uint16, value uint8) {
	if address < 0x2000 && int(address) < len(m.cart.chrROM) {
		m.cart.chrROM[address] = value
	}
}

func (m *mapper007) PPUReadNametable(address uint16) uint8 {
	return m.ciram[mirrorNametableIndex(m.Mirror(), address)%len(m.ciram)]
}

func (m *mapper007) PPUWriteNametable(address uint16, value uint8) {
	m.ciram[mirrorNametableIndex(m.Mirror(), address)%len(m.ciram)] = value
}

func (m *mapper007) Tick(scanline, dot int, renderingEnabled bool) {}
func (m *mapper007) IRQ() bool                                     { return false }

func (m *mapper007) SaveState() MapperState {
	return MapperState{
		Regs:   []uint8{m.prgBank, m.screen},
		CIRAM:  append([]uint8(nil), m.ciram...),
		CHRRAM: append([]uint8(nil), m.cart.chrROM...),
	}
}

func (m *mapper007) LoadState(s MapperState) {
	if len(s.Regs) >= 2 {
		m.prgBank, m.screen = s.Regs[0], s.Regs[1]
	}
	copy(m.ciram, s.CIRAM)
	copy(m.cart.chrROM, s.CHRRAM)
}
