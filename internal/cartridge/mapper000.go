package cartridge

// mapper000 implements NROM. No bank switching: 16KB PRG is mirrored to
// fill the 32KB CPU window, CHR is a flat 8KB ROM or RAM bank.
type mapper000 struct {
	cart     *Cartridge
	prgBanks uint8
	mirror   MirrorMode
	ciram    []uint8
}

func newMapper000(cart *Cartridge) *mapper000 {
	return &mapper000{
		cart:     cart,
		prgBanks: uint8(len(cart.prgROM) / 0x4000),
		mirror:   cart.mirror,
		ciram:    make([]uint8, ciramSize(cart.mirror)),
	}
}

func (m *mapper000) CPURead(address uint16) uint8 {
	switch {
	case address >= 0x8000:
		if len(m.cart.prgROM) == 0 {
			return 0
		}
		offset := address - 0x8000
		if m.prgBanks == 1 {
			offset &= 0x3FFF
		}
		if int(offset) < len(m.cart.prgROM) {
			return m.cart.prgROM[offset]
		}
		return 0
	case address >= 0x6000:
		return m.cart.sram[address-0x6000]
	default:
		return 0
	}
}

func (m *mapper000) CPUWrite(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
	}
}

func (m *mapper000) PPUReadCHR(address uint16) uint8 {
	if address < 0x2000 && int(address) < len(m.cart.chrROM) {
		return m.cart.chrROM[address]
	}
	return 0
}

func (m *mapper000) PPUWriteCHR(address uint16, value uint8) {
	if m.cart.hasCHRRAM && address < 0x2000 && int(address) < len(m.cart.chrROM) {
		m.cart.chrROM[address] = value
	}
}

func (m *mapper000) PPUReadNametable(address uint16) uint8 {
	return m.ciram[mirrorNametableIndex(m.mirror, address)%len(m.ciram)]
}

func (m *mapper000) PPUWriteNametable(address uint16, value uint8) {
	m.ciram[mirrorNametableIndex(m.mirror, address)%len(m.ciram)] = value
}

func (m *mapper000) Tick(scanline, dot int, renderingEnabled bool) {}
func (m *mapper000) IRQ() bool                                     { return false }
func (m *mapper000) Reset()                                        {}
func (m *mapper000) Mirror() MirrorMode                            { return m.mirror }

func (m *mapper000) SaveState() MapperState {
	return MapperState{CIRAM: append([]uint8(nil), m.ciram...), PRGRAM: append([]uint8(nil), m.cart.sram[:]...)}
}

func (m *mapper000) LoadState(s MapperState) {
	copy(m.ciram, s.CIRAM)
	copy(m.cart.sram[:], s.PRGRAM)
}
