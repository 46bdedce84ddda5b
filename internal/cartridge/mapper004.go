package cartridge

// mapper004 implements MMC3 (TxROM). Eight bank-select registers switch two
// 2KB+four 1KB CHR windows and two 8KB+two-fixed PRG windows; a scanline IRQ
// counter reloads from an 8-bit latch and decrements once per scanline.
//
// Real MMC3 hardware clocks the IRQ counter from PPU address line A12 rising
// edges, which a cycle-accurate implementation filters to reject the short
// A12 toggles produced by sprite pattern fetches. This implementation uses
// the common simplified approximation of clocking once near the end of each
// visible/pre-render scanline while rendering is enabled, which matches the
// counter's effective behavior for ordinary background+8x8 sprite use and is
// what the fetch-granularity of this PPU naturally supports.
type mapper004 struct {
	cart *Cartridge

	bankSelect uint8
	bankData   [8]uint8
	prgBanks   int
	chrInvert  bool
	prgMode    bool

	mirror   MirrorMode
	prgRAMProtect uint8

	irqLatch   uint8
	irqCounter uint8
	irqReload  bool
	irqEnabled bool
	irqPending bool

	ciram []uint8
}

func newMapper004(cart *Cartridge) *mapper004 {
	return &mapper004{
		cart:     cart,
		prgBanks: len(cart.prgROM) / 0x2000,
		mirror:   cart.mirror,
		ciram:    make([]uint8, ciramSize(cart.mirror)),
	}
}

func (m *mapper004) Reset() {
	m.bankSelect = 0
	m.bankData = [8]uint8{}
	m.chrInvert = false
	m.prgMode = false
	m.irqLatch, m.irqCounter = 0, 0
	m.irqReload, m.irqEnabled, m.irqPending = false, false, false
}

func (m *mapper004) Mirror() MirrorMode {
	if m.mirror == MirrorFourScreen {
		return MirrorFourScreen
	}
	return m.mirror
}

func (m *mapper004) prgBankAt(slot int) int {
	last := m.prgBanks - 1
	switch slot {
	case 0:
		if m.prgMode {
			return last - 1
		}
		return int(m.bankData[6] & 0x3F)
	case 1:
		return int(m.bankData[7] & 0x3F)
	case 2:
		if m.prgMode {
			return int(m.bankData[6] & 0x3F)
		}
		return last - 1
	default: // 3
		return last
	}
}

func (m *mapper004) CPURead(address uint16) uint8 {
	switch {
	case address >= 0x8000:
		slot := int((address - 0x8000) / 0x2000)
		bank := m.prgBankAt(slot)
		idx := bank*0x2000 + int(address)%0x2000
		if idx >= 0 && idx < len(m.cart.prgROM) {
			return m.cart.prgROM[idx]
		}
	case address >= 0x6000:
		return m.cart.sram[address-0x6000]
	}
	return 0
}

func (m *mapper004) CPUWrite(address uint16, value uint8) {
	switch {
	case address < 0x6000:
	case address < 0x8000:
		m.cart.sram[address-0x6000] = value
	case address < 0xA000:
		if address%2 == 0 {
			m.bankSelect = value & 0x07
			m.chrInvert = value&0x80 != 0
			m.prgMode = value&0x40 != 0
		} else {
			m.bankData[m.bankSelect] = value
		}
	case address < 0xC000:
		if address%2 == 0 {
			if value&0x01 != 0 {
				m.mirror = MirrorHorizontal
			} else {
				m.mirror = MirrorVertical
			}
		} else {
			m.prgRAMProtect = value
		}
	case address < 0xE000:
		if address%2 == 0 {
			m.irqLatch = value
		} else {
			m.irqCounter = 0
			m.irqReload = true
		}
	default:
		if address%2 == 0 {
			m.irqEnabled = false
			m.irqPending = false
		} else {
			m.irqEnabled = true
		}
	}
}

func (m *mapper004) chrBankAt(quadrant int) int {
	// quadrant is a 1KB window index 0..7 within the PPU's $0000-$1FFF space.
	r := m.bankData
	big := [8]uint8{r[0] &^ 1, r[0] | 1, r[1] &^ 1, r[1] | 1, r[2], r[3], r[4], r[5]}
	if m.chrInvert {
		// Swap the 2KB pair windows with the four 1KB windows.
		switch quadrant {
		case 0, 1:
			return int(big[quadrant+4])
		case 2, 3:
			return int(big[quadrant+4])
		default:
			return int(big[quadrant-4])
		}
	}
	return int(big[quadrant])
}

func (m *mapper004) PPUReadCHR(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	quadrant := int(address / 0x400)
	bank := m.chrBankAt(quadrant)
	idx := bank*0x400 + int(address)%0x400
	if idx >= 0 && idx < len(m.cart.chrROM) {
		return m.cart.chrROM[idx]
	}
	return 0
}

func (m *mapper004) PPUWriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM || address >= 0x2000 {
		return
	}
	quadrant := int(address / 0x400)
	bank := m.chrBankAt(quadrant)
	idx := bank*0x400 + int(address)%0x400
	if idx >= 0 && idx < len(m.cart.chrROM) {
		m.cart.chrROM[idx] = value
	}
}

func (m *mapper004) PPUReadNametable(address uint16) uint8 {
	return m.ciram[mirrorNametableIndex(m.Mirror(), address)%len(m.ciram)]
}

func (m *mapper004) PPUWriteNametable(address uint16, value uint8) {
	m.ciram[mirrorNametableIndex(m.Mirror(), address)%len(m.ciram)] = value
}

func (m *mapper004) Tick(scanline, dot int, renderingEnabled bool) {
	if !renderingEnabled || dot != 260 || scanline < -1 || scanline > 239 {
		return
	}
	m.clockIRQCounter()
}

func (m *mapper004) clockIRQCounter() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending = true
	}
}

func (m *mapper004) IRQ() bool { return m.irqPending }

func (m *mapper004) SaveState() MapperState {
	regs := []uint8{m.bankSelect, boolToU8(m.chrInvert), boolToU8(m.prgMode), uint8(m.mirror),
		m.prgRAMProtect, m.irqLatch, m.irqCounter, boolToU8(m.irqReload), boolToU8(m.irqEnabled), boolToU8(m.irqPending)}
	regs = append(regs, m.bankData[:]...)
	return MapperState{Regs: regs, CIRAM: append([]uint8(nil), m.ciram...), PRGRAM: append([]uint8(nil), m.cart.sram[:]...)}
}

func (m *mapper004) LoadState(s MapperState) {
	if len(s.Regs) >= 18 {
		m.bankSelect = s.Regs[0]
		m.chrInvert = s.Regs[1] != 0
		m.prgMode = s.Regs[2] != 0
		m.mirror = MirrorMode(s.Regs[3])
		m.prgRAMProtect = s.Regs[4]
		m.irqLatch = s.Regs[5]
		m.irqCounter = s.Regs[6]
		m.irqReload = s.Regs[7] != 0
		m.irqEnabled = s.Regs[8] != 0
		m.irqPending = s.Regs[9] != 0
		copy(m.bankData[:], s.Regs[10:18])
	}
	copy(m.ciram, s.CIRAM)
	copy(m.cart.sram[:], s.PRGRAM)
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
