package cartridge

// mapper001 implements SxROM/MMC1: a serial shift-register mapper port at
// $8000-$FFFF. Five consecutive writes with bit 7 clear shift a value into
// the internal 5-bit register; on the fifth write the value is latched into
// control/CHR0/CHR1/PRG depending on which $8000-range the write landed in.
// A write with bit 7 set resets the shift register and forces PRG mode 3.
type mapper001 struct {
	cart *Cartridge

	shift    uint8
	shiftCnt uint8

	control uint8 // bit0-1 mirroring, bit2-3 PRG mode, bit4 CHR mode
	chr0    uint8
	chr1    uint8
	prg     uint8

	prgRAMEnabled bool
	prgRAMDisable bool // MMC1B/C PRG-RAM disable bit in bank register

	prgBanks16k int
	chrBanks4k  int

	ciram []uint8
}

func newMapper001(cart *Cartridge) *mapper001 {
	m := &mapper001{
		cart:        cart,
		control:     0x0C, // power-on: PRG mode 3 (fix last bank), CHR mode 0
		prgBanks16k: len(cart.prgROM) / 0x4000,
		chrBanks4k:  len(cart.chrROM) / 0x1000,
		ciram:       make([]uint8, ciramSize(cart.mirror)),
	}
	return m
}

func (m *mapper001) Reset() {
	m.shift = 0
	m.shiftCnt = 0
	m.control = 0x0C
	m.chr0, m.chr1, m.prg = 0, 0, 0
}

func (m *mapper001) Mirror() MirrorMode {
	switch m.control & 0x03 {
	case 0:
		return MirrorSingleScreen0
	case 1:
		return MirrorSingleScreen1
	case 2:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}

func (m *mapper001) CPURead(address uint16) uint8 {
	switch {
	case address >= 0x6000 && address < 0x8000:
		return m.cart.sram[address-0x6000]
	case address >= 0x8000:
		bank, offset := m.prgBank(address)
		idx := bank*0x4000 + offset
		if idx >= 0 && idx < len(m.cart.prgROM) {
			return m.cart.prgROM[idx]
		}
		return 0
	default:
		return 0
	}
}

func (m *mapper001) prgBank(address uint16) (bank, offset int) {
	offset = int(address - 0x8000)
	prgMode := (m.control >> 2) & 0x03
	last := m.prgBanks16k - 1
	switch prgMode {
	case 0, 1:
		// 32KB mode: ignore low bit of the bank register.
		bank32 := int(m.prg>>1) * 2
		if address < 0xC000 {
			return bank32, offset
		}
		return bank32 + 1, offset - 0x4000
	case 2:
		// Fix first bank at $8000, switch 16KB at $C000.
		if address < 0xC000 {
			return 0, offset
		}
		return int(m.prg), offset - 0x4000
	default: // 3
		// Switch 16KB at $8000, fix last bank at $C000.
		if address < 0xC000 {
			return int(m.prg), offset
		}
		return last, offset - 0x4000
	}
}

func (m *mapper001) CPUWrite(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
		return
	}
	if address < 0x8000 {
		return
	}

	if value&0x80 != 0 {
		m.shift = 0
		m.shiftCnt = 0
		m.control |= 0x0C
		return
	}

	m.shift |= (value & 0x01) << m.shiftCnt
	m.shiftCnt++
	if m.shiftCnt < 5 {
		return
	}

	result := m.shift
	m.shift = 0
	m.shiftCnt = 0

	switch {
	case address < 0xA000:
		m.control = result
	case address < 0xC000:
		m.chr0 = result
	case address < 0xE000:
		m.chr1 = result
	default:
		m.prg = result & 0x0F
		m.prgRAMDisable = result&0x10 != 0
	}
}

func (m *mapper001) chrBank(address uint16) int {
	chrMode := (m.control >> 4) & 0x01
	if chrMode == 0 {
		// 8KB mode, low bit of chr0 ignored.
		base := int(m.chr0>>1) * 2
		if address < 0x1000 {
			return base
		}
		return base + 1
	}
	if address < 0x1000 {
		return int(m.chr0)
	}
	return int(m.chr1)
}

func (m *mapper001) PPUReadCHR(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	bank := m.chrBank(address)
	offset := int(address) % 0x1000
	idx := bank*0x1000 + offset
	if idx >= 0 && idx < len(m.cart.chrROM) {
		return m.cart.chrROM[idx]
	}
	return 0
}

func (m *mapper001) PPUWriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM || address >= 0x2000 {
		return
	}
	bank := m.chrBank(address)
	offset := int(address) % 0x1000
	idx := bank*0x1000 + offset
	if idx >= 0 && idx < len(m.cart.chrROM) {
		m.cart.chrROM[idx] = value
	}
}

func (m *mapper001) PPUReadNametable(address uint16) uint8 {
	return m.ciram[mirrorNametableIndex(m.Mirror(), address)%len(m.ciram)]
}

func (m *mapper001) PPUWriteNametable(address uint16, value uint8) {
	m.ciram[mirrorNametableIndex(m.Mirror(), address)%len(m.ciram)] = value
}

func (m *mapper001) Tick(scanline, dot int, renderingEnabled bool) {}
func (m *mapper001) IRQ() bool                                     { return false }

func (m *mapper001) SaveState() MapperState {
	return MapperState{
		Regs:   []uint8{m.shift, m.shiftCnt, m.control, m.chr0, m.chr1, m.prg},
		CIRAM:  append([]uint8(nil), m.ciram...),
		PRGRAM: append([]uint8(nil), m.cart.sram[:]...),
	}
}

func (m *mapper001) LoadState(s MapperState) {
	if len(s.Regs) >= 6 {
		m.shift, m.shiftCnt, m.control, m.chr0, m.chr1, m.prg =
			s.Regs[0], s.Regs[1], s.Regs[2], s.Regs[3], s.Regs[4], s.Regs[5]
	}
	copy(m.ciram, s.CIRAM)
	copy(m.cart.sram[:], s.PRGRAM)
}
