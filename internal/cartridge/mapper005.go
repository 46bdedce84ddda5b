package cartridge

// mapper005 implements MMC5 (ExROM), the most elaborate first-party mapper:
// independent PRG/CHR bank windows with four granularities, a 1KB ExRAM
// bank usable as extra nametable storage, extended per-tile background
// attributes, a vertical split-screen region, an 8x8 unsigned hardware
// multiplier, and a scanline IRQ.
//
// The scanline IRQ is the one place this implementation deliberately keeps
// a known simplification rather than "fixing" it: real MMC5 silicon has no
// visibility into the PPU's internal scanline counter and infers the start
// of each scanline by watching for the PPU's two identical dummy nametable
// fetches around dot 337/339. Some software (Laser Invasion is the
// textbook case) depends on exactly that heuristic's failure modes. This
// implementation reproduces the heuristic at dot 337 rather than using the
// PPU's real scanline counter directly, even though that counter happens
// to be available to us here.
type mapper005 struct {
	cart *Cartridge

	prgMode uint8 // $5100
	chrMode uint8 // $5101

	prgRAMProtectA uint8 // $5102
	prgRAMProtectB uint8 // $5103

	exramMode uint8 // $5104: 0 extra-NT, 1 extended-attribute, 2 CPU RW, 3 CPU RO
	exram     [0x400]uint8

	ntMap [4]uint8 // $5105, 2 bits per quadrant: 0 CIRAM-A 1 CIRAM-B 2 ExRAM 3 Fill
	ciram []uint8  // 2KB, two 1KB pages addressable independently

	fillTile uint8 // $5106
	fillAttr uint8 // $5107 (2 bits)

	prgRAMBank uint8     // $5113
	prgRegs    [4]uint8  // $5114-$5117
	prgRAM     []uint8   // extra battery/work RAM banked by $5113-$5117 RAM selections

	sprChr [8]uint16 // $5120-$5127
	bgChr  [4]uint16 // $5128-$512B
	chrHi  uint8     // $5130: high bits for CHR bank numbers beyond 8 bits, OR'd in at write time
	activeSprite bool // true between dot 257 and dot 320 (sprite pattern fetch window)

	splitEnable bool // $5200 bit7
	splitRight  bool // $5200 bit6
	splitTile   uint8
	splitScroll uint8 // $5201
	splitBank   uint8 // $5202

	irqScanline uint8 // $5203
	irqEnabled  bool  // $5204 bit7 on write
	irqPending  bool
	inFrame     bool
	scanlineCount int

	multiplicand uint8 // $5205 write
	multiplier   uint8 // $5206 write
	product      uint16

	prgBanks8k int
}

func newMapper005(cart *Cartridge) *mapper005 {
	m := &mapper005{
		cart:       cart,
		prgMode:    3,
		ciram:      make([]uint8, 0x800),
		prgRAM:     make([]uint8, 64*1024),
		prgBanks8k: len(cart.prgROM) / 0x2000,
	}
	for i := range m.prgRegs {
		m.prgRegs[i] = 0xFF // power-on: last bank, ROM
	}
	return m
}

func (m *mapper005) Reset() {
	m.prgMode, m.chrMode = 3, 3
	m.exramMode = 0
	m.ntMap = [4]uint8{}
	m.irqEnabled, m.irqPending, m.inFrame = false, false, false
	m.scanlineCount = 0
}

func (m *mapper005) Mirror() MirrorMode { return MirrorFourScreen } // routing is fully custom

// CPURead / CPUWrite -------------------------------------------------------

func (m *mapper005) CPURead(address uint16) uint8 {
	switch {
	case address >= 0x5000 && address < 0x5100:
		return 0 // audio expansion registers: not wired (no pulse/PCM expansion channel)
	case address == 0x5204:
		v := uint8(0)
		if m.irqPending {
			v |= 0x80
		}
		if m.inFrame {
			v |= 0x40
		}
		m.irqPending = false
		return v
	case address == 0x5205:
		return uint8(m.product)
	case address == 0x5206:
		return uint8(m.product >> 8)
	case address >= 0x5C00 && address < 0x6000:
		return m.exram[address-0x5C00]
	case address >= 0x6000 && address < 0x8000:
		return m.prgRAMRead(address)
	case address >= 0x8000:
		return m.prgROMOrRAMRead(address)
	default:
		return 0
	}
}

func (m *mapper005) CPUWrite(address uint16, value uint8) {
	switch {
	case address >= 0x5000 && address < 0x5100:
		return
	case address == 0x5100:
		m.prgMode = value & 0x03
	case address == 0x5101:
		m.chrMode = value & 0x03
	case address == 0x5102:
		m.prgRAMProtectA = value & 0x03
	case address == 0x5103:
		m.prgRAMProtectB = value & 0x03
	case address == 0x5104:
		m.exramMode = value & 0x03
	case address == 0x5105:
		m.ntMap[0] = value & 0x03
		m.ntMap[1] = (value >> 2) & 0x03
		m.ntMap[2] = (value >> 4) & 0x03
		m.ntMap[3] = (value >> 6) & 0x03
	case address == 0x5106:
		m.fillTile = value
	case address == 0x5107:
		m.fillAttr = value & 0x03
	case address == 0x5113:
		m.prgRAMBank = value
	case address >= 0x5114 && address <= 0x5117:
		m.prgRegs[address-0x5114] = value
	case address >= 0x5120 && address <= 0x5127:
		m.sprChr[address-0x5120] = uint16(m.chrHi)<<6 | uint16(value)
	case address >= 0x5128 && address <= 0x512B:
		m.bgChr[address-0x5128] = uint16(m.chrHi)<<6 | uint16(value)
	case address == 0x5130:
		m.chrHi = value & 0x03
	case address == 0x5200:
		m.splitEnable = value&0x80 != 0
		m.splitRight = value&0x40 != 0
		m.splitTile = value & 0x1F
	case address == 0x5201:
		m.splitScroll = value
	case address == 0x5202:
		m.splitBank = value
	case address == 0x5203:
		m.irqScanline = value
	case address == 0x5204:
		m.irqEnabled = value&0x80 != 0
	case address == 0x5205:
		m.multiplicand = value
		m.product = uint16(m.multiplicand) * uint16(m.multiplier)
	case address == 0x5206:
		m.multiplier = value
		m.product = uint16(m.multiplicand) * uint16(m.multiplier)
	case address >= 0x5C00 && address < 0x6000:
		if m.exramMode == 2 {
			m.exram[address-0x5C00] = value
		}
		// modes 0/1 are PPU-rendering-owned, mode 3 is read-only: writes ignored.
	case address >= 0x6000 && address < 0x8000:
		m.prgRAMWrite(address, value)
	case address >= 0x8000:
		// PRG ROM area writes only land when the selected window is RAM;
		// prgROMOrRAMRead's window-resolution logic is mirrored here.
		m.prgWindowWrite(address, value)
	}
}

func (m *mapper005) prgRAMRead(address uint16) uint8 {
	bank := int(m.prgRAMBank&0x07) * 0x2000
	idx := bank + int(address-0x6000)
	if idx >= 0 && idx < len(m.prgRAM) {
		return m.prgRAM[idx]
	}
	return 0
}

func (m *mapper005) prgRAMWrite(address uint16, value uint8) {
	bank := int(m.prgRAMBank&0x07) * 0x2000
	idx := bank + int(address-0x6000)
	if idx >= 0 && idx < len(m.prgRAM) {
		m.prgRAM[idx] = value
	}
}

// prgWindow resolves which 8KB window address falls in (0..3) and which
// register governs it, returning the register value and whether that
// window is ROM (true) or RAM (false).
func (m *mapper005) prgWindow(address uint16) (reg uint8, isROM bool) {
	window := int(address-0x8000) / 0x2000
	switch m.prgMode {
	case 0:
		reg = m.prgRegs[3]
		return reg, true
	case 1:
		if window < 2 {
			reg = m.prgRegs[1]
			return reg, reg&0x80 != 0
		}
		reg = m.prgRegs[3]
		return reg, true
	case 2:
		switch window {
		case 0, 1:
			reg = m.prgRegs[1]
			return reg, reg&0x80 != 0
		case 2:
			reg = m.prgRegs[2]
			return reg, reg&0x80 != 0
		default:
			reg = m.prgRegs[3]
			return reg, true
		}
	default: // mode 3
		reg = m.prgRegs[window]
		if window == 3 {
			return reg, true
		}
		return reg, reg&0x80 != 0
	}
}

func (m *mapper005) prgROMOrRAMRead(address uint16) uint8 {
	reg, isROM := m.prgWindow(address)
	window := int(address-0x8000) / 0x2000
	offset := int(address-0x8000) % 0x2000
	if !isROM {
		bank := int(reg & 0x07)
		idx := bank*0x2000 + offset
		if idx >= 0 && idx < len(m.prgRAM) {
			return m.prgRAM[idx]
		}
		return 0
	}

	var idx int
	switch {
	case m.prgMode == 0:
		idx = int(reg>>2)*0x8000 + int(address-0x8000)
	case m.prgMode == 1 && window < 2:
		idx = int(reg>>1)*0x4000 + int(address-0x8000)%0x4000
	default:
		idx = int(reg&0x7F)*0x2000 + offset
	}
	if idx >= 0 && idx < len(m.cart.prgROM) {
		return m.cart.prgROM[idx]
	}
	return 0
}

func (m *mapper005) prgWindowWrite(address uint16, value uint8) {
	reg, isROM := m.prgWindow(address)
	if isROM {
		return
	}
	offset := int(address-0x8000) % 0x2000
	bank := int(reg & 0x07)
	idx := bank*0x2000 + offset
	if idx >= 0 && idx < len(m.prgRAM) {
		m.prgRAM[idx] = value
	}
}

// PPU-facing access --------------------------------------------------------

func (m *mapper005) chrGranularityBanks() int {
	switch m.chrMode {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 8
	}
}

// chrBankFor returns the bank-select register value for a given CHR window,
// mirroring the non-uniform register selection real MMC5 boards use per chr
// granularity: 8K mode always reads the last register, 4K/2K modes pick
// specific registers rather than cycling through all of them, and only 1K
// mode (chrMode 3) happens to be a plain window-indexed cycle.
func (m *mapper005) chrBankFor(window int) uint16 {
	if m.activeSprite {
		switch m.chrMode {
		case 0:
			return m.sprChr[7]
		case 1:
			if window == 0 {
				return m.sprChr[3]
			}
			return m.sprChr[7]
		case 2:
			return m.sprChr[[4]int{1, 3, 5, 7}[window%4]]
		default:
			return m.sprChr[window%8]
		}
	}
	switch m.chrMode {
	case 0:
		return m.bgChr[3]
	case 1:
		return m.bgChr[3]
	case 2:
		return m.bgChr[[4]int{1, 3, 1, 3}[window%4]]
	default:
		return m.bgChr[window%4]
	}
}

func (m *mapper005) PPUReadCHR(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	banks := m.chrGranularityBanks()
	windowSize := 0x2000 / banks
	window := int(address) / windowSize
	offset := int(address) % windowSize

	bank := m.chrBankFor(window)
	idx := int(bank)*windowSize + offset
	if idx >= 0 && idx < len(m.cart.chrROM) {
		return m.cart.chrROM[idx]
	}
	return 0
}

// ReadCHRBank reads directly from a 4KB CHR page, the granularity named by
// $5202 (split-screen bank) and by ExRAM extended-attribute bytes, rather
// than going through the sprite/background windowed bank-select registers.
func (m *mapper005) ReadCHRBank(bank uint8, offset uint16) uint8 {
	idx := int(bank)*0x1000 + int(offset)
	if idx >= 0 && idx < len(m.cart.chrROM) {
		return m.cart.chrROM[idx]
	}
	return 0
}

func (m *mapper005) PPUWriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM || address >= 0x2000 {
		return
	}
	banks := m.chrGranularityBanks()
	windowSize := 0x2000 / banks
	window := int(address) / windowSize
	offset := int(address) % windowSize
	bank := m.chrBankFor(window)
	idx := int(bank)*windowSize + offset
	if idx >= 0 && idx < len(m.cart.chrROM) {
		m.cart.chrROM[idx] = value
	}
}

func (m *mapper005) PPUReadNametable(address uint16) uint8 {
	quadrant := (address >> 10) & 0x03
	offset := int(address & 0x3FF)
	switch m.ntMap[quadrant] {
	case 0:
		return m.ciram[offset]
	case 1:
		return m.ciram[0x400+offset]
	case 2:
		return m.exram[offset%0x400]
	default:
		return m.fillByte(offset)
	}
}

func (m *mapper005) PPUWriteNametable(address uint16, value uint8) {
	quadrant := (address >> 10) & 0x03
	offset := int(address & 0x3FF)
	switch m.ntMap[quadrant] {
	case 0:
		m.ciram[offset] = value
	case 1:
		m.ciram[0x400+offset] = value
	case 2:
		if m.exramMode <= 1 {
			m.exram[offset%0x400] = value
		}
	default:
		// fill mode has no backing store to write to.
	}
}

func (m *mapper005) fillByte(offset int) uint8 {
	if offset < 0x3C0 {
		return m.fillTile
	}
	return m.fillAttr * 0x55
}

// ExtendedAttribute exposes MMC5 extended-attribute mode ($5104==1) to the
// PPU's background renderer: for a given 32x30 background tile coordinate,
// it returns the palette bits and the high CHR bank bits ExRAM stores for
// that tile, used instead of the regular attribute-table byte.
func (m *mapper005) ExtendedAttribute(tileX, tileY int) (palette uint8, chrBank uint8, ok bool) {
	if m.exramMode != 1 {
		return 0, 0, false
	}
	index := tileY*32 + tileX
	if index < 0 || index >= 0x3C0 {
		return 0, 0, false
	}
	b := m.exram[index]
	chrBank = m.chrHi<<6 | (b & 0x3F)
	return (b >> 6) & 0x03, chrBank, true
}

// SplitScreenColumn reports whether the vertical split-screen region is
// active for the given screen pixel column and scanline, and the tile ID /
// attribute byte the split substitutes for the ordinary scrolled background
// fetch. Vertical split mode can only be used in exram modes 0 and 1, and
// only tracks the coarse portion of its own Y scroll register (CL wiring,
// the only known arrangement any split-screen game uses).
func (m *mapper005) SplitScreenColumn(pixelX, scanline int) (active bool, chrBank, tileID, attribute uint8) {
	if !m.splitEnable || m.exramMode > 1 {
		return false, 0, 0, 0
	}

	// The screen x coordinate of the tile, accounting for the two tiles
	// pre-fetched at the end of the preceding scanline.
	tileNr := (pixelX/8 + 2) % 40

	inRegion := tileNr < int(m.splitTile)
	if m.splitRight {
		inRegion = tileNr >= int(m.splitTile)
	}
	if !inRegion {
		return false, 0, 0, 0
	}

	coarseScroll := int(m.splitScroll) >> 3
	wrap := 32
	if coarseScroll < 30 {
		wrap = 30
	}
	coarseY := (scanline/8 + coarseScroll) % wrap

	ntAddr := uint16(coarseY<<5) & 0x03E0 | uint16(tileNr)
	attrAddr := uint16(0x23C0) | uint16((coarseY<<1)&0x38) | uint16(tileNr>>2)

	return true, m.splitBank, m.exram[ntAddr&0x3FF], m.exram[attrAddr&0x3FF]
}

// Tick advances the dot-337 scanline heuristic and the sprite/background
// CHR-set switch at dots 257/321.
func (m *mapper005) Tick(scanline, dot int, renderingEnabled bool) {
	switch dot {
	case 257:
		m.activeSprite = true
	case 321:
		m.activeSprite = false
	}

	if scanline == -1 && dot == 0 {
		m.inFrame = false
		m.scanlineCount = 0
	}

	if dot != 337 {
		return
	}
	if !renderingEnabled {
		m.inFrame = false
		return
	}
	if !m.inFrame {
		m.inFrame = true
		m.scanlineCount = 0
		return
	}
	m.scanlineCount++
	if m.scanlineCount == int(m.irqScanline) && m.irqScanline != 0 {
		m.irqPending = true
	}
}

func (m *mapper005) IRQ() bool { return m.irqPending && m.irqEnabled }

func (m *mapper005) SaveState() MapperState {
	regs := []uint8{
		m.prgMode, m.chrMode, m.prgRAMProtectA, m.prgRAMProtectB, m.exramMode,
		m.ntMap[0], m.ntMap[1], m.ntMap[2], m.ntMap[3],
		m.fillTile, m.fillAttr, m.prgRAMBank,
		m.prgRegs[0], m.prgRegs[1], m.prgRegs[2], m.prgRegs[3],
		m.chrHi, boolToU8(m.activeSprite),
		boolToU8(m.splitEnable), boolToU8(m.splitRight), m.splitTile, m.splitScroll, m.splitBank,
		m.irqScanline, boolToU8(m.irqEnabled), boolToU8(m.irqPending), boolToU8(m.inFrame),
		m.multiplicand, m.multiplier,
	}
	ints := []int32{int32(m.scanlineCount), int32(m.product)}
	for _, v := range m.sprChr {
		ints = append(ints, int32(v))
	}
	for _, v := range m.bgChr {
		ints = append(ints, int32(v))
	}
	return MapperState{
		Regs:   regs,
		Ints:   ints,
		CIRAM:  append([]uint8(nil), m.ciram...),
		ExRAM:  append([]uint8(nil), m.exram[:]...),
		PRGRAM: append([]uint8(nil), m.prgRAM...),
		CHRRAM: append([]uint8(nil), m.cart.chrROM...),
	}
}

func (m *mapper005) LoadState(s MapperState) {
	if len(s.Regs) >= 29 {
		r := s.Regs
		m.prgMode, m.chrMode, m.prgRAMProtectA, m.prgRAMProtectB, m.exramMode = r[0], r[1], r[2], r[3], r[4]
		m.ntMap = [4]uint8{r[5], r[6], r[7], r[8]}
		m.fillTile, m.fillAttr, m.prgRAMBank = r[9], r[10], r[11]
		copy(m.prgRegs[:], r[12:16])
		m.chrHi = r[16]
		m.activeSprite = r[17] != 0
		m.splitEnable, m.splitRight, m.splitTile, m.splitScroll, m.splitBank = r[18] != 0, r[19] != 0, r[20], r[21], r[22]
		m.irqScanline, m.irqEnabled, m.irqPending, m.inFrame = r[23], r[24] != 0, r[25] != 0, r[26] != 0
		m.multiplicand, m.multiplier = r[27], r[28]
	}
	if len(s.Ints) >= 14 {
		m.scanlineCount = int(s.Ints[0])
		m.product = uint16(s.Ints[1])
		for i := range m.sprChr {
			m.sprChr[i] = uint16(s.Ints[2+i])
		}
		for i := range m.bgChr {
			m.bgChr[i] = uint16(s.Ints[10+i])
		}
	}
	copy(m.ciram, s.CIRAM)
	copy(m.exram[:], s.ExRAM)
	copy(m.prgRAM, s.PRGRAM)
	copy(m.cart.chrROM, s.CHRRAM)
}
