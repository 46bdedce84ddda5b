package cartridge

import "testing"

func newTestMapper005(prgSize, chrSize int) (*Cartridge, *mapper005) {
	cart := &Cartridge{
		prgROM: make([]uint8, prgSize),
		chrROM: make([]uint8, chrSize),
	}
	m := newMapper005(cart)
	cart.mapper = m
	cart.mapperID = 5
	return cart, m
}

func TestMapper005_ExtendedAttribute_RequiresMode1(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)

	m.exramMode = 0
	m.exram[0] = 0xFF
	if _, _, ok := m.ExtendedAttribute(0, 0); ok {
		t.Fatal("expected no extended attribute outside exramMode 1")
	}

	m.exramMode = 1
	palette, chrBank, ok := m.ExtendedAttribute(0, 0)
	if !ok {
		t.Fatal("expected extended attribute in exramMode 1")
	}
	if palette != (0xFF>>6)&0x03 {
		t.Errorf("palette = %d, want %d", palette, (0xFF>>6)&0x03)
	}
	if chrBank != 0xFF&0x3F {
		t.Errorf("chrBank = %d, want %d", chrBank, 0xFF&0x3F)
	}
}

func TestMapper005_ExtendedAttribute_OutOfRangeTile(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)
	m.exramMode = 1

	if _, _, ok := m.ExtendedAttribute(31, 29); !ok {
		t.Error("expected tile (31,29) -- index 959 -- to be in range")
	}
	if _, _, ok := m.ExtendedAttribute(0, 30); ok {
		t.Error("expected tile row 30 (index 960) to be out of the 0x3C0 attribute range")
	}
}

func TestMapper005_SplitScreenColumn(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)

	// tileNr = (pixelX/8 + 2) % 40, so pixelX 24 lands on tileNr 5 and
	// pixelX 104 lands on tileNr 15.
	const pixelXTile5, pixelXTile15 = 24, 104

	if active, _, _, _ := m.SplitScreenColumn(pixelXTile5, 0); active {
		t.Fatal("split screen should be inactive until enabled")
	}

	m.splitEnable = true
	m.splitTile = 10
	m.splitBank = 3
	m.exram[5] = 0xAB // tileNr 5 with scanline 0 resolves to ntAddr 5

	active, bank, tileID, _ := m.SplitScreenColumn(pixelXTile5, 0)
	if !active || bank != 3 {
		t.Errorf("left-side split: active=%v bank=%d, want active=true bank=3", active, bank)
	}
	if tileID != 0xAB {
		t.Errorf("tileID = 0x%02X, want 0xAB (exram[5])", tileID)
	}
	if active, _, _, _ := m.SplitScreenColumn(pixelXTile15, 0); active {
		t.Error("tile past splitTile should be outside a left-side split region")
	}

	m.splitRight = true
	if active, _, _, _ := m.SplitScreenColumn(pixelXTile5, 0); active {
		t.Error("right-side split should exclude tiles before splitTile")
	}
	if active, _, _, _ := m.SplitScreenColumn(pixelXTile15, 0); !active {
		t.Error("right-side split should include tiles at/after splitTile")
	}
}

func TestMapper005_SplitScreenColumn_RequiresExramMode0Or1(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)
	m.splitEnable = true
	m.splitTile = 20
	m.exramMode = 2

	if active, _, _, _ := m.SplitScreenColumn(24, 0); active {
		t.Error("split screen should be disabled outside exram modes 0/1")
	}
}

func TestMapper005_ReadCHRBank_DirectFourKilobytePage(t *testing.T) {
	cart, m := newTestMapper005(0x8000, 0x20000) // 128KB CHR, bank 20 exercises the overflow this guards against
	cart.chrROM[20*0x1000+5] = 0x42

	if got := m.ReadCHRBank(20, 5); got != 0x42 {
		t.Errorf("ReadCHRBank(20, 5) = 0x%02X, want 0x42", got)
	}
}

func TestMapper005_ReadCHRBank_OutOfBoundsReturnsZero(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)
	if got := m.ReadCHRBank(255, 0); got != 0 {
		t.Errorf("expected 0 for out-of-range bank, got 0x%02X", got)
	}
}

func TestMapper005_Tick_SpriteWindowToggle(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)

	m.Tick(0, 257, true)
	if !m.activeSprite {
		t.Error("expected activeSprite true after dot 257")
	}
	m.Tick(0, 321, true)
	if m.activeSprite {
		t.Error("expected activeSprite false after dot 321")
	}
}

func TestMapper005_Tick_ScanlineIRQAtDot337(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)
	m.irqScanline = 2
	m.irqEnabled = true

	// First dot-337 of a frame only arms inFrame; no IRQ yet.
	m.Tick(0, 337, true)
	if m.irqPending {
		t.Fatal("should not fire IRQ on the first dot-337 after frame start")
	}

	m.Tick(1, 337, true)
	if m.irqPending {
		t.Fatal("should not fire IRQ before scanlineCount reaches irqScanline")
	}

	m.Tick(2, 337, true)
	if !m.irqPending {
		t.Fatal("expected IRQ pending once scanlineCount reaches irqScanline")
	}
	if !m.IRQ() {
		t.Error("IRQ() should report true once pending and enabled")
	}
}

func TestMapper005_Tick_RenderingDisabledResetsInFrame(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)
	m.Tick(0, 337, true)
	if !m.inFrame {
		t.Fatal("expected inFrame after first dot-337 with rendering enabled")
	}

	m.Tick(1, 337, false)
	if m.inFrame {
		t.Error("expected inFrame to clear when rendering is disabled at dot 337")
	}
}

func TestMapper005_SaveStateLoadStateRoundTrip(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)
	m.prgMode = 2
	m.chrMode = 1
	m.exramMode = 1
	m.exram[10] = 0xAB
	m.splitEnable = true
	m.splitTile = 7
	m.irqScanline = 42
	m.sprChr[3] = 99
	m.bgChr[1] = 55

	state := m.SaveState()

	fresh := newMapper005(m.cart)
	fresh.LoadState(state)

	if fresh.prgMode != 2 || fresh.chrMode != 1 || fresh.exramMode != 1 {
		t.Error("register snapshot did not round-trip")
	}
	if fresh.exram[10] != 0xAB {
		t.Error("ExRAM did not round-trip")
	}
	if !fresh.splitEnable || fresh.splitTile != 7 {
		t.Error("split-screen registers did not round-trip")
	}
	if fresh.irqScanline != 42 {
		t.Error("irqScanline did not round-trip")
	}
	if fresh.sprChr[3] != 99 || fresh.bgChr[1] != 55 {
		t.Error("CHR bank-select registers did not round-trip")
	}
}

func TestMapper005_CPUWrite_CHRBankHighBitsORIn(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x100000) // 1MB CHR: exercises bank numbers beyond 8 bits

	m.CPUWrite(0x5130, 0x02) // chrHi = 2 -> shifted, contributes bit 7
	m.CPUWrite(0x5123, 0x15) // sprChr[3]
	m.CPUWrite(0x512A, 0x09) // bgChr[2]

	if want := uint16(2)<<6 | 0x15; m.sprChr[3] != want {
		t.Errorf("sprChr[3] = 0x%03X, want 0x%03X (chrHi OR'd in at write time)", m.sprChr[3], want)
	}
	if want := uint16(2)<<6 | 0x09; m.bgChr[2] != want {
		t.Errorf("bgChr[2] = 0x%03X, want 0x%03X (chrHi OR'd in at write time)", m.bgChr[2], want)
	}

	// Changing $5130 afterwards must not retroactively touch already-written
	// registers -- real hardware ORs at write time only.
	m.CPUWrite(0x5130, 0x01)
	if want := uint16(2)<<6 | 0x15; m.sprChr[3] != want {
		t.Error("sprChr[3] should not be retroactively updated by a later $5130 write")
	}
}

func TestMapper005_PRGBanking_Mode3EightKilobyteWindows(t *testing.T) {
	cart, m := newTestMapper005(0x40000, 0x2000) // 256KB PRG ROM, 32 8KB banks
	m.prgMode = 3
	cart.prgROM[0x05*0x2000+0x10] = 0xAA // bank 5, offset 0x10
	cart.prgROM[0x1A*0x2000+0x20] = 0xBB // bank 26 ($80|0x1A selects ROM), offset 0x20
	cart.prgROM[0x1F*0x2000+0x30] = 0xCC // last window's bank (always ROM), offset 0x30

	m.CPUWrite(0x5114, 0x05)        // window0 bank select, bit7 clear -> RAM, not exercised here
	m.CPUWrite(0x5115, 0x80|0x1A)   // window1: bit7 set -> ROM, bank 26
	m.CPUWrite(0x5117, 0x1F)        // window3: always ROM regardless of bit7

	if got := m.CPURead(0x8000 + 0x2000 + 0x0020); got != 0xBB {
		t.Errorf("window1 ROM read = 0x%02X, want 0xBB", got)
	}
	if got := m.CPURead(0x8000 + 0x6000 + 0x0030); got != 0xCC {
		t.Errorf("window3 ROM read = 0x%02X, want 0xCC", got)
	}
}

func TestMapper005_PRGBanking_Mode1And2HonorRAMBit(t *testing.T) {
	_, m := newTestMapper005(0x40000, 0x2000)

	m.prgMode = 1
	m.prgRegs[1] = 0x03 // bit7 clear -> RAM for the 16K window spanning windows 0-1
	m.prgRAMBank = 0
	m.CPUWrite(0x8000, 0x42)
	if got := m.CPURead(0x8000); got != 0x42 {
		t.Errorf("mode1 window0 RAM write/read = 0x%02X, want 0x42", got)
	}

	m.prgMode = 2
	m.prgRegs[1] = 0x00 // bit7 clear -> RAM for windows 0-1 again
	m.CPUWrite(0xA000, 0x77)
	if got := m.CPURead(0xA000); got != 0x77 {
		t.Errorf("mode2 window1 RAM write/read = 0x%02X, want 0x77", got)
	}
}

func TestMapper005_FillModeNametable(t *testing.T) {
	_, m := newTestMapper005(0x8000, 0x2000)

	m.CPUWrite(0x5105, 0xFF) // all four quadrants -> fill mode
	m.CPUWrite(0x5106, 0x42) // fill tile
	m.CPUWrite(0x5107, 0x02) // fill attribute (2 bits)

	if got := m.PPUReadNametable(0x2000); got != 0x42 {
		t.Errorf("fill-mode tile byte = 0x%02X, want 0x42", got)
	}
	if got := m.PPUReadNametable(0x23C0); got != 0x02*0x55 {
		t.Errorf("fill-mode attribute byte = 0x%02X, want 0x%02X", got, 0x02*0x55)
	}
}

func TestMapper005_PPUReadCHR_BankSelectPerChrMode(t *testing.T) {
	cart, m := newTestMapper005(0x8000, 0x20000) // 128KB CHR

	// chrMode 0 (8K): both sprite and background always read the last
	// register regardless of window.
	m.chrMode = 0
	m.bgChr[3] = 7
	m.sprChr[7] = 9
	cart.chrROM[7*0x2000+0x100] = 0x11
	cart.chrROM[9*0x2000+0x100] = 0x22

	m.activeSprite = false
	if got := m.PPUReadCHR(0x0100); got != 0x11 {
		t.Errorf("chrMode 0 background read = 0x%02X, want 0x11", got)
	}
	m.activeSprite = true
	if got := m.PPUReadCHR(0x0100); got != 0x22 {
		t.Errorf("chrMode 0 sprite read = 0x%02X, want 0x22", got)
	}

	// chrMode 2 (2K): background cycles bgChr[1],[3],[1],[3]; sprite uses
	// bgChr[1],[3],[5],[7] in turn, not a plain window-indexed cycle.
	m.chrMode = 2
	m.bgChr[1] = 4
	cart.chrROM[4*0x800+0x10] = 0x33
	m.activeSprite = false
	if got := m.PPUReadCHR(0x0010); got != 0x33 {
		t.Errorf("chrMode 2 background window0 read = 0x%02X, want 0x33", got)
	}

	m.sprChr[5] = 6
	cart.chrROM[6*0x800+0x10] = 0x44
	m.activeSprite = true
	if got := m.PPUReadCHR(0x1010); got != 0x44 { // window 2 of 4 (0x1010/0x800 = 2)
		t.Errorf("chrMode 2 sprite window2 read = 0x%02X, want 0x44", got)
	}
}
