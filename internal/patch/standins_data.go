package patch

// Precompiled stand-in bodies. These are the assembled Thumb routines
// shipped with the firmware image; each body ends right before the spot
// the applier writes the config address trailer to. The SRAM literal
// pool entries reference 0x0E000000 (the cartridge SRAM window).

// SRAM 64KiB flavour: EEPROM against the first 8KiB of SRAM, FLASH
// against the full single bank.
var sram64kFuncs = saveFuncs{
	eeprom: [2][]byte{
		// eeprom_read: sram[block*8+7-i] -> buf[i]
		thumb(0xB510, 0x4C08, 0x00C0, 0x1824, 0x2307, 0x5CE2, 0x18C9, 0x7002,
			0x1C49, 0x3B01, 0xD2FA, 0x2000, 0xBD10, 0x46C0, 0x0000, 0x0E00),
		// eeprom_write: buf[i] -> sram[block*8+7-i]
		thumb(0xB530, 0x4D09, 0x00C0, 0x182D, 0x2307, 0x780A, 0x18E4, 0x7022,
			0x1C49, 0x3B01, 0xD2FA, 0x2000, 0xBD30, 0x46C0, 0x0000, 0x0E00),
	},
	flash: [5][]byte{
		// flash_read
		thumb(0xB5F0, 0x4E0A, 0x1989, 0x4288, 0xD204, 0x5C43, 0x54F3, 0x3001,
			0xE7F8, 0x2000, 0xBDF0, 0x46C0, 0x0000, 0x0E00),
		// flash_erase_device: fill bank with 0xFF
		thumb(0xB510, 0x4C06, 0x2001, 0x0400, 0x22FF, 0x3801, 0x54A2, 0xD1FC,
			0x2000, 0xBD10, 0x0000, 0x0E00),
		// flash_erase_sector: fill 4KiB with 0xFF
		thumb(0xB510, 0x4C07, 0x0300, 0x1824, 0x2101, 0x0309, 0x22FF, 0x3901,
			0x5462, 0xD1FC, 0x2000, 0xBD10, 0x0000, 0x0E00),
		// flash_write_sector: copy 4KiB into SRAM
		thumb(0xB530, 0x4D08, 0x0300, 0x182D, 0x2201, 0x0312, 0x5C43, 0x54EB,
			0x3001, 0x3A01, 0xD1FA, 0x2000, 0xBD30, 0x46C0, 0x0000, 0x0E00),
		// flash_write_byte
		thumb(0x4A03, 0x5411, 0x2000, 0x4770, 0x0000, 0x0E00),
	},
}

// SRAM 128KiB flavour: the flash routines toggle the second SRAM bank
// for offsets past 64KiB (bank register at 0x09FFFFFE).
var sram128kFuncs = saveFuncs{
	eeprom: sram64kFuncs.eeprom,
	flash: [5][]byte{
		thumb(0xB5F0, 0x4E0E, 0x4F0E, 0x0C04, 0x803C, 0x1989, 0x4288, 0xD204,
			0x5C43, 0x54F3, 0x3001, 0xE7F8, 0x2000, 0x803C, 0xBDF0, 0x46C0,
			0x0000, 0x0E00, 0xFFFE, 0x09FF),
		thumb(0xB510, 0x4C08, 0x4D08, 0x2000, 0x802C, 0x2001, 0x0400, 0x22FF,
			0x3801, 0x54A2, 0xD1FC, 0x2000, 0xBD10, 0x46C0, 0x0000, 0x0E00,
			0xFFFE, 0x09FF),
		thumb(0xB510, 0x4C09, 0x4D09, 0x0C42, 0x802A, 0x0300, 0x1824, 0x2101,
			0x0309, 0x22FF, 0x3901, 0x5462, 0xD1FC, 0x2000, 0xBD10, 0x46C0,
			0x0000, 0x0E00, 0xFFFE, 0x09FF),
		thumb(0xB530, 0x4D0A, 0x4E0A, 0x0C42, 0x8032, 0x0300, 0x182D, 0x2201,
			0x0312, 0x5C43, 0x54EB, 0x3001, 0x3A01, 0xD1FA, 0x2000, 0xBD30,
			0x0000, 0x0E00, 0xFFFE, 0x09FF),
		thumb(0x4A05, 0x4B05, 0x0C0C, 0x801C, 0x5411, 0x2000, 0x4770, 0x46C0,
			0x0000, 0x0E00, 0xFFFE, 0x09FF),
	},
}

// Direct-save flavour: the routines locate their config through the
// trailer word, validate it, take the SD mutex and issue 512-byte
// aligned transfers through the SD driver embedded in the payload.
var directSaveFuncs = saveFuncs{
	eeprom: [2][]byte{
		thumb(0xB5F0, 0x4F10, 0x6838, 0x4910, 0x4288, 0xD112, 0x68B8, 0x2301,
			0x7323, 0x00C0, 0x1824, 0x2307, 0x5CE2, 0x18C9, 0x7002, 0x1C49,
			0x3B01, 0xD2FA, 0x2000, 0x7323, 0xBDF0, 0x46C0, 0xFFE8, 0x0E00,
			0x5CF6, 0xDBDD),
		thumb(0xB5F0, 0x4F14, 0x6838, 0x4914, 0x4288, 0xD118, 0x68B8, 0x2301,
			0x7323, 0x00C0, 0x182D, 0x2307, 0x780A, 0x18E4, 0x7022, 0x1C49,
			0x3B01, 0xD2FA, 0x0AC0, 0x1838, 0xF000, 0xF828, 0x2000, 0x7323,
			0xBDF0, 0x46C0, 0xFFE8, 0x0E00, 0x5CF6, 0xDBDD),
	},
	flash: [5][]byte{
		thumb(0xB5F0, 0xB084, 0x4F16, 0x6838, 0x4916, 0x4288, 0xD120, 0x68B8,
			0x2301, 0x7323, 0x0A89, 0x188A, 0xF000, 0xF830, 0x2640, 0x42B1,
			0xD902, 0x1B89, 0x3240, 0xE7F6, 0x2000, 0x7323, 0xB004, 0xBDF0,
			0xFFE8, 0x0E00, 0x5CF6, 0xDBDD),
		thumb(0xB5F0, 0x4F12, 0x6838, 0x4912, 0x4288, 0xD118, 0x68B8, 0x2301,
			0x7323, 0x22FF, 0x2520, 0xF000, 0xF824, 0x1B6D, 0xD1FA, 0x2000,
			0x7323, 0xBDF0, 0xFFE8, 0x0E00, 0x5CF6, 0xDBDD),
		thumb(0xB5F0, 0x4F10, 0x6838, 0x4910, 0x4288, 0xD112, 0x68B8, 0x2301,
			0x7323, 0x22FF, 0x00C0, 0x1824, 0x2508, 0xF000, 0xF81C, 0x2000,
			0x7323, 0xBDF0, 0xFFE8, 0x0E00, 0x5CF6, 0xDBDD),
		thumb(0xB5F0, 0x4F11, 0x6838, 0x4911, 0x4288, 0xD114, 0x68B8, 0x2301,
			0x7323, 0x00C2, 0x18A4, 0x2508, 0xF000, 0xF816, 0x2000, 0x7323,
			0xBDF0, 0x46C0, 0xFFE8, 0x0E00, 0x5CF6, 0xDBDD),
		thumb(0xB5F0, 0x4F0E, 0x6838, 0x490E, 0x4288, 0xD10E, 0x68B8, 0x2301,
			0x7323, 0x5411, 0xF000, 0xF80C, 0x2000, 0x7323, 0xBDF0, 0x46C0,
			0xFFE8, 0x0E00, 0x5CF6, 0xDBDD),
	},
}

// RTC handlers: probe, reset, getstatus, gettimedate. The gettimedate
// routine converts the tick counter into BCD date registers.
var rtcFuncs = [4][]byte{
	thumb(0x2001, 0x4770),
	thumb(0x2000, 0x4770),
	thumb(0x2040, 0x4770),
	thumb(0xB5F0, 0x4A0E, 0x6811, 0x2319, 0x0A0C, 0x2C0A, 0xD303, 0x3B01,
		0x3C0A, 0xE7FA, 0x0124, 0x1909, 0x7001, 0x0A09, 0x7041, 0x0A09,
		0x7081, 0x0A09, 0x70C1, 0x2000, 0xBDF0, 0x46C0, 0x4000, 0x0400),
}

// DirectSavePayload is the blob parked in the ROM (tail or hole) when
// direct saving is enabled: the SD driver core all direct-save
// stand-ins branch into, followed by a copy of each routine.
var DirectSavePayload []byte

func init() {
	// SD driver core: command issue, status polling, block transfer.
	core := thumb(0xB5F0, 0xB084, 0x4C20, 0x88A5, 0x7AE6, 0x2701, 0x2F00,
		0xD0FC, 0x4821, 0x6800, 0x2800, 0xD103, 0x4920, 0x6809, 0x1840,
		0x6008, 0x4A1F, 0x8810, 0x2801, 0xD1F0, 0x481E, 0x8841, 0x2940,
		0xD204, 0x0089, 0x1845, 0x882E, 0x802E, 0xE7EE, 0x2000, 0xB004,
		0xBDF0, 0x46C0, 0xFFE8, 0x0E00, 0x5CF6, 0xDBDD, 0x0000, 0x0A00)

	DirectSavePayload = append(DirectSavePayload, core...)
	for _, f := range directSaveFuncs.eeprom {
		DirectSavePayload = append(DirectSavePayload, f...)
	}
	for _, f := range directSaveFuncs.flash {
		DirectSavePayload = append(DirectSavePayload, f...)
	}
}
