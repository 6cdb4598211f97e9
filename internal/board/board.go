// Package board holds the compiled-in catalog of supported boards and
// their toolchain profiles.
package board

import (
	"fmt"
	"strings"
)

// Chip identifies the toolchain family a board belongs to. It is a
// closed set: exactly one of the concrete types below, each carrying
// only the parameters that family needs.
type Chip interface {
	arch() string
}

// AVR boards compile with avr-gcc and flash with avrdude.
type AVR struct {
	MCU        string // -mmcu value, e.g. "atmega328p"
	FCPU       uint32 // clock in Hz
	Programmer string // avrdude -c value
	Baud       int
}

// SAM boards are Atmel ARM Cortex-M (arm-none-eabi-gcc + bossac).
type SAM struct {
	MCU  string
	FCPU uint32
}

// RP2040 is the Raspberry Pi Pico family.
type RP2040 struct{}

// ESP32 covers the Xtensa/RISC-V ESP32 family; Variant is the silicon
// name esptool expects ("esp32", "esp32s2", "esp32c3").
type ESP32 struct {
	Variant string
}

// ESP8266 is the Xtensa LX106 family.
type ESP8266 struct{}

func (AVR) arch() string     { return "avr" }
func (SAM) arch() string     { return "sam" }
func (RP2040) arch() string  { return "rp2040" }
func (ESP32) arch() string   { return "esp32" }
func (ESP8266) arch() string { return "esp8266" }

// Profile describes one supported board. Profiles are static data;
// callers must not mutate them.
type Profile struct {
	ID      string
	Name    string
	FQBN    string
	Variant string // pins_arduino.h variant folder
	FlashKB int
	RAMKB   int
	Chip    Chip
	Defines []string
}

func (p *Profile) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.FQBN)
}

// Arch returns the architecture tag used in SDK paths and as the
// module-store key ("avr", "sam", "rp2040", "esp32", "esp8266").
func (p *Profile) Arch() string { return p.Chip.arch() }

// FCPU returns the clock frequency in Hz, falling back to the family
// default when the profile does not store one.
func (p *Profile) FCPU() uint32 {
	switch c := p.Chip.(type) {
	case AVR:
		return c.FCPU
	case SAM:
		return c.FCPU
	case RP2040:
		return 133_000_000
	case ESP32:
		return 240_000_000
	case ESP8266:
		return 80_000_000
	}
	return 0
}

// AVRMCU returns the -mmcu value for AVR boards, or "" for any other
// family.
func (p *Profile) AVRMCU() string {
	if c, ok := p.Chip.(AVR); ok {
		return c.MCU
	}
	return ""
}

// Programmer returns the avrdude programmer name and upload baud rate
// for AVR boards.
func (p *Profile) Programmer() (string, int, bool) {
	if c, ok := p.Chip.(AVR); ok {
		return c.Programmer, c.Baud, true
	}
	return "", 0, false
}

// UnknownBoardError reports a board ID that is not in the catalog.
type UnknownBoardError struct {
	ID string
}

func (e *UnknownBoardError) Error() string {
	return fmt.Sprintf("unknown board %q (run `kiln boards` to list supported boards)", e.ID)
}

// Find looks up a board by its short ID. Matching is case-insensitive.
func Find(id string) (*Profile, error) {
	for i := range catalog {
		if strings.EqualFold(catalog[i].ID, id) {
			return &catalog[i], nil
		}
	}
	return nil, &UnknownBoardError{ID: id}
}

// Catalog returns every supported board in declaration order. The
// returned slice is the catalog itself; treat it as read-only.
func Catalog() []Profile { return catalog }

var catalog = []Profile{
	// AVR
	{
		ID: "uno", Name: "Arduino Uno",
		FQBN:    "arduino:avr:uno",
		Variant: "standard",
		FlashKB: 32, RAMKB: 2,
		Chip:    AVR{MCU: "atmega328p", FCPU: 16_000_000, Programmer: "arduino", Baud: 115200},
		Defines: []string{"ARDUINO_AVR_UNO", "ARDUINO_ARCH_AVR"},
	},
	{
		ID: "nano", Name: "Arduino Nano",
		FQBN:    "arduino:avr:nano",
		Variant: "eightanaloginputs",
		FlashKB: 32, RAMKB: 2,
		Chip:    AVR{MCU: "atmega328p", FCPU: 16_000_000, Programmer: "arduino", Baud: 115200},
		Defines: []string{"ARDUINO_AVR_NANO", "ARDUINO_ARCH_AVR"},
	},
	{
		ID: "nano_old", Name: "Arduino Nano (old bootloader)",
		FQBN:    "arduino:avr:nano:cpu=atmega328old",
		Variant: "eightanaloginputs",
		FlashKB: 32, RAMKB: 2,
		Chip:    AVR{MCU: "atmega328p", FCPU: 16_000_000, Programmer: "arduino", Baud: 57600},
		Defines: []string{"ARDUINO_AVR_NANO", "ARDUINO_ARCH_AVR"},
	},
	{
		ID: "mega", Name: "Arduino Mega 2560",
		FQBN:    "arduino:avr:mega",
		Variant: "mega",
		FlashKB: 256, RAMKB: 8,
		Chip:    AVR{MCU: "atmega2560", FCPU: 16_000_000, Programmer: "wiring", Baud: 115200},
		Defines: []string{"ARDUINO_AVR_MEGA2560", "ARDUINO_ARCH_AVR"},
	},
	{
		ID: "leonardo", Name: "Arduino Leonardo",
		FQBN:    "arduino:avr:leonardo",
		Variant: "leonardo",
		FlashKB: 32, RAMKB: 2,
		Chip:    AVR{MCU: "atmega32u4", FCPU: 16_000_000, Programmer: "avr109", Baud: 57600},
		Defines: []string{"ARDUINO_AVR_LEONARDO", "ARDUINO_ARCH_AVR", "USB_VID=0x2341", "USB_PID=0x0036"},
	},
	{
		ID: "micro", Name: "Arduino Micro",
		FQBN:    "arduino:avr:micro",
		Variant: "micro",
		FlashKB: 32, RAMKB: 2,
		Chip:    AVR{MCU: "atmega32u4", FCPU: 16_000_000, Programmer: "avr109", Baud: 57600},
		Defines: []string{"ARDUINO_AVR_MICRO", "ARDUINO_ARCH_AVR", "USB_VID=0x2341", "USB_PID=0x0037"},
	},
	{
		ID: "pro_mini_5v", Name: "Arduino Pro Mini 5V",
		FQBN:    "arduino:avr:pro:cpu=16MHzatmega328",
		Variant: "eightanaloginputs",
		FlashKB: 32, RAMKB: 2,
		Chip:    AVR{MCU: "atmega328p", FCPU: 16_000_000, Programmer: "arduino", Baud: 57600},
		Defines: []string{"ARDUINO_AVR_PRO", "ARDUINO_ARCH_AVR"},
	},
	{
		ID: "pro_mini_3v3", Name: "Arduino Pro Mini 3.3V",
		FQBN:    "arduino:avr:pro:cpu=8MHzatmega328",
		Variant: "eightanaloginputs",
		FlashKB: 32, RAMKB: 2,
		Chip:    AVR{MCU: "atmega328p", FCPU: 8_000_000, Programmer: "arduino", Baud: 57600},
		Defines: []string{"ARDUINO_AVR_PRO", "ARDUINO_ARCH_AVR"},
	},
	// ARM SAM
	{
		ID: "due", Name: "Arduino Due",
		FQBN:    "arduino:sam:arduino_due_x",
		Variant: "arduino_due_x",
		FlashKB: 512, RAMKB: 96,
		Chip:    SAM{MCU: "cortex-m3", FCPU: 84_000_000},
		Defines: []string{"ARDUINO_SAM_DUE", "ARDUINO_ARCH_SAM", "__SAM3X8E__"},
	},
	// RP2040
	{
		ID: "pico", Name: "Raspberry Pi Pico",
		FQBN:    "rp2040:rp2040:rpipico",
		Variant: "rpipico",
		FlashKB: 2048, RAMKB: 264,
		Chip:    RP2040{},
		Defines: []string{"ARDUINO_RASPBERRY_PI_PICO", "ARDUINO_ARCH_RP2040"},
	},
	// ESP32
	{
		ID: "esp32", Name: "ESP32 Dev Module",
		FQBN:    "esp32:esp32:esp32",
		Variant: "esp32",
		FlashKB: 4096, RAMKB: 520,
		Chip:    ESP32{Variant: "esp32"},
		Defines: []string{"ARDUINO_ESP32_DEV", "ARDUINO_ARCH_ESP32", "ESP32"},
	},
	{
		ID: "esp32s2", Name: "ESP32-S2 Dev Module",
		FQBN:    "esp32:esp32:esp32s2",
		Variant: "esp32s2",
		FlashKB: 4096, RAMKB: 320,
		Chip:    ESP32{Variant: "esp32s2"},
		Defines: []string{"ARDUINO_ESP32S2_DEV", "ARDUINO_ARCH_ESP32", "CONFIG_IDF_TARGET_ESP32S2"},
	},
	{
		ID: "esp32c3", Name: "ESP32-C3 Dev Module",
		FQBN:    "esp32:esp32:esp32c3",
		Variant: "esp32c3",
		FlashKB: 4096, RAMKB: 400,
		Chip:    ESP32{Variant: "esp32c3"},
		Defines: []string{"ARDUINO_ESP32C3_DEV", "ARDUINO_ARCH_ESP32", "CONFIG_IDF_TARGET_ESP32C3"},
	},
	// ESP8266
	{
		ID: "esp8266", Name: "ESP8266 Generic",
		FQBN:    "esp8266:esp8266:generic",
		Variant: "esp8266",
		FlashKB: 1024, RAMKB: 80,
		Chip:    ESP8266{},
		Defines: []string{"ARDUINO_ESP8266_GENERIC", "ARDUINO_ARCH_ESP8266", "ESP8266"},
	},
	{
		ID: "d1_mini", Name: "Wemos D1 Mini",
		FQBN:    "esp8266:esp8266:d1_mini",
		Variant: "d1_mini",
		FlashKB: 4096, RAMKB: 80,
		Chip:    ESP8266{},
		Defines: []string{"ARDUINO_ESP8266_WEMOS_D1MINI", "ARDUINO_ARCH_ESP8266", "ESP8266"},
	},
	{
		ID: "nodemcu", Name: "NodeMCU 1.0 (ESP-12E)",
		FQBN:    "esp8266:esp8266:nodemcuv2",
		Variant: "nodemcu",
		FlashKB: 4096, RAMKB: 80,
		Chip:    ESP8266{},
		Defines: []string{"ARDUINO_ESP8266_NODEMCU_ESP12E", "ARDUINO_ARCH_ESP8266", "ESP8266"},
	},
}
