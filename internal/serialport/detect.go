package serialport

import (
	"sort"
	"strings"
)

// DetectedPort is one serial device tagged with a board guess when the
// VID:PID is recognized.
type DetectedPort struct {
	Port      string
	BoardID   string
	BoardName string
	VID       string
	PID       string
}

// Recognized reports whether the port matched a known board.
func (d DetectedPort) Recognized() bool { return d.BoardID != "" }

// knownBoard is one VID:PID table row. Where a chip is shared across
// boards (the CH340 shows up on Uno, Nano, and Mega clones) the most
// common product is listed.
type knownBoard struct {
	vid, pid string
	id, name string
}

var vidPidTable = []knownBoard{
	// Arduino genuine (VID 2341)
	{"2341", "0043", "uno", "Arduino Uno R3"},
	{"2341", "0001", "uno", "Arduino Uno"},
	{"2341", "0010", "mega", "Arduino Mega 2560"},
	{"2341", "0042", "mega", "Arduino Mega 2560"},
	{"2341", "0036", "leonardo", "Arduino Leonardo"},
	{"2341", "8036", "leonardo", "Arduino Leonardo (DFU)"},
	{"2341", "0037", "micro", "Arduino Micro"},
	{"2341", "8037", "micro", "Arduino Micro (DFU)"},
	{"2341", "003D", "due", "Arduino Due (prog)"},
	{"2341", "003E", "due", "Arduino Due (native)"},
	{"2341", "0057", "uno", "Arduino Uno R4 Minima"},
	{"2341", "1002", "uno", "Arduino Uno R4 WiFi"},
	// Arduino.org clone VID (2A03)
	{"2A03", "0043", "uno", "Arduino Uno (org clone)"},
	{"2A03", "0010", "mega", "Arduino Mega (org clone)"},
	// CH340 / CH341 (1A86), the most common clone chip
	{"1A86", "7523", "nano", "Arduino Nano / clone (CH340)"},
	{"1A86", "55D4", "esp32", "ESP32 (CH9102)"},
	{"1A86", "7522", "nano", "Arduino Nano (CH340C)"},
	// FTDI (0403)
	{"0403", "6001", "nano", "Arduino Nano (FT232RL)"},
	{"0403", "6015", "nano", "Arduino Nano (FT-X)"},
	// Silicon Labs CP210x (10C4)
	{"10C4", "EA60", "esp32", "ESP32 / ESP8266 (CP2102)"},
	{"10C4", "EA70", "esp32", "ESP32 (CP2105)"},
	// Raspberry Pi RP2040 (2E8A)
	{"2E8A", "000A", "pico", "Raspberry Pi Pico"},
	{"2E8A", "0005", "pico", "Raspberry Pi Pico (MicroPython)"},
	{"2E8A", "000F", "pico", "Raspberry Pi Pico W"},
}

// Classify tags one port with its board guess. Unrecognized VID:PID
// pairs keep the pair and leave the board fields empty.
func Classify(p PortInfo) DetectedPort {
	d := DetectedPort{Port: p.Name, VID: p.VID, PID: p.PID}
	if p.VID == "" || p.PID == "" {
		return d
	}
	for _, k := range vidPidTable {
		if strings.EqualFold(k.vid, p.VID) && strings.EqualFold(k.pid, p.PID) {
			d.BoardID = k.id
			d.BoardName = k.name
			return d
		}
	}
	return d
}

// DetectAll enumerates every serial port and classifies each one,
// sorted by port name.
func DetectAll() ([]DetectedPort, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}
	detected := make([]DetectedPort, 0, len(ports))
	for _, p := range ports {
		detected = append(detected, Classify(p))
	}
	sort.Slice(detected, func(i, j int) bool { return detected[i].Port < detected[j].Port })
	return detected, nil
}

// BestPort picks the most likely flashing target: the first port with
// a recognized board, else the first USB-serial-looking port.
func BestPort() (string, bool) {
	all, err := DetectAll()
	if err != nil {
		return "", false
	}
	return bestOf(all)
}

func bestOf(all []DetectedPort) (string, bool) {
	for _, d := range all {
		if d.Recognized() {
			return d.Port, true
		}
	}
	for _, d := range all {
		if LooksLikeSerial(d.Port) {
			return d.Port, true
		}
	}
	return "", false
}

// LooksLikeSerial reports whether a device path smells like a USB
// serial adapter on any supported platform.
func LooksLikeSerial(port string) bool {
	return strings.Contains(port, "ttyUSB") || strings.Contains(port, "ttyACM") ||
		strings.Contains(port, "usbserial") || strings.Contains(port, "usbmodem") ||
		(strings.HasPrefix(port, "COM") && len(port) <= 6)
}
