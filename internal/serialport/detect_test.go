package serialport

import "testing"

func TestClassifyKnownBoards(t *testing.T) {
	cases := []struct {
		vid, pid string
		wantID   string
	}{
		{"2341", "0043", "uno"},
		{"2341", "0010", "mega"},
		{"1A86", "7523", "nano"},
		{"1a86", "7523", "nano"}, // case-insensitive
		{"10C4", "EA60", "esp32"},
		{"2E8A", "000A", "pico"},
		{"FFFF", "0001", ""},
	}
	for _, c := range cases {
		d := Classify(PortInfo{Name: "/dev/ttyUSB0", VID: c.vid, PID: c.pid, IsUSB: true})
		if d.BoardID != c.wantID {
			t.Errorf("Classify(%s:%s).BoardID = %q, want %q", c.vid, c.pid, d.BoardID, c.wantID)
		}
		if d.VID != c.vid || d.PID != c.pid {
			t.Errorf("Classify(%s:%s) dropped the VID:PID pair", c.vid, c.pid)
		}
	}
}

func TestClassifyWithoutUSBInfo(t *testing.T) {
	d := Classify(PortInfo{Name: "/dev/ttyS0"})
	if d.Recognized() {
		t.Fatalf("bare port classified as %q", d.BoardID)
	}
	if d.Port != "/dev/ttyS0" {
		t.Fatalf("Port = %q", d.Port)
	}
}

func TestBestOfPrefersRecognized(t *testing.T) {
	all := []DetectedPort{
		{Port: "/dev/ttyS0"},
		{Port: "/dev/ttyUSB0"},
		{Port: "/dev/ttyUSB1", BoardID: "uno", BoardName: "Arduino Uno R3"},
	}
	port, ok := bestOf(all)
	if !ok || port != "/dev/ttyUSB1" {
		t.Fatalf("bestOf = %q, %v; want the recognized board", port, ok)
	}
}

func TestBestOfFallsBackToUSBSerial(t *testing.T) {
	all := []DetectedPort{
		{Port: "/dev/ttyS0"},
		{Port: "/dev/ttyACM0"},
	}
	port, ok := bestOf(all)
	if !ok || port != "/dev/ttyACM0" {
		t.Fatalf("bestOf = %q, %v; want /dev/ttyACM0", port, ok)
	}

	if _, ok := bestOf([]DetectedPort{{Port: "/dev/ttyS0"}}); ok {
		t.Fatal("bestOf accepted a bare ttyS port")
	}
}

func TestLooksLikeSerial(t *testing.T) {
	yes := []string{"/dev/ttyUSB0", "/dev/ttyACM1", "/dev/cu.usbserial-1420", "/dev/cu.usbmodem14101", "COM3", "COM12"}
	no := []string{"/dev/ttyS0", "/dev/null", "COM1234567"}
	for _, p := range yes {
		if !LooksLikeSerial(p) {
			t.Errorf("LooksLikeSerial(%q) = false", p)
		}
	}
	for _, p := range no {
		if LooksLikeSerial(p) {
			t.Errorf("LooksLikeSerial(%q) = true", p)
		}
	}
}
