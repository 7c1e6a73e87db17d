package qwkmsg

import (
	"strings"
	"testing"
)

func TestParseDoorID(t *testing.T) {
	input := "DOOR=LoraBBS Reader\r\nVERSION=2.1\r\nCAPS=QWKE, MIME\r\nSomeOtherLine\r\n"
	d, err := ParseDoorID(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDoorID: %v", err)
	}
	if d.Name != "LoraBBS Reader" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.Version != "2.1" {
		t.Errorf("Version = %q", d.Version)
	}
	if !d.Capabilities["QWKE"] || !d.Capabilities["MIME"] {
		t.Errorf("Capabilities = %v", d.Capabilities)
	}
	if len(d.Entries) != 4 {
		t.Errorf("len(Entries) = %d, want 4", len(d.Entries))
	}
	if d.Entries[3].Key != "SomeOtherLine" || d.Entries[3].Value != "" {
		t.Errorf("Entries[3] = %+v", d.Entries[3])
	}
}
