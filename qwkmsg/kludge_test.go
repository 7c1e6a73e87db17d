package qwkmsg

import (
	"reflect"
	"testing"
)

// TestExtractKludgesRegression checks that a body leading with two
// Synchronet @-kludges followed by ordinary content containing a
// reply attribution, a quote marker, and plain text must not be
// mis-parsed as further kludges, and no blank line should be consumed
// since none is present.
func TestExtractKludgesRegression(t *testing.T) {
	lines := []string{
		"@VIA: VERT",
		"@MSGID: <x.y@z>",
		"Re: Subject",
		"By: Author",
		"> quote",
		"body",
	}
	kludges, body := ExtractKludges(lines)
	if len(kludges) != 2 {
		t.Fatalf("len(kludges) = %d, want 2", len(kludges))
	}
	if kludges[0].Key != "@VIA" || kludges[0].Value != "VERT" {
		t.Errorf("kludges[0] = %+v", kludges[0])
	}
	if kludges[1].Key != "@MSGID" || kludges[1].Value != "<x.y@z>" {
		t.Errorf("kludges[1] = %+v", kludges[1])
	}
	want := []string{"Re: Subject", "By: Author", "> quote", "body"}
	if !reflect.DeepEqual(body, want) {
		t.Errorf("body = %#v, want %#v", body, want)
	}
}

func TestExtractKludgesQWKEHeaders(t *testing.T) {
	lines := []string{"To: Jane Doe", "From: John Smith", "Subject: Hello there", "", "Message text."}
	kludges, body := ExtractKludges(lines)
	if len(kludges) != 3 {
		t.Fatalf("len(kludges) = %d, want 3", len(kludges))
	}
	if kludges[0].Value != "Jane Doe" {
		t.Errorf("kludges[0].Value = %q", kludges[0].Value)
	}
	want := []string{"Message text."}
	if !reflect.DeepEqual(body, want) {
		t.Errorf("body = %#v, want %#v (separating blank line consumed)", body, want)
	}
}

func TestExtractKludgesNoneFound(t *testing.T) {
	lines := []string{"", "Just a plain message.", "Second line."}
	kludges, body := ExtractKludges(lines)
	if len(kludges) != 0 {
		t.Fatalf("len(kludges) = %d, want 0", len(kludges))
	}
	// No kludge extracted yet, so the leading blank line is ordinary
	// content and must not be consumed.
	if !reflect.DeepEqual(body, lines) {
		t.Errorf("body = %#v, want unchanged %#v", body, lines)
	}
}

func TestExtractKludgesCaseInsensitiveKey(t *testing.T) {
	lines := []string{"SUBJECT: Shouting", "text"}
	kludges, _ := ExtractKludges(lines)
	if len(kludges) != 1 || kludges[0].Value != "Shouting" {
		t.Errorf("kludges = %+v", kludges)
	}
}
