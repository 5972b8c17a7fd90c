package handlers

import "testing"

func TestParseWindow(t *testing.T) {
	start, end, err := parseWindow("08:00", "16:00")
	if err != nil || start != 480 || end != 960 {
		t.Fatalf("got %d-%d, %v", start, end, err)
	}
	if _, _, err := parseWindow("16:00", "08:00"); err == nil {
		t.Fatal("inverted window should be rejected")
	}
	if _, _, err := parseWindow("late", "16:00"); err == nil {
		t.Fatal("garbage should be rejected")
	}
}

func TestParseOptionalWindow(t *testing.T) {
	s, e, err := parseOptionalWindow(nil, nil)
	if err != nil || s != nil || e != nil {
		t.Fatalf("nil input should yield nil window, got %v-%v, %v", s, e, err)
	}

	start, end := "12:00", "12:30"
	s, e, err = parseOptionalWindow(&start, &end)
	if err != nil || s == nil || e == nil || *s != 720 || *e != 750 {
		t.Fatalf("got %v-%v, %v", s, e, err)
	}

	blank := ""
	s, e, err = parseOptionalWindow(&start, &blank)
	if err != nil || s != nil {
		t.Fatalf("half-empty window should yield nil, got %v, %v", s, err)
	}
}
