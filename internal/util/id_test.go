package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("prj")
	if !strings.HasPrefix(id, "prj_") || len(id) != len("prj_")+32 {
		t.Fatalf("NewID(prj) = %q", id)
	}
	if NewID("prj") == id {
		t.Fatal("expected distinct ids")
	}
	if bare := NewID(""); strings.Contains(bare, "_") || len(bare) != 32 {
		t.Fatalf("NewID(\"\") = %q", bare)
	}
}
