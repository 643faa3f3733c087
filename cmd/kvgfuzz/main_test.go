package main

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adammathes/kvgverify/pkg/kvg"
)

func TestGeneratedDiagramsMatchManifest(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	if err := generate(dir, 60, 7, &out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "manifest.json")); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	n, err := check(dir, &out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d mismatches:\n%s", n, out.String())
	}
}

func TestUnfaultedDiagramParses(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := range 20 {
		b := newBuilder("04e00", rng)
		doc, err := kvg.ParseBytes(b.render())
		if err != nil {
			t.Fatalf("diagram %d: %v", i, err)
		}
		if got := len(doc.Strokes()); got != len(b.strokes) || got < 2 {
			t.Errorf("diagram %d: %d strokes parsed, built %d", i, got, len(b.strokes))
		}
		if doc.Kanji() != b.root.element {
			t.Errorf("diagram %d: kanji %q, want %q", i, doc.Kanji(), b.root.element)
		}
	}
}

func TestPickFaultsKeepsParseFaultsAlone(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for range 200 {
		faults := pickFaults(3, rng)
		names := make([]string, len(faults))
		for i, f := range faults {
			names[i] = f.name
			if f.parse && len(faults) > 1 {
				t.Fatalf("parse fault combined with others: %s", strings.Join(names, ", "))
			}
		}
	}
}
