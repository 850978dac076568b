package canon

import "testing"

func TestCanonicalizeSortsKeysRecursivelyWithEmoji(t *testing.T) {
	data := map[string]interface{}{
		"k1":  "val1",
		"k3":  "val2",
		"k2":  "val3",
		"AAA": "val4",
		"k4": map[string]interface{}{
			"k3":  "val1",
			"k2":  "val2",
			"😐":   "val3",
			"k1":  "val4",
		},
		"😐": "val5",
	}

	got, err := Canonicalize(data)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	want := `{"AAA":"val4","k1":"val1","k2":"val3","k3":"val2","k4":{"k1":"val4","k2":"val2","k3":"val1","😐":"val3"},"😐":"val5"}`
	if string(got) != want {
		t.Fatalf("canonical mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestCanonicalizeOmitsNullFields(t *testing.T) {
	data := map[string]interface{}{
		"a": "present",
		"b": nil,
	}
	got, err := Canonicalize(data)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := `{"a":"present"}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalizeIsOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"x": "1", "y": "2", "z": "3"}
	b := map[string]interface{}{"z": "3", "x": "1", "y": "2"}

	gotA, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("Canonicalize a: %v", err)
	}
	gotB, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("Canonicalize b: %v", err)
	}
	if string(gotA) != string(gotB) {
		t.Fatalf("expected key-order independence, got %s vs %s", gotA, gotB)
	}
}

func TestCanonicalizeDiffersForDifferingLeafValues(t *testing.T) {
	base := map[string]interface{}{"a": "1", "b": "2"}
	changed := map[string]interface{}{"a": "1", "b": "3"}

	gotBase, _ := Canonicalize(base)
	gotChanged, _ := Canonicalize(changed)
	if string(gotBase) == string(gotChanged) {
		t.Fatal("expected distinct canonical bytes for distinct leaf values")
	}
}

func TestSignedStringPassesThroughVerbatim(t *testing.T) {
	got, err := Canonicalize(SignedString(`{"already":"canonical"}`))
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if string(got) != `{"already":"canonical"}` {
		t.Fatalf("expected verbatim passthrough, got %s", got)
	}
}

func TestCanonicalizeNoWhitespace(t *testing.T) {
	data := map[string]interface{}{"a": "1", "b": map[string]interface{}{"c": "2"}}
	got, err := Canonicalize(data)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	for _, r := range string(got) {
		if r == ' ' || r == '\n' || r == '\t' {
			t.Fatalf("expected no whitespace in canonical output, got %q", got)
		}
	}
}

func FuzzCanonicalizeDistinctInputsDistinctOutputs(f *testing.F) {
	f.Add("k1", "v1", "k2", "v2")
	f.Fuzz(func(t *testing.T, k1, v1, k2, v2 string) {
		if k1 == k2 {
			t.Skip()
		}
		a := map[string]interface{}{k1: v1, k2: v2}
		b := map[string]interface{}{k1: v1 + "x", k2: v2}

		gotA, err := Canonicalize(a)
		if err != nil {
			t.Skip()
		}
		gotB, err := Canonicalize(b)
		if err != nil {
			t.Skip()
		}
		if string(gotA) == string(gotB) {
			t.Fatalf("expected distinct canonical bytes for distinct field value")
		}
	})
}
