package audit

import "testing"

func TestAppendChainsAndVerifies(t *testing.T) {
	l := New()
	l.Append("share", map[string]string{"reader_id": "r1", "type": "t"})
	l.Append("revoke", map[string]string{"reader_id": "r1", "type": "t"})

	if err := l.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(l.Entries()) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(l.Entries()))
	}
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l := New()
	l.Append("share", map[string]string{"reader_id": "r1"})
	l.Append("register", nil)

	entries := l.entries
	entries[0].Fields["reader_id"] = "attacker"

	if err := l.Verify(); err == nil {
		t.Fatal("expected Verify to detect tampering")
	}
}

func TestEntriesReturnsDefensiveCopy(t *testing.T) {
	l := New()
	l.Append("backup", nil)

	entries := l.Entries()
	entries[0].What = "mutated"

	if l.entries[0].What != "backup" {
		t.Fatal("Entries() must return a copy, not the internal slice")
	}
}
