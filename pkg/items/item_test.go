package items

import (
	"testing"
)

func TestParseID(t *testing.T) {
	id, err := ParseID("file:/etc/motd")
	if err != nil {
		t.Fatalf("ParseID failed: %v", err)
	}
	if id.Type != "file" || id.Name != "/etc/motd" {
		t.Errorf("unexpected identity: %+v", id)
	}
	if id.String() != "file:/etc/motd" {
		t.Errorf("String() = %q, want %q", id.String(), "file:/etc/motd")
	}
}

func TestParseIDInvalid(t *testing.T) {
	for _, raw := range []string{"", "file", ":name", "file:"} {
		if _, err := ParseID(raw); err == nil {
			t.Errorf("ParseID(%q) should have failed", raw)
		}
	}
}

func TestStateSnapshotEqual(t *testing.T) {
	a := StateSnapshot{"exists": true, "sha256": "abc", "mode": "644"}
	b := StateSnapshot{"mode": "644", "sha256": "abc", "exists": true}
	if !a.Equal(b) {
		t.Error("snapshots with identical entries should be equal")
	}

	c := StateSnapshot{"exists": true, "sha256": "def", "mode": "644"}
	if a.Equal(c) {
		t.Error("snapshots with different checksums should not be equal")
	}

	var empty StateSnapshot
	if a.Equal(empty) {
		t.Error("non-empty snapshot should not equal nil snapshot")
	}
}

func TestItemValidate(t *testing.T) {
	item := NewFile(&File{Path: "/etc/motd", Content: []byte("hello\n")})
	if err := item.Validate(); err != nil {
		t.Errorf("valid item failed validation: %v", err)
	}
}

func TestItemValidateSelfDependency(t *testing.T) {
	item := NewFile(&File{Path: "/etc/motd"},
		WithNeeds(ID{Type: "file", Name: "/etc/motd"}))
	if err := item.Validate(); err == nil {
		t.Error("self-dependency should fail validation")
	}
}

func TestItemValidateSelfTrigger(t *testing.T) {
	item := NewAction(&Action{Name: "reload", Command: "systemctl reload nginx"},
		WithTriggers(ID{Type: "action", Name: "reload"}))
	if err := item.Validate(); err == nil {
		t.Error("self-trigger should fail validation")
	}
}

func TestItemValidateMissingCapability(t *testing.T) {
	item := &Item{ID: ID{Type: "file", Name: "/etc/motd"}}
	if err := item.Validate(); err == nil {
		t.Error("item without capability should fail validation")
	}
}

func TestOptions(t *testing.T) {
	need := ID{Type: "pkg", Name: "nginx"}
	trigger := ID{Type: "action", Name: "reload"}

	item := NewFile(&File{Path: "/etc/nginx/nginx.conf"},
		WithNeeds(need), WithTriggers(trigger), WithInteractive())

	if len(item.Needs) != 1 || item.Needs[0] != need {
		t.Errorf("unexpected needs: %v", item.Needs)
	}
	if len(item.Triggers) != 1 || item.Triggers[0] != trigger {
		t.Errorf("unexpected triggers: %v", item.Triggers)
	}
	if !item.Interactive {
		t.Error("WithInteractive should mark the item interactive")
	}
}
