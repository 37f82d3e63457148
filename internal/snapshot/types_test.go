package snapshot

import "testing"

func TestSnapshot_Identity(t *testing.T) {
	a := Snapshot{Content: "c1", TextContent: "t1", Title: "Title"}
	b := Snapshot{Content: "c1", TextContent: "t1", Title: "Title"}
	if a.identity() != b.identity() {
		t.Error("expected identical snapshots to produce the same identity")
	}

	c := Snapshot{Content: "c2", TextContent: "t1", Title: "Title"}
	if a.identity() == c.identity() {
		t.Error("expected different content to change the identity")
	}
}

func TestSnapshot_IdentityDistinguishesFieldBoundaries(t *testing.T) {
	// Without a separator, {Content:"ab", TextContent:"c"} and
	// {Content:"a", TextContent:"bc"} would collide.
	a := Snapshot{Content: "ab", TextContent: "c"}
	b := Snapshot{Content: "a", TextContent: "bc"}
	if a.identity() == b.identity() {
		t.Error("expected field-boundary shifts to produce distinct identities")
	}
}
