package lob

import "testing"

func TestUpdateKindString(t *testing.T) {
	cases := map[UpdateKind]string{
		UpdateAdd:    "add",
		UpdateUpdate: "update",
		UpdateDelete: "delete",
		UpdateKind(99): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("UpdateKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestLevelUpdateCarriesTopFlag(t *testing.T) {
	u := LevelUpdate{Kind: UpdateAdd, Level: Level{Kind: LevelBid, Price: 100, Volume: 10, Visible: 10, Orders: 1}, Top: true}
	if !u.Top {
		t.Fatal("expected Top to be true")
	}
	if u.Level.Price != 100 {
		t.Fatalf("expected price 100, got %d", u.Level.Price)
	}
}
