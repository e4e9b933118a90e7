package validation

import (
	"strings"
	"testing"

	"parlor/pkg/errs"
	"parlor/pkg/models"
)

func TestTarget(t *testing.T) {
	cases := []struct {
		name      string
		room, rcp string
		wantErr   bool
	}{
		{"room only", "room-1", "", false},
		{"recipient only", "", "u2", false},
		{"both", "room-1", "u2", true},
		{"neither", "", "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Target(c.room, c.rcp)
			if (err != nil) != c.wantErr {
				t.Fatalf("Target(%q, %q) err = %v", c.room, c.rcp, err)
			}
			if err != nil && errs.KindOf(err) != errs.InvalidArgument {
				t.Fatalf("kind = %v", errs.KindOf(err))
			}
		})
	}
}

func TestContentBounds(t *testing.T) {
	SetLimits(Limits{MaxContentBytes: 10, MaxAttachments: 2})
	t.Cleanup(func() { SetLimits(Limits{}) })

	if err := Content("hello", nil); err != nil {
		t.Fatalf("valid content rejected: %v", err)
	}
	if err := Content("", nil); err == nil {
		t.Fatal("empty content accepted")
	}
	if err := Content("   ", nil); err == nil {
		t.Fatal("whitespace content accepted")
	}
	if err := Content(strings.Repeat("x", 11), nil); err == nil {
		t.Fatal("oversized content accepted")
	}
	// attachments alone are a valid body
	att := []models.Attachment{{URL: "https://cdn/x.png"}}
	if err := Content("", att); err != nil {
		t.Fatalf("attachment-only message rejected: %v", err)
	}
	three := []models.Attachment{{URL: "a"}, {URL: "b"}, {URL: "c"}}
	if err := Content("hi", three); err == nil {
		t.Fatal("attachment count over limit accepted")
	}
	if err := Content("hi", []models.Attachment{{URL: " "}}); err == nil {
		t.Fatal("attachment without url accepted")
	}
}

func TestEmoji(t *testing.T) {
	for _, ok := range []string{"👍", "❤️", "🏳️‍🌈", "+1"} {
		if err := Emoji(ok); err != nil {
			t.Errorf("Emoji(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a b", "x:y", strings.Repeat("👍", 20)} {
		if err := Emoji(bad); err == nil {
			t.Errorf("Emoji(%q) accepted", bad)
		}
	}
}

func TestEnums(t *testing.T) {
	if err := MessageType(models.MsgText); err != nil {
		t.Fatalf("text type rejected: %v", err)
	}
	if err := MessageType(models.MessageType("carrier-pigeon")); err == nil {
		t.Fatal("bogus type accepted")
	}
	if err := RoomKind(models.RoomGroup); err != nil {
		t.Fatalf("group kind rejected: %v", err)
	}
	if err := RoomKind(models.RoomKind("dungeon")); err == nil {
		t.Fatal("bogus kind accepted")
	}
	if err := Role(models.RoleModerator); err != nil {
		t.Fatalf("moderator rejected: %v", err)
	}
	if err := Role(models.Role("sovereign")); err == nil {
		t.Fatal("bogus role accepted")
	}
}

func TestRequireID(t *testing.T) {
	if err := RequireID("user", "u1"); err != nil {
		t.Fatalf("plain id rejected: %v", err)
	}
	if err := RequireID("user", ""); err == nil {
		t.Fatal("empty id accepted")
	}
	if err := RequireID("user", "a:b"); err == nil {
		t.Fatal("id with separator accepted")
	}
}
