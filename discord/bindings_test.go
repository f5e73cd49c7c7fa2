package discord

import (
	"reflect"
	"testing"
)

func TestBindingsSetAndLookup(t *testing.T) {
	b := NewBindings()
	b.Set("g1", "survival", "chan1")
	b.Set("g1", "creative", "chan2")
	b.Set("g2", "survival", "chan3")

	got := b.ForGuild("g1")
	want := map[string]string{"survival": "chan1", "creative": "chan2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ForGuild(g1) = %v, want %v", got, want)
	}

	guilds := b.Guilds()
	if len(guilds) != 2 {
		t.Errorf("Guilds() = %v, want 2 entries", guilds)
	}
}

func TestBindingsOverwrite(t *testing.T) {
	b := NewBindings()
	b.Set("g1", "survival", "chan1")
	b.Set("g1", "survival", "chan9")

	if got := b.ForGuild("g1")["survival"]; got != "chan9" {
		t.Errorf("binding = %q, want chan9 (last write wins)", got)
	}
}

func TestForGuildReturnsCopy(t *testing.T) {
	b := NewBindings()
	b.Set("g1", "survival", "chan1")

	m := b.ForGuild("g1")
	m["survival"] = "mutated"
	if got := b.ForGuild("g1")["survival"]; got != "chan1" {
		t.Error("mutating the returned map must not affect the bindings")
	}
}

func TestForGuildUnknown(t *testing.T) {
	b := NewBindings()
	if got := b.ForGuild("nope"); len(got) != 0 {
		t.Errorf("ForGuild on unknown guild = %v, want empty", got)
	}
}

func TestCapitalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"survival", "Survival"},
		{"SMP", "Smp"},
		{"creative world", "Creative world"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := capitalize(tt.in); got != tt.want {
			t.Errorf("capitalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
