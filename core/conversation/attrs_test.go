package conversation

import (
	"encoding/json"
	"testing"
)

func TestAttrsInsertionOrder(t *testing.T) {
	a := NewAttrs()
	a.Set("email", "a@b.com")
	a.Set("course", "Go 101")
	a.Set("retries", int64(2))
	a.Set("email", "c@d.com") // overwrite keeps position

	keys := a.Keys()
	want := []string{"email", "course", "retries"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
	if v, _ := a.String("email"); v != "c@d.com" {
		t.Fatalf("overwrite lost: %q", v)
	}
}

func TestAttrsTypedGetters(t *testing.T) {
	a := NewAttrs()
	a.Set("n", int64(42))
	a.Set("s", "text")

	if v, ok := a.Int64("n"); !ok || v != 42 {
		t.Fatalf("Int64(n) = %d, %v", v, ok)
	}
	if _, ok := a.Int64("s"); ok {
		t.Fatalf("Int64 accepted non-numeric string")
	}
	if _, ok := a.String("n"); ok {
		t.Fatalf("String accepted int64")
	}
	if _, ok := a.Get("missing"); ok {
		t.Fatalf("Get found a missing key")
	}
}

func TestAttrsJSONRoundTrip(t *testing.T) {
	a := NewAttrs()
	a.Set("email", "a@b.com")
	a.Set("count", int64(7))

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	restored := NewAttrs()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	keys := restored.Keys()
	if len(keys) != 2 || keys[0] != "email" || keys[1] != "count" {
		t.Fatalf("order lost across JSON: %v", keys)
	}
	if v, _ := restored.String("email"); v != "a@b.com" {
		t.Fatalf("email = %q", v)
	}
	// Numbers come back as float64 from encoding/json; Int64 coerces.
	if v, ok := restored.Int64("count"); !ok || v != 7 {
		t.Fatalf("count = %d, %v", v, ok)
	}
}
