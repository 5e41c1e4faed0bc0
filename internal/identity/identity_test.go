package identity

import "testing"

func TestOwnerKeyOf_InRange(t *testing.T) {
	inputs := []int64{1, 15, 29, 30, 31, 60, 61, 12345, 0, -1, -30, -31, -999999}
	for _, id := range inputs {
		key := OwnerKeyOf(id)
		if key < 1 || key > OwnerKeyBound {
			t.Errorf("OwnerKeyOf(%d) = %d, out of [1, %d]", id, key, OwnerKeyBound)
		}
	}
}

func TestOwnerKeyOf_NeverZero(t *testing.T) {
	for _, id := range []int64{0, 30, 60, -30, -60} {
		if key := OwnerKeyOf(id); key != OwnerKeyBound {
			t.Errorf("OwnerKeyOf(%d) = %d, want %d", id, key, OwnerKeyBound)
		}
	}
}

// Double-mapping is a known risk: values already in range must map to
// themselves so an accidental second application is the identity.
func TestOwnerKeyOf_FixedPointInRange(t *testing.T) {
	for id := int64(1); id <= OwnerKeyBound; id++ {
		if key := OwnerKeyOf(id); key != id {
			t.Errorf("OwnerKeyOf(%d) = %d, want itself", id, key)
		}
	}
}

func TestOwnerKeyOf_Deterministic(t *testing.T) {
	for _, id := range []int64{7, 31, -13, 1 << 40} {
		if OwnerKeyOf(id) != OwnerKeyOf(id) {
			t.Errorf("OwnerKeyOf(%d) not deterministic", id)
		}
	}
}

func TestStaticProvider_Notifies(t *testing.T) {
	p := NewStaticProvider()

	var gotID int64
	var gotPresent bool
	calls := 0
	p.Subscribe(func(id int64, present bool) {
		gotID, gotPresent = id, present
		calls++
	})

	p.Set(42, true)
	if calls != 1 || gotID != 42 || !gotPresent {
		t.Fatalf("expected notification (42, true), got (%d, %v) after %d calls",
			gotID, gotPresent, calls)
	}

	// Transition to absent notifies too.
	p.Set(0, false)
	if calls != 2 || gotPresent {
		t.Fatalf("expected sign-out notification, got (%d, %v) after %d calls",
			gotID, gotPresent, calls)
	}

	if _, present := p.Current(); present {
		t.Error("Current should report absent after sign-out")
	}
}
