package instance

import "testing"

func TestAcquireStartRejectsConcurrentStart(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireStart(dir, "demo")
	if err != nil {
		t.Fatalf("first AcquireStart failed: %s", err)
	}
	defer first.Release() //nolint:errcheck

	if _, err := AcquireStart(dir, "demo"); err == nil {
		t.Error("expected second AcquireStart for the same name to fail")
	}
}

func TestAcquireStartDifferentNamesDoNotConflict(t *testing.T) {
	dir := t.TempDir()

	a, err := AcquireStart(dir, "one")
	if err != nil {
		t.Fatalf("AcquireStart(one) failed: %s", err)
	}
	defer a.Release() //nolint:errcheck

	b, err := AcquireStart(dir, "two")
	if err != nil {
		t.Fatalf("AcquireStart(two) failed: %s", err)
	}
	defer b.Release() //nolint:errcheck
}

func TestReleaseThenReacquire(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireStart(dir, "demo")
	if err != nil {
		t.Fatalf("AcquireStart failed: %s", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %s", err)
	}

	second, err := AcquireStart(dir, "demo")
	if err != nil {
		t.Fatalf("AcquireStart after release should succeed, got: %s", err)
	}
	defer second.Release() //nolint:errcheck
}
