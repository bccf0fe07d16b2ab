package clipboard

import (
	"errors"
	"testing"
)

func stubWriter(t *testing.T, err error) *string {
	t.Helper()
	var got string
	orig := writeAll
	writeAll = func(s string) error {
		got = s
		return err
	}
	t.Cleanup(func() { writeAll = orig })
	return &got
}

func TestCopy(t *testing.T) {
	got := stubWriter(t, nil)

	if err := Copy("Hi there"); err != nil {
		t.Fatalf("Copy() error: %v", err)
	}
	if *got != "Hi there" {
		t.Errorf("clipboard = %q", *got)
	}
}

func TestCopy_Blank(t *testing.T) {
	got := stubWriter(t, nil)

	if err := Copy("  \n"); !errors.Is(err, ErrNothingToCopy) {
		t.Errorf("Copy() = %v, want ErrNothingToCopy", err)
	}
	if *got != "" {
		t.Error("blank text must not reach the clipboard")
	}
}

func TestCopy_WriterError(t *testing.T) {
	boom := errors.New("no xclip")
	stubWriter(t, boom)

	if err := Copy("text"); !errors.Is(err, boom) {
		t.Errorf("Copy() = %v, want wrapped %v", err, boom)
	}
}
