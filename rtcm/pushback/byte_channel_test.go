package pushback

import (
	"errors"
	"testing"
)

// TestReadInOrder checks that bytes come out in the order they went in.
func TestReadInOrder(t *testing.T) {
	ch := make(chan byte, 10)
	bc := New(ch)
	for _, b := range []byte{1, 2, 3} {
		ch <- b
	}
	bc.Close()

	for _, want := range []byte{1, 2, 3} {
		got, err := bc.GetNextByte()
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if got != want {
			t.Errorf("want %d got %d", want, got)
		}
	}

	if _, err := bc.GetNextByte(); !errors.Is(err, ErrClosed) {
		t.Errorf("want ErrClosed got %v", err)
	}
}

// TestPushBack checks that a pushed-back byte is served before the
// channel contents.
func TestPushBack(t *testing.T) {
	ch := make(chan byte, 10)
	bc := New(ch)
	ch <- 42
	bc.Close()

	bc.PushBack(7)

	got, _ := bc.GetNextByte()
	if got != 7 {
		t.Errorf("want 7 got %d", got)
	}
	got, _ = bc.GetNextByte()
	if got != 42 {
		t.Errorf("want 42 got %d", got)
	}
}

// TestPushBackAll checks that a run of pushed-back bytes is re-read in
// order, ahead of anything pushed back earlier.
func TestPushBackAll(t *testing.T) {
	ch := make(chan byte, 10)
	bc := New(ch)
	ch <- 99
	bc.Close()

	bc.PushBack(50)
	bc.PushBackAll([]byte{10, 11, 12})

	var got []byte
	for {
		b, err := bc.GetNextByte()
		if err != nil {
			break
		}
		got = append(got, b)
	}

	want := []byte{10, 11, 12, 50, 99}
	if len(got) != len(want) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v got %v", want, got)
		}
	}
}
