package textsplit

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects non-positive size", func(t *testing.T) {
		t.Parallel()
		if _, err := New(0, 0); !errors.Is(err, ErrInvalidChunkSize) {
			t.Errorf("expected ErrInvalidChunkSize, got %v", err)
		}
	})

	t.Run("rejects overlap larger than size", func(t *testing.T) {
		t.Parallel()
		if _, err := New(100, 200); !errors.Is(err, ErrOverlapTooLarge) {
			t.Errorf("expected ErrOverlapTooLarge, got %v", err)
		}
	})

	t.Run("accepts production defaults", func(t *testing.T) {
		t.Parallel()
		s, err := New(110_000, 200)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Size() != 110_000 {
			t.Errorf("expected size 110000, got %d", s.Size())
		}
	})
}

func TestSplit(t *testing.T) {
	t.Parallel()

	t.Run("short text is a single chunk equal to the input", func(t *testing.T) {
		t.Parallel()

		s, _ := New(110_000, 200)
		text := "  Our mission is to feed everyone.\n\nDonate today.\n"
		got := s.Split(text)
		if len(got) != 1 || got[0] != text {
			t.Errorf("expected [%q], got %q", text, got)
		}
	})

	t.Run("empty text produces no chunks", func(t *testing.T) {
		t.Parallel()

		s, _ := New(10, 0)
		if got := s.Split(""); len(got) != 0 {
			t.Errorf("expected no chunks, got %q", got)
		}
		if got := s.Split(" \n\n "); len(got) != 0 {
			t.Errorf("expected no chunks for whitespace, got %q", got)
		}
	})

	t.Run("one chunk per paragraph", func(t *testing.T) {
		t.Parallel()

		text := "aaaa\n\nbbbb\n\ncccc"
		for _, overlap := range []int{0, 2} {
			s, _ := New(8, overlap)
			got := s.Split(text)
			want := []string{"aaaa", "bbbb", "cccc"}
			if !slices.Equal(got, want) {
				t.Errorf("overlap %d: expected %q, got %q", overlap, want, got)
			}
		}
	})

	t.Run("words are packed with overlap", func(t *testing.T) {
		t.Parallel()

		s, _ := New(10, 4)
		got := s.Split("one two three four five six")
		want := []string{"one two", "two three", "four five", "six"}
		if !slices.Equal(got, want) {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("chunk length counts characters not bytes", func(t *testing.T) {
		t.Parallel()

		s, _ := New(6, 0)
		got := s.Split("ééééé\n\nééééé")
		want := []string{"ééééé", "ééééé"}
		if !slices.Equal(got, want) {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("no chunk exceeds the size and order is kept", func(t *testing.T) {
		t.Parallel()

		var sb strings.Builder
		for i := range 200 {
			sb.WriteString("paragraph ")
			sb.WriteString(strings.Repeat("x", i%17))
			sb.WriteString(" end.\n\n")
		}
		s, _ := New(120, 20)
		chunks := s.Split(sb.String())
		if len(chunks) < 2 {
			t.Fatalf("expected several chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if n := utf8.RuneCountInString(c); n > 120 {
				t.Errorf("chunk %d has %d characters", i, n)
			}
		}
		if !strings.HasPrefix(chunks[0], "paragraph ") {
			t.Errorf("expected first chunk to start with the first paragraph, got %q", chunks[0])
		}
	})

	t.Run("unbreakable text falls back to characters", func(t *testing.T) {
		t.Parallel()

		s, _ := New(4, 0)
		got := s.Split("abcdefghij")
		want := []string{"abcd", "efgh", "ij"}
		if !slices.Equal(got, want) {
			t.Errorf("expected %q, got %q", want, got)
		}
	})
}

func TestSplitKeepSeparator(t *testing.T) {
	t.Parallel()

	got := splitKeepSeparator("a\nb\n\nc", "\n")
	want := []string{"a", "\nb", "\n", "\nc"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}

	got = splitKeepSeparator("\nx", "\n")
	want = []string{"\nx"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}
