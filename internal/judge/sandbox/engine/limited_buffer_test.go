package engine

import (
	"strings"
	"testing"
)

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{max: 5}
	n, err := b.Write([]byte("abc"))
	if n != 3 || err != nil {
		t.Fatalf("unexpected write result: %d %v", n, err)
	}
	n, _ = b.Write([]byte("defgh"))
	if n != 5 {
		t.Fatalf("writes must report full length, got %d", n)
	}
	if got := b.String(); !strings.HasPrefix(got, "abcde") || !strings.HasSuffix(got, "[truncated]") {
		t.Fatalf("unexpected contents: %q", got)
	}

	small := &limitedBuffer{max: 10}
	_, _ = small.Write([]byte("ok"))
	if small.String() != "ok" {
		t.Fatalf("unexpected contents: %q", small.String())
	}
}
