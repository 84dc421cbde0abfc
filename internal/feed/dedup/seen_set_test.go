package dedup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryMark_FirstWins(t *testing.T) {
	s := NewSeenSignatures()

	if !s.TryMark("sig-1") {
		t.Fatal("first TryMark returned false")
	}
	if s.TryMark("sig-1") {
		t.Fatal("second TryMark returned true for same signature")
	}
	if !s.Contains("sig-1") {
		t.Error("Contains returned false for marked signature")
	}
	if s.Contains("sig-2") {
		t.Error("Contains returned true for unseen signature")
	}
}

func TestTryMark_TruncateKeepsRecent(t *testing.T) {
	s := NewSeenSignatures()

	total := DefaultMaxEntries + 500
	for i := 0; i < total; i++ {
		s.TryMark(fmt.Sprintf("sig-%d", i))
	}

	if got := s.Len(); got > DefaultMaxEntries {
		t.Errorf("Len = %d, want <= %d", got, DefaultMaxEntries)
	}

	// 最近插入的 keepEntries 条必须还在
	for i := total - DefaultKeepEntries; i < total; i++ {
		if !s.Contains(fmt.Sprintf("sig-%d", i)) {
			t.Fatalf("recent signature sig-%d evicted", i)
		}
	}

	// 最早的一批应当已被驱逐
	if s.Contains("sig-0") {
		t.Error("oldest signature survived truncation")
	}
}

func TestForget_AllowsRemark(t *testing.T) {
	s := NewSeenSignatures()

	s.TryMark("sig-1")
	s.Forget("sig-1")

	if s.Contains("sig-1") {
		t.Fatal("Contains returned true after Forget")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after Forget", s.Len())
	}
	if !s.TryMark("sig-1") {
		t.Error("TryMark returned false after Forget")
	}
}

func TestForget_UnknownSignatureNoop(t *testing.T) {
	s := NewSeenSignatures()
	s.TryMark("sig-1")

	s.Forget("sig-2")

	if !s.Contains("sig-1") || s.Len() != 1 {
		t.Error("Forget of unknown signature disturbed the set")
	}
}

func TestTryMark_ConcurrentSingleWinner(t *testing.T) {
	s := NewSeenSignatures()

	const goroutines = 32
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryMark("contested-sig") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("winners = %d, want exactly 1", got)
	}
}

func TestNewSeenSignaturesWithBounds_Defaults(t *testing.T) {
	s := NewSeenSignaturesWithBounds(0, 0)
	if s.maxEntries != DefaultMaxEntries {
		t.Errorf("maxEntries = %d, want %d", s.maxEntries, DefaultMaxEntries)
	}
	if s.keepEntries != DefaultMaxEntries/2 {
		t.Errorf("keepEntries = %d, want %d", s.keepEntries, DefaultMaxEntries/2)
	}
}
