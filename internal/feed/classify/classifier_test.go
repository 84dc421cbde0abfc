package classify

import (
	"testing"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
)

type fakeHolders struct {
	pool    types.Pubkey
	hasPool bool
	known   map[types.Pubkey]bool
}

func (f *fakeHolders) PoolAddress() (types.Pubkey, bool) {
	return f.pool, f.hasPool
}

func (f *fakeHolders) IsKnownHolder(owner types.Pubkey) bool {
	return f.known[owner]
}

func pk(b byte) types.Pubkey {
	var p types.Pubkey
	p[0] = b
	return p
}

func delta(owner types.Pubkey, pre, post float64) types.BalanceDelta {
	return types.BalanceDelta{Owner: owner, PreBalance: pre, PostBalance: post}
}

func detail(sig string, deltas ...types.BalanceDelta) *types.TxDetail {
	return &types.TxDetail{Signature: sig, Deltas: deltas}
}

func TestClassify_TransferBuySell(t *testing.T) {
	pool := pk(1)
	alice := pk(2)
	bob := pk(3)

	holders := &fakeHolders{pool: pool, hasPool: true, known: map[types.Pubkey]bool{pool: true, alice: true}}
	c := NewClassifier(holders, 0)

	tests := []struct {
		name string
		in   *types.TxDetail
		want types.Classification
	}{
		{"pool sender is buy", detail("s1", delta(pool, 100, 90), delta(alice, 0, 10)), types.ClassBuy},
		{"pool receiver is sell", detail("s2", delta(alice, 10, 0), delta(pool, 90, 100)), types.ClassSell},
		{"no pool side is transfer", detail("s3", delta(alice, 10, 5), delta(bob, 0, 5)), types.ClassTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := c.Classify(tt.in)
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			if events[0].Classification != tt.want {
				t.Errorf("classification = %s, want %s", events[0].Classification, tt.want)
			}
			if events[0].Signature != tt.in.Signature {
				t.Errorf("signature = %s, want %s", events[0].Signature, tt.in.Signature)
			}
		})
	}
}

func TestClassify_OneSenderTwoReceivers(t *testing.T) {
	a, b, c := pk(1), pk(2), pk(3)
	holders := &fakeHolders{known: map[types.Pubkey]bool{}}
	cl := NewClassifier(holders, 0)

	events := cl.Classify(detail("sig",
		delta(a, 5, 0), // -5
		delta(b, 0, 3), // +3
		delta(c, 0, 2), // +2
	))

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].To != b || events[0].Amount != 3 {
		t.Errorf("event 0 = %s amount %v, want to=b amount 3", events[0].ToAddress, events[0].Amount)
	}
	if events[1].To != c || events[1].Amount != 2 {
		t.Errorf("event 1 = %s amount %v, want to=c amount 2", events[1].ToAddress, events[1].Amount)
	}
}

func TestClassify_PairwiseAmountIsMin(t *testing.T) {
	a, b, c, d := pk(1), pk(2), pk(3), pk(4)
	holders := &fakeHolders{known: map[types.Pubkey]bool{}}
	cl := NewClassifier(holders, 0)

	// 两个发送方 × 两个接收方，每个组合金额取 min(|s|, r)
	events := cl.Classify(detail("sig",
		delta(a, 7, 0), // -7
		delta(b, 2, 0), // -2
		delta(c, 0, 6), // +6
		delta(d, 0, 3), // +3
	))

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	wantAmounts := []float64{6, 3, 2, 2}
	for i, want := range wantAmounts {
		if events[i].Amount != want {
			t.Errorf("event %d amount = %v, want %v", i, events[i].Amount, want)
		}
	}
}

func TestClassify_DustIgnored(t *testing.T) {
	a, b := pk(1), pk(2)
	holders := &fakeHolders{known: map[types.Pubkey]bool{}}
	cl := NewClassifier(holders, 0.5)

	if events := cl.Classify(detail("sig", delta(a, 1, 0.9), delta(b, 0, 0.1))); len(events) != 0 {
		t.Errorf("dust deltas produced %d events, want 0", len(events))
	}
}

func TestClassify_NoCounterparty(t *testing.T) {
	a := pk(1)
	holders := &fakeHolders{known: map[types.Pubkey]bool{}}
	cl := NewClassifier(holders, 0)

	// 只有发送方（比如销毁），没有成对事件
	if events := cl.Classify(detail("sig", delta(a, 5, 0))); len(events) != 0 {
		t.Errorf("burn-like tx produced %d events, want 0", len(events))
	}
	if events := cl.Classify(nil); events != nil {
		t.Errorf("nil detail produced events")
	}
}

func TestClassify_HolderFlags(t *testing.T) {
	a, b := pk(1), pk(2)
	holders := &fakeHolders{known: map[types.Pubkey]bool{a: true}}
	cl := NewClassifier(holders, 0)

	events := cl.Classify(detail("sig", delta(a, 5, 0), delta(b, 0, 5)))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if !events[0].FromIsHolder || events[0].ToIsHolder {
		t.Errorf("holder flags = (%v, %v), want (true, false)", events[0].FromIsHolder, events[0].ToIsHolder)
	}
	if events[0].ToPostBalance != 5 {
		t.Errorf("ToPostBalance = %v, want 5", events[0].ToPostBalance)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	a, b, c := pk(1), pk(2), pk(3)
	holders := &fakeHolders{known: map[types.Pubkey]bool{}}
	cl := NewClassifier(holders, 0)

	in := detail("sig", delta(a, 5, 0), delta(b, 0, 3), delta(c, 0, 2))
	first := cl.Classify(in)
	for i := 0; i < 10; i++ {
		got := cl.Classify(in)
		if len(got) != len(first) {
			t.Fatalf("run %d: got %d events, want %d", i, len(got), len(first))
		}
		for j := range got {
			if got[j].From != first[j].From || got[j].To != first[j].To || got[j].Amount != first[j].Amount {
				t.Fatalf("run %d event %d differs from first run", i, j)
			}
		}
	}
}
