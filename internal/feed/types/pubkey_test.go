package types

import "testing"

const mintStr = "6WdHhpRY7vL8SQ69bd89tAj3sk8jsjBrCLDUTZSNpump"

func TestPubkeyStringRoundtrip(t *testing.T) {
	p, err := TryPubkeyFromString(mintStr)
	if err != nil {
		t.Fatalf("TryPubkeyFromString: %v", err)
	}
	if got := p.String(); got != mintStr {
		t.Errorf("String() = %s, want %s", got, mintStr)
	}
}

func TestTryPubkeyFromString_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not base58", "0OIl"},
		{"wrong length", "abc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := TryPubkeyFromString(tc.input); err == nil {
				t.Errorf("TryPubkeyFromString(%q) succeeded, want error", tc.input)
			}
		})
	}
}

func TestPubkeyFromBytes(t *testing.T) {
	b := make([]byte, 32)
	b[0] = 7
	p, err := PubkeyFromBytes(b)
	if err != nil {
		t.Fatalf("PubkeyFromBytes: %v", err)
	}
	if p[0] != 7 {
		t.Error("bytes not copied")
	}
	if _, err := PubkeyFromBytes(make([]byte, 31)); err == nil {
		t.Error("31-byte input accepted")
	}
}

func TestPubkeyShort(t *testing.T) {
	p := PubkeyFromString(mintStr)
	if got := p.Short(); got != "6WdH..pump" {
		t.Errorf("Short() = %s, want 6WdH..pump", got)
	}
}

func TestPubkeyIsZero(t *testing.T) {
	var zero Pubkey
	if !zero.IsZero() {
		t.Error("zero value not reported as zero")
	}
	if PubkeyFromString(mintStr).IsZero() {
		t.Error("real pubkey reported as zero")
	}
}
