package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

type Pubkey [32]byte

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Short 返回地址的截断展示形式（前 4 + 后 4），用于日志和推送
func (p Pubkey) Short() string {
	s := p.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

func (p Pubkey) Equals(other Pubkey) bool {
	return p == other
}

func PubkeyFromBytes(b []byte) (Pubkey, error) {
	if len(b) != 32 {
		return Pubkey{}, fmt.Errorf("invalid pubkey: length = %d, want 32", len(b))
	}
	var pk Pubkey
	copy(pk[:], b)
	return pk, nil
}

func TryPubkeyFromString(s string) (Pubkey, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("failed to decode base58 pubkey %q: %w", s, err)
	}
	if len(data) != 32 {
		return Pubkey{}, fmt.Errorf("invalid pubkey length: got %d, want 32, input=%q", len(data), s)
	}
	var p Pubkey
	copy(p[:], data)
	return p, nil
}

func PubkeyFromString(s string) Pubkey {
	p, err := TryPubkeyFromString(s)
	if err != nil {
		panic(err)
	}
	return p
}
