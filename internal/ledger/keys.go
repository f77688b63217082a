package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ParsePrivateKey accepts a JSON byte array (the CLI keypair file format) or
// a base58 string.
func ParsePrivateKey(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("private key is empty")
	}
	if strings.HasPrefix(raw, "[") {
		var b []byte
		var ints []int
		if err := json.Unmarshal([]byte(raw), &ints); err != nil {
			return nil, fmt.Errorf("decode key array: %w", err)
		}
		b = make([]byte, 0, len(ints))
		for _, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("key array value %d out of range", v)
			}
			b = append(b, byte(v))
		}
		if len(b) != 64 {
			return nil, fmt.Errorf("key array has %d bytes, want 64", len(b))
		}
		return solana.PrivateKey(b), nil
	}
	key, err := solana.PrivateKeyFromBase58(raw)
	if err != nil {
		return nil, fmt.Errorf("decode base58 key: %w", err)
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("key has %d bytes, want 64", len(key))
	}
	return key, nil
}
