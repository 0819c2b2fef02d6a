package scanner

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
)

// FormatUnits scales a raw integer amount down by 10^decimals and returns
// the exact decimal string, without trailing zeros.
func FormatUnits(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0"
	}
	if decimals < 0 {
		decimals = 0
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// ParseRawAmount parses a provider's raw integer amount, either decimal
// ("1500") or 0x-prefixed hex ("0x5dc"). An empty hex body ("0x") is zero.
func ParseRawAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", config.ErrMalformedResponse)
	}

	n := new(big.Int)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if digits == "" {
			return n, nil
		}
		if _, ok := n.SetString(digits, 16); !ok {
			return nil, fmt.Errorf("%w: bad hex amount %q", config.ErrMalformedResponse, s)
		}
	} else if _, ok := n.SetString(s, 10); !ok {
		return nil, fmt.Errorf("%w: bad amount %q", config.ErrMalformedResponse, s)
	}

	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount %q", config.ErrMalformedResponse, s)
	}
	return n, nil
}

// newRecord builds a BalanceRecord from a raw amount.
// ok is false for a zero amount, which is never reported.
func newRecord(chain, token, name, contract string, raw *big.Int, decimals int, source string) (models.BalanceRecord, bool) {
	if raw == nil || raw.Sign() <= 0 {
		return models.BalanceRecord{}, false
	}
	return models.BalanceRecord{
		Chain:           chain,
		Token:           token,
		Name:            name,
		ContractAddress: contract,
		Balance:         FormatUnits(raw, decimals),
		Source:          source,
	}, true
}
