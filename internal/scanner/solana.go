package scanner

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/mr-tron/base58"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/registry"
)

// validSolanaAddress reports whether address is a base58 32-byte public key.
func validSolanaAddress(address string) bool {
	b, err := base58.Decode(address)
	return err == nil && len(b) == 32
}

type solanaBalanceResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value uint64 `json:"value"`
}

// SolanaNative reads SOL balances with getBalance.
type SolanaNative struct {
	desc registry.SourceDescriptor
	http httpJSON
}

// NewSolanaNative creates the native-balance protocol for Solana.
func NewSolanaNative(desc registry.SourceDescriptor, client *http.Client) *SolanaNative {
	return &SolanaNative{desc: desc, http: httpJSON{client: client, source: desc.Name}}
}

// ValidAddress implements AddressValidator.
func (p *SolanaNative) ValidAddress(address string) bool {
	return validSolanaAddress(address)
}

// Query implements Protocol.
func (p *SolanaNative) Query(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error) {
	var result solanaBalanceResult
	if err := p.http.rpc(ctx, endpoint, "getBalance", []interface{}{address}, &result); err != nil {
		return nil, err
	}

	slog.Debug("solana native balance fetched",
		"source", p.desc.Name,
		"slot", result.Context.Slot,
		"lamports", result.Value,
	)

	lamports := new(big.Int).SetUint64(result.Value)
	rec, ok := newRecord(p.desc.Chain, models.TokenNative, p.desc.Symbol, "", lamports, p.desc.Decimals, p.desc.Name)
	if !ok {
		return nil, nil
	}
	return []models.BalanceRecord{rec}, nil
}

type tokenAccountsResult struct {
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							Amount   string `json:"amount"`
							Decimals *int   `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// SolanaTokens lists SPL token accounts with getTokenAccountsByOwner.
// The RPC reports mints only, so records carry the unknown-token placeholders.
type SolanaTokens struct {
	desc registry.SourceDescriptor
	http httpJSON
}

// NewSolanaTokens creates the SPL token protocol.
func NewSolanaTokens(desc registry.SourceDescriptor, client *http.Client) *SolanaTokens {
	return &SolanaTokens{desc: desc, http: httpJSON{client: client, source: desc.Name}}
}

// ValidAddress implements AddressValidator.
func (p *SolanaTokens) ValidAddress(address string) bool {
	return validSolanaAddress(address)
}

// Query implements Protocol.
func (p *SolanaTokens) Query(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error) {
	params := []interface{}{
		address,
		map[string]string{"programId": config.SPLTokenProgramID},
		map[string]string{"encoding": "jsonParsed"},
	}

	var result tokenAccountsResult
	if err := p.http.rpc(ctx, endpoint, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	records := make([]models.BalanceRecord, 0, len(result.Value))
	for _, acc := range result.Value {
		info := acc.Account.Data.Parsed.Info

		raw, err := ParseRawAmount(info.TokenAmount.Amount)
		if err != nil {
			slog.Warn("skipping unparseable token account",
				"source", p.desc.Name,
				"account", acc.Pubkey,
				"mint", info.Mint,
				"error", err,
			)
			continue
		}

		decimals := config.DefaultTokenDecimals
		if info.TokenAmount.Decimals != nil {
			decimals = *info.TokenAmount.Decimals
		}

		rec, ok := newRecord(p.desc.Chain, config.UnknownTokenSymbol, config.UnknownTokenName, info.Mint, raw, decimals, p.desc.Name)
		if ok {
			records = append(records, rec)
		}
	}

	slog.Debug("solana token accounts fetched",
		"source", p.desc.Name,
		"accounts", len(result.Value),
		"nonZero", len(records),
	)

	return records, nil
}
