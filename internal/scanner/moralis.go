package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/registry"
)

// flexInt decodes an integer sent either as a JSON number or a string.
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("decode integer %q: %w", s, err)
	}
	f.Value, f.Set = n, true
	return nil
}

func (f flexInt) or(def int) int {
	if f.Set {
		return f.Value
	}
	return def
}

func moralisHeader(apiKey string) http.Header {
	h := make(http.Header)
	h.Set("X-API-Key", apiKey)
	return h
}

type moralisERC20 struct {
	TokenAddress string  `json:"token_address"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Decimals     flexInt `json:"decimals"`
	Balance      string  `json:"balance"`
	PossibleSpam bool    `json:"possible_spam"`
}

// MoralisEVM lists ERC-20 holdings from the Moralis EVM REST API.
type MoralisEVM struct {
	desc registry.SourceDescriptor
	http httpJSON
}

// NewMoralisEVM creates the Moralis EVM token protocol.
func NewMoralisEVM(desc registry.SourceDescriptor, client *http.Client) *MoralisEVM {
	return &MoralisEVM{desc: desc, http: httpJSON{client: client, source: desc.Name}}
}

// ValidAddress accepts 0x-prefixed 20-byte hex addresses.
func (p *MoralisEVM) ValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// Query implements Protocol.
func (p *MoralisEVM) Query(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error) {
	chain := p.desc.ChainParam
	if chain == "" {
		chain = p.desc.Chain
	}
	u := strings.TrimRight(endpoint, "/") + "/" + url.PathEscape(address) + "/erc20?chain=" + url.QueryEscape(chain)

	var tokens []moralisERC20
	if err := p.http.get(ctx, u, moralisHeader(p.desc.APIKey), &tokens); err != nil {
		return nil, err
	}

	records := make([]models.BalanceRecord, 0, len(tokens))
	for _, t := range tokens {
		if t.PossibleSpam {
			slog.Debug("skipping possible spam token",
				"source", p.desc.Name,
				"contract", t.TokenAddress,
			)
			continue
		}
		if rec, ok := p.record(t); ok {
			records = append(records, rec)
		}
	}

	slog.Debug("moralis evm tokens fetched",
		"source", p.desc.Name,
		"chain", chain,
		"entries", len(tokens),
		"nonZero", len(records),
	)

	return records, nil
}

func (p *MoralisEVM) record(t moralisERC20) (models.BalanceRecord, bool) {
	raw, err := ParseRawAmount(t.Balance)
	if err != nil {
		slog.Warn("skipping unparseable token balance",
			"source", p.desc.Name,
			"contract", t.TokenAddress,
			"error", err,
		)
		return models.BalanceRecord{}, false
	}
	symbol, name := placeholders(t.Symbol, t.Name)
	return newRecord(p.desc.Chain, symbol, name, t.TokenAddress, raw, t.Decimals.or(config.DefaultTokenDecimals), p.desc.Name)
}

type moralisSPLToken struct {
	Mint      string  `json:"mint"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Decimals  flexInt `json:"decimals"`
	Amount    string  `json:"amount"`
	AmountRaw string  `json:"amountRaw"`
}

type moralisPortfolio struct {
	NativeBalance json.RawMessage   `json:"nativeBalance"`
	Tokens        []moralisSPLToken `json:"tokens"`
}

// MoralisSolana lists SPL holdings from the Moralis Solana gateway.
// When the response carries the native balance it is reported too.
type MoralisSolana struct {
	desc registry.SourceDescriptor
	http httpJSON
}

// NewMoralisSolana creates the Moralis Solana token protocol.
func NewMoralisSolana(desc registry.SourceDescriptor, client *http.Client) *MoralisSolana {
	return &MoralisSolana{desc: desc, http: httpJSON{client: client, source: desc.Name}}
}

// ValidAddress implements AddressValidator.
func (p *MoralisSolana) ValidAddress(address string) bool {
	return validSolanaAddress(address)
}

// Query implements Protocol.
func (p *MoralisSolana) Query(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error) {
	u := strings.TrimRight(endpoint, "/") + "/account/mainnet/" + url.PathEscape(address) + "/tokens"

	var body json.RawMessage
	if err := p.http.get(ctx, u, moralisHeader(p.desc.APIKey), &body); err != nil {
		return nil, err
	}

	// The gateway answers with either a bare token list or a portfolio object.
	var portfolio moralisPortfolio
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &portfolio.Tokens); err != nil {
			return nil, fmt.Errorf("%w: decode token list: %w", config.ErrMalformedResponse, err)
		}
	} else if err := json.Unmarshal(trimmed, &portfolio); err != nil {
		return nil, fmt.Errorf("%w: decode portfolio: %w", config.ErrMalformedResponse, err)
	}

	var records []models.BalanceRecord

	if lamports, ok := parseNativeLamports(portfolio.NativeBalance); ok {
		if rec, ok := newRecord(p.desc.Chain, models.TokenNative, "SOL", "", lamports, config.SolanaNativeDecimals, p.desc.Name); ok {
			records = append(records, rec)
		}
	}

	for _, t := range portfolio.Tokens {
		amount := t.AmountRaw
		if amount == "" {
			amount = t.Amount
		}
		raw, err := ParseRawAmount(amount)
		if err != nil {
			slog.Warn("skipping unparseable token balance",
				"source", p.desc.Name,
				"mint", t.Mint,
				"error", err,
			)
			continue
		}
		symbol, name := placeholders(t.Symbol, t.Name)
		if rec, ok := newRecord(p.desc.Chain, symbol, name, t.Mint, raw, t.Decimals.or(config.DefaultTokenDecimals), p.desc.Name); ok {
			records = append(records, rec)
		}
	}

	slog.Debug("moralis solana tokens fetched",
		"source", p.desc.Name,
		"tokens", len(portfolio.Tokens),
		"nonZero", len(records),
	)

	return records, nil
}

// parseNativeLamports accepts a lamport count as a number, a string, or an
// object with a "lamports" field.
func parseNativeLamports(raw json.RawMessage) (*big.Int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}

	var obj struct {
		Lamports json.RawMessage `json:"lamports"`
	}
	if raw[0] == '{' {
		if err := json.Unmarshal(raw, &obj); err != nil || len(obj.Lamports) == 0 {
			return nil, false
		}
		raw = obj.Lamports
	}

	n, err := ParseRawAmount(strings.Trim(string(raw), `"`))
	if err != nil {
		return nil, false
	}
	return n, true
}

func placeholders(symbol, name string) (string, string) {
	if symbol == "" {
		symbol = config.UnknownTokenSymbol
	}
	if name == "" {
		name = config.UnknownTokenName
	}
	return symbol, name
}
