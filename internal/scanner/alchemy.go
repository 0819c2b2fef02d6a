package scanner

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/registry"
	"github.com/Fantasim/vaultscan/internal/transport"
)

type alchemyTokenBalances struct {
	Address       string `json:"address"`
	TokenBalances []struct {
		ContractAddress string  `json:"contractAddress"`
		TokenBalance    *string `json:"tokenBalance"`
		Error           *string `json:"error"`
	} `json:"tokenBalances"`
	PageKey string `json:"pageKey"`
}

// tokenMetadata is the subset of alchemy_getTokenMetadata we use.
type tokenMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals *int   `json:"decimals"`
}

// AlchemyTokens enumerates ERC-20 holdings with alchemy_getTokenBalances and
// resolves each contract with alchemy_getTokenMetadata.
type AlchemyTokens struct {
	desc registry.SourceDescriptor
	http httpJSON
	meta *lru.Cache[string, tokenMetadata]
}

// NewAlchemyTokens creates the Alchemy token protocol with its metadata cache.
func NewAlchemyTokens(desc registry.SourceDescriptor, client *http.Client) (*AlchemyTokens, error) {
	cache, err := lru.New[string, tokenMetadata](config.MetadataCacheSize)
	if err != nil {
		return nil, err
	}
	return &AlchemyTokens{
		desc: desc,
		http: httpJSON{client: client, source: desc.Name},
		meta: cache,
	}, nil
}

// ValidAddress accepts 0x-prefixed 20-byte hex addresses.
func (p *AlchemyTokens) ValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// Query implements Protocol, running every call inline under ctx.
func (p *AlchemyTokens) Query(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error) {
	return p.QueryStaged(ctx, inline, endpoint, address)
}

// heldToken is a non-zero balance awaiting its metadata.
type heldToken struct {
	contract string
	raw      *big.Int
}

// QueryStaged implements StagedProtocol. Balance pages are fetched first;
// a failure there fails the query. Metadata for uncached contracts is then
// resolved concurrently, one wrapped call per contract, and a failed lookup
// only degrades that token to the placeholders.
func (p *AlchemyTokens) QueryStaged(ctx context.Context, run Runner, endpoint, address string) ([]models.BalanceRecord, error) {
	held, err := p.balances(ctx, run, endpoint, address)
	if err != nil {
		return nil, err
	}

	metas := p.resolve(ctx, run, endpoint, held)

	records := make([]models.BalanceRecord, 0, len(held))
	for i, h := range held {
		meta := metas[i]
		decimals := config.DefaultTokenDecimals
		if meta.Decimals != nil {
			decimals = *meta.Decimals
		}
		if rec, ok := newRecord(p.desc.Chain, meta.Symbol, meta.Name, h.contract, h.raw, decimals, p.desc.Name); ok {
			records = append(records, rec)
		}
	}

	slog.Debug("alchemy token balances fetched",
		"source", p.desc.Name,
		"chain", p.desc.Chain,
		"nonZero", len(records),
	)

	return records, nil
}

// balances walks alchemy_getTokenBalances pages and keeps non-zero entries.
func (p *AlchemyTokens) balances(ctx context.Context, run Runner, endpoint, address string) ([]heldToken, error) {
	var held []heldToken
	pageKey := ""

	for page := 0; page < config.AlchemyMaxPages; page++ {
		params := []interface{}{address, "erc20"}
		if pageKey != "" {
			params = append(params, map[string]string{"pageKey": pageKey})
		}

		result, err := runAs(ctx, run, func(ctx context.Context) (alchemyTokenBalances, error) {
			var r alchemyTokenBalances
			err := p.http.rpc(ctx, endpoint, "alchemy_getTokenBalances", params, &r)
			return r, err
		})
		if err != nil {
			return nil, err
		}

		for _, tb := range result.TokenBalances {
			if tb.Error != nil || tb.TokenBalance == nil {
				continue
			}
			raw, err := ParseRawAmount(*tb.TokenBalance)
			if err != nil {
				slog.Warn("skipping unparseable token balance",
					"source", p.desc.Name,
					"contract", tb.ContractAddress,
					"error", err,
				)
				continue
			}
			if raw.Sign() == 0 {
				continue
			}
			held = append(held, heldToken{contract: tb.ContractAddress, raw: raw})
		}

		pageKey = result.PageKey
		if pageKey == "" {
			return held, nil
		}
	}

	slog.Warn("token balance pagination truncated",
		"source", p.desc.Name,
		"chain", p.desc.Chain,
		"pages", config.AlchemyMaxPages,
		"pageKey", pageKey,
	)
	return held, nil
}

// resolve returns metadata for each held token, index-aligned with held.
func (p *AlchemyTokens) resolve(ctx context.Context, run Runner, endpoint string, held []heldToken) []tokenMetadata {
	metas := make([]tokenMetadata, len(held))

	var g errgroup.Group
	g.SetLimit(config.MetadataConcurrency)
	for i, h := range held {
		if m, ok := p.meta.Get(strings.ToLower(h.contract)); ok {
			metas[i] = m
			continue
		}
		g.Go(func() error {
			metas[i] = p.metadata(ctx, run, endpoint, h.contract)
			return nil
		})
	}
	_ = g.Wait()

	return metas
}

// metadata resolves a contract's symbol, name and decimals.
// A failed lookup yields the unknown-token placeholders and is not cached.
func (p *AlchemyTokens) metadata(ctx context.Context, run Runner, endpoint, contract string) (meta tokenMetadata) {
	unknown := tokenMetadata{Symbol: config.UnknownTokenSymbol, Name: config.UnknownTokenName}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in token metadata lookup",
				"source", p.desc.Name,
				"contract", contract,
				"panic", r,
			)
			meta = unknown
		}
	}()

	m, err := runAs(ctx, run, func(ctx context.Context) (tokenMetadata, error) {
		var m tokenMetadata
		err := p.http.rpc(ctx, endpoint, "alchemy_getTokenMetadata", []interface{}{contract}, &m)
		return m, err
	})
	if err != nil {
		slog.Warn("token metadata lookup failed",
			"source", p.desc.Name,
			"contract", contract,
			"reason", transport.Classify(err),
			"error", err,
		)
		return unknown
	}

	if m.Symbol == "" {
		m.Symbol = config.UnknownTokenSymbol
	}
	if m.Name == "" {
		m.Name = config.UnknownTokenName
	}

	p.meta.Add(strings.ToLower(contract), m)
	return m
}
