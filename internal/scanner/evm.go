package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/registry"
)

// balanceOfSelector is the first 4 bytes of keccak256("balanceOf(address)").
var balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

// evmClients holds one ethclient per endpoint of a source.
type evmClients map[string]*ethclient.Client

func dialEVM(endpoints []string, httpClient *http.Client) (evmClients, error) {
	clients := make(evmClients, len(endpoints))
	for _, ep := range endpoints {
		// HTTP transports do not connect on dial.
		c, err := rpc.DialOptions(context.Background(), ep, rpc.WithHTTPClient(httpClient))
		if err != nil {
			clients.Close()
			return nil, fmt.Errorf("dial evm endpoint: %w", err)
		}
		clients[ep] = ethclient.NewClient(c)
	}
	return clients, nil
}

func (c evmClients) get(endpoint string) (*ethclient.Client, error) {
	client, ok := c[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: no client for endpoint", config.ErrProviderUnavailable)
	}
	return client, nil
}

// Close releases every client.
func (c evmClients) Close() {
	for _, client := range c {
		client.Close()
	}
}

// EVMNative reads native balances with eth_getBalance.
type EVMNative struct {
	desc    registry.SourceDescriptor
	clients evmClients
}

// NewEVMNative creates the native-balance protocol for an EVM chain.
func NewEVMNative(desc registry.SourceDescriptor, httpClient *http.Client) (*EVMNative, error) {
	clients, err := dialEVM(desc.Endpoints, httpClient)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", desc.Name, err)
	}
	return &EVMNative{desc: desc, clients: clients}, nil
}

// ValidAddress accepts 0x-prefixed 20-byte hex addresses.
func (p *EVMNative) ValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// Query implements Protocol.
func (p *EVMNative) Query(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error) {
	client, err := p.clients.get(endpoint)
	if err != nil {
		return nil, err
	}

	wei, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance: %w", err)
	}

	slog.Debug("evm native balance fetched",
		"source", p.desc.Name,
		"chain", p.desc.Chain,
		"wei", wei.String(),
	)

	rec, ok := newRecord(p.desc.Chain, models.TokenNative, p.desc.Symbol, "", wei, p.desc.Decimals, p.desc.Name)
	if !ok {
		return nil, nil
	}
	return []models.BalanceRecord{rec}, nil
}

// Close releases the underlying clients.
func (p *EVMNative) Close() {
	p.clients.Close()
}

// ERC20 reads a configured token list with direct balanceOf calls.
type ERC20 struct {
	desc    registry.SourceDescriptor
	clients evmClients
}

// NewERC20 creates the contract-call token protocol.
func NewERC20(desc registry.SourceDescriptor, httpClient *http.Client) (*ERC20, error) {
	clients, err := dialEVM(desc.Endpoints, httpClient)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", desc.Name, err)
	}
	return &ERC20{desc: desc, clients: clients}, nil
}

// ValidAddress accepts 0x-prefixed 20-byte hex addresses.
func (p *ERC20) ValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// Query implements Protocol. Any failed call fails the whole endpoint attempt
// so that the source moves on to its next endpoint.
func (p *ERC20) Query(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error) {
	client, err := p.clients.get(endpoint)
	if err != nil {
		return nil, err
	}

	holder := common.HexToAddress(address)
	var records []models.BalanceRecord

	for _, tok := range p.desc.Tokens {
		contract := common.HexToAddress(tok.Contract)

		raw, err := callBalanceOf(ctx, client, contract, holder)
		if err != nil {
			return nil, fmt.Errorf("balanceOf %s: %w", tok.Symbol, err)
		}

		decimals := tok.DecimalsOr(config.DefaultTokenDecimals)
		if rec, ok := newRecord(p.desc.Chain, tok.Symbol, tok.Name, tok.Contract, raw, decimals, p.desc.Name); ok {
			records = append(records, rec)
		}
	}

	slog.Debug("erc20 balances fetched",
		"source", p.desc.Name,
		"tokens", len(p.desc.Tokens),
		"nonZero", len(records),
	)

	return records, nil
}

// Close releases the underlying clients.
func (p *ERC20) Close() {
	p.clients.Close()
}

// callBalanceOf executes an eth_call for ERC-20 balanceOf(address).
func callBalanceOf(ctx context.Context, client *ethclient.Client, contract, holder common.Address) (*big.Int, error) {
	// ABI encode: selector + 20-byte address left-padded to 32 bytes.
	data := make([]byte, 4+32)
	copy(data[:4], balanceOfSelector)
	copy(data[4+12:], holder.Bytes())

	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	if len(output) < 32 {
		return nil, fmt.Errorf("%w: balanceOf returned %d bytes, want 32", config.ErrMalformedResponse, len(output))
	}

	return new(big.Int).SetBytes(output[:32]), nil
}
