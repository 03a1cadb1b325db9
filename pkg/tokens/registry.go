package tokens

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"wallet-swap/pkg/types"
)

//go:embed tokens.json
var defaultTokenList []byte

// Source provides remote token metadata
type Source interface {
	TokenEntries(ctx context.Context, chains ...types.Blockchain) ([]types.TokenListEntry, error)
}

type tokenListFile struct {
	Name   string                 `json:"name"`
	Tokens []types.TokenListEntry `json:"tokens"`
}

// Registry is the session token list: the embedded list merged once with an
// optional remote source. Lookups after the first load are served from memory.
type Registry struct {
	static []types.TokenListEntry
	remote Source
	logger logrus.FieldLogger

	once    sync.Once
	entries []types.TokenListEntry
	index   map[string]types.TokenListEntry
}

// NewRegistry creates a registry backed by the embedded token list. remote may be nil.
func NewRegistry(remote Source, logger logrus.FieldLogger) (*Registry, error) {
	static, err := parseTokenList(defaultTokenList)
	if err != nil {
		return nil, err
	}
	return NewRegistryWithEntries(static, remote, logger), nil
}

// NewRegistryWithEntries creates a registry over an explicit static list
func NewRegistryWithEntries(static []types.TokenListEntry, remote Source, logger logrus.FieldLogger) *Registry {
	return &Registry{
		static: static,
		remote: remote,
		logger: logger,
	}
}

func parseTokenList(data []byte) ([]types.TokenListEntry, error) {
	var list tokenListFile
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse token list: %w", err)
	}
	return list.Tokens, nil
}

func key(chain types.Blockchain, address string) string {
	if chain == types.BlockchainEthereum {
		address = strings.ToLower(address)
	}
	return string(chain) + ":" + address
}

// Load initializes the registry on first use and returns every entry.
// A failing remote source is logged and the embedded list is still served.
func (r *Registry) Load(ctx context.Context) []types.TokenListEntry {
	r.once.Do(func() {
		r.index = make(map[string]types.TokenListEntry, len(r.static))
		for _, entry := range r.static {
			r.add(entry)
		}

		if r.remote == nil {
			return
		}

		remote, err := r.remote.TokenEntries(ctx, types.BlockchainSolana, types.BlockchainEthereum)
		if err != nil {
			r.logger.WithError(err).Warn("failed to load remote token list, using embedded list")
			return
		}
		for _, entry := range remote {
			r.add(entry)
		}
		r.logger.WithField("count", len(r.entries)).Debug("token list loaded")
	})

	return r.entries
}

// add keeps the first entry seen for a (chain, address) pair
func (r *Registry) add(entry types.TokenListEntry) {
	k := key(entry.Blockchain, entry.Address)
	if _, exists := r.index[k]; exists {
		return
	}
	r.index[k] = entry
	r.entries = append(r.entries, entry)
}

// Lookup returns the entry for a token address on a chain
func (r *Registry) Lookup(ctx context.Context, chain types.Blockchain, address string) (types.TokenListEntry, bool) {
	r.Load(ctx)
	entry, ok := r.index[key(chain, address)]
	return entry, ok
}

// FindBySymbol returns the first entry with the given symbol on a chain
func (r *Registry) FindBySymbol(ctx context.Context, chain types.Blockchain, symbol string) (types.TokenListEntry, error) {
	for _, entry := range r.Load(ctx) {
		if entry.Blockchain == chain && strings.EqualFold(entry.Symbol, symbol) {
			return entry, nil
		}
	}
	return types.TokenListEntry{}, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chain)
}

// ForChain returns every entry on a chain
func (r *Registry) ForChain(ctx context.Context, chain types.Blockchain) []types.TokenListEntry {
	var out []types.TokenListEntry
	for _, entry := range r.Load(ctx) {
		if entry.Blockchain == chain {
			out = append(out, entry)
		}
	}
	return out
}

// EVMTokens returns the Ethereum entries for a chain id
func (r *Registry) EVMTokens(ctx context.Context, chainID int64) []types.TokenListEntry {
	var out []types.TokenListEntry
	for _, entry := range r.ForChain(ctx, types.BlockchainEthereum) {
		if entry.ChainID == chainID {
			out = append(out, entry)
		}
	}
	return out
}
