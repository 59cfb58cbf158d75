package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"tokenrisk/internal/analytics"
	"tokenrisk/internal/cache"
	"tokenrisk/internal/domain/token"
	"tokenrisk/pkg/errors"
)

type holderRecord struct {
	OwnerAddress string          `json:"ownerAddress"`
	TokenAmount  json.RawMessage `json:"tokenAmount"`
}

// SupplyProvider reports the on-chain supply of a mint
type SupplyProvider interface {
	TokenSupply(ctx context.Context, mint string) (token.Supply, error)
}

// HolderClient loads the holder distribution of a mint
type HolderClient struct {
	*client
	supply SupplyProvider
}

// NewHolderClient creates a holder distribution client. supply may be nil.
func NewHolderClient(cfg Config, f Fetcher, c *cache.Cache, supply SupplyProvider) *HolderClient {
	return &HolderClient{client: newClient(SourceHolders, cfg, f, c), supply: supply}
}

// Load returns up to topN holders, one per owner, largest balance first.
// When an owner appears more than once the larger balance wins.
func (c *HolderClient) Load(ctx context.Context, mint string, topN int) ([]token.HolderBalance, error) {
	return load(ctx, c.client, Key(c.source, mint, topN), func(ctx context.Context) ([]token.HolderBalance, error) {
		q := url.Values{}
		q.Set("tokenAddress", mint)
		if topN > 0 {
			q.Set("limit", fmt.Sprint(topN))
		}

		var records []holderRecord
		if err := c.fetchJSON(ctx, "/token/holders?"+q.Encode(), &records); err != nil {
			return nil, err
		}

		byOwner := make(map[string]int, len(records))
		holders := make([]token.HolderBalance, 0, len(records))
		for i, rec := range records {
			if rec.OwnerAddress == "" {
				return nil, c.invalid(fmt.Sprintf("[%d].ownerAddress", i), "missing", nil)
			}
			balance, err := c.parseAmount(fmt.Sprintf("[%d].tokenAmount", i), rec.TokenAmount)
			if err != nil {
				return nil, err
			}

			if idx, seen := byOwner[rec.OwnerAddress]; seen {
				if balance > holders[idx].Balance {
					holders[idx].Balance = balance
				}
				continue
			}
			byOwner[rec.OwnerAddress] = len(holders)
			holders = append(holders, token.HolderBalance{Owner: rec.OwnerAddress, Balance: balance})
		}

		sort.SliceStable(holders, func(i, j int) bool {
			return holders[i].Balance > holders[j].Balance
		})
		return truncate(holders, topN), nil
	})
}

// Concentration describes how a mint's supply is spread across holders
type Concentration struct {
	Holders  int          `json:"holders"`
	Gini     float64      `json:"gini"`
	TopShare float64      `json:"top_share"` // 0 when supply is unknown
	Supply   token.Supply `json:"supply"`
}

// Concentration combines the holder distribution with on-chain supply.
// Without a supply provider only the Gini coefficient is filled in.
func (c *HolderClient) Concentration(ctx context.Context, mint string, topN int) (Concentration, error) {
	holders, err := c.Load(ctx, mint, topN)
	if err != nil {
		return Concentration{}, err
	}

	result := Concentration{
		Holders: len(holders),
		Gini:    analytics.Gini(analytics.Balances(holders)),
	}
	if c.supply == nil {
		return result, nil
	}

	supply, err := c.supply.TokenSupply(ctx, mint)
	if err != nil {
		return Concentration{}, errors.Wrapf(err, "token supply for %s", mint)
	}
	result.Supply = supply
	result.TopShare = analytics.TopHolderShare(holders, len(holders), supply.Amount)
	return result, nil
}
