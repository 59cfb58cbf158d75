package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"tokenrisk/internal/cache"
	"tokenrisk/internal/domain/token"
)

type transferRecord struct {
	Signature   string          `json:"signature"`
	Err         json.RawMessage `json:"err"`
	BlockTime   *int64          `json:"blockTime"`
	TokenAmount *struct {
		Amount json.RawMessage `json:"amount"`
	} `json:"tokenAmount"`
	UserAddress string `json:"userAddress"`
	Destination string `json:"destination"`
}

func (r transferRecord) succeeded() bool {
	return len(r.Err) == 0 || string(r.Err) == "null"
}

type transfersResponse struct {
	Data []transferRecord `json:"data"`
}

// TransferClient loads token transfer history, newest first
type TransferClient struct {
	*client
}

// NewTransferClient creates a transfer history client
func NewTransferClient(cfg Config, f Fetcher, c *cache.Cache) *TransferClient {
	return &TransferClient{client: newClient(SourceTransfers, cfg, f, c)}
}

// Load returns at most limit successful transfers. Failed transactions are skipped.
func (c *TransferClient) Load(ctx context.Context, mint string, limit int) ([]token.RawTransfer, error) {
	return load(ctx, c.client, Key(c.source, mint, limit), func(ctx context.Context) ([]token.RawTransfer, error) {
		q := url.Values{}
		q.Set("account", mint)
		if limit > 0 {
			q.Set("limit", fmt.Sprint(limit))
		}

		var resp transfersResponse
		if err := c.fetchJSON(ctx, "/account/token/txs?"+q.Encode(), &resp); err != nil {
			return nil, err
		}

		transfers := make([]token.RawTransfer, 0, len(resp.Data))
		for i, rec := range resp.Data {
			if !rec.succeeded() {
				continue
			}
			if rec.TokenAmount == nil {
				return nil, c.invalid(fmt.Sprintf("data[%d].tokenAmount", i), "missing", rec.Signature)
			}
			amount, err := c.parseAmount(fmt.Sprintf("data[%d].tokenAmount.amount", i), rec.TokenAmount.Amount)
			if err != nil {
				return nil, err
			}

			var blockTime int64
			if rec.BlockTime != nil {
				blockTime = *rec.BlockTime
			}

			transfers = append(transfers, token.RawTransfer{
				Signature:   rec.Signature,
				BlockTime:   blockTime,
				Amount:      amount,
				Source:      rec.UserAddress,
				Destination: rec.Destination,
			})
		}

		return truncate(transfers, limit), nil
	})
}
