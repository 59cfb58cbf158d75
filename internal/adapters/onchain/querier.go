// Package onchain answers token supply and signature queries against a Solana RPC node.
package onchain

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"tokenrisk/internal/adapters/ratelimit"
	"tokenrisk/internal/domain/token"
	"tokenrisk/internal/metrics"
	"tokenrisk/pkg/errors"
	"tokenrisk/pkg/logger"
)

// Source is the limiter and metrics label of RPC calls
const Source = "solana_rpc"

// DefaultSignatureLimit caps SignaturesForAddress when no limit is given
const DefaultSignatureLimit = 100

// SignatureInfo is one confirmed signature touching an address
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime int64 // unix seconds, 0 when the node does not know it
	Failed    bool
}

// MintInit is an spl-token InitializeMint instruction found in a transaction
type MintInit struct {
	Mint      string
	Creator   string // fee payer of the transaction
	Signature string
	Slot      uint64
	BlockTime int64
}

// Querier is the on-chain surface the engine depends on
type Querier interface {
	TokenSupply(ctx context.Context, mint string) (token.Supply, error)
	SignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error)
	CurrentSlot(ctx context.Context) (uint64, error)
	MintInitialization(ctx context.Context, signature string) (MintInit, bool, error)
}

// TokenProgram is the spl-token program address
var TokenProgram = solana.TokenProgramID.String()

const initializeMintLog = "Instruction: InitializeMint"

// rpcAPI is the subset of *rpc.Client used here
type rpcAPI interface {
	GetTokenSupply(ctx context.Context, tokenMint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
	GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetParsedTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetParsedTransactionOpts) (*rpc.GetParsedTransactionResult, error)
}

// RPCQuerier implements Querier over JSON-RPC
type RPCQuerier struct {
	client   rpcAPI
	limiters *ratelimit.Registry
	timeout  time.Duration
	log      *logger.Logger
}

var _ Querier = (*RPCQuerier)(nil)

// NewRPCQuerier creates a querier for endpoint. limiters may be nil.
func NewRPCQuerier(endpoint string, limiters *ratelimit.Registry, timeout time.Duration) *RPCQuerier {
	return newRPCQuerier(rpc.New(endpoint), limiters, timeout)
}

func newRPCQuerier(client rpcAPI, limiters *ratelimit.Registry, timeout time.Duration) *RPCQuerier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RPCQuerier{
		client:   client,
		limiters: limiters,
		timeout:  timeout,
		log:      logger.Get().With("component", "onchain_querier"),
	}
}

// ParsePublicKey validates a base58 address
func ParsePublicKey(field, address string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, errors.NewValidationError(field, "not a base58 public key", address)
	}
	return pk, nil
}

// TokenSupply returns the confirmed supply of mint. Amount stays in base
// units like the holder balances reported by the indexer; UIAmount has the
// decimals applied.
func (q *RPCQuerier) TokenSupply(ctx context.Context, mint string) (token.Supply, error) {
	pk, err := ParsePublicKey("mint", mint)
	if err != nil {
		return token.Supply{}, err
	}

	var res *rpc.GetTokenSupplyResult
	err = q.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = q.client.GetTokenSupply(ctx, pk, rpc.CommitmentConfirmed)
		return err
	})
	if err != nil {
		return token.Supply{}, err
	}
	if res == nil || res.Value == nil {
		return token.Supply{}, errors.NewDecodeError(Source, errors.New("empty token supply result"))
	}

	raw, err := decimal.NewFromString(res.Value.Amount)
	if err != nil {
		return token.Supply{}, errors.NewDecodeError(Source, err)
	}
	return token.Supply{
		Amount:   raw.InexactFloat64(),
		UIAmount: raw.Shift(-int32(res.Value.Decimals)).InexactFloat64(),
		Decimals: res.Value.Decimals,
	}, nil
}

// SignaturesForAddress returns up to limit signatures, newest first
func (q *RPCQuerier) SignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	pk, err := ParsePublicKey("address", address)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSignatureLimit
	}

	var sigs []*rpc.TransactionSignature
	err = q.call(ctx, func(ctx context.Context) error {
		var err error
		sigs, err = q.client.GetSignaturesForAddressWithOpts(ctx, pk, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]SignatureInfo, 0, len(sigs))
	for _, s := range sigs {
		if s == nil {
			continue
		}
		info := SignatureInfo{
			Signature: s.Signature.String(),
			Slot:      s.Slot,
			Failed:    s.Err != nil,
		}
		if s.BlockTime != nil {
			info.BlockTime = int64(*s.BlockTime)
		}
		out = append(out, info)
	}
	return out, nil
}

// CurrentSlot returns the latest confirmed slot
func (q *RPCQuerier) CurrentSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := q.call(ctx, func(ctx context.Context) error {
		var err error
		slot, err = q.client.GetSlot(ctx, rpc.CommitmentConfirmed)
		return err
	})
	return slot, err
}

// MintInitialization looks up a transaction and reports the mint it
// initializes. ok is false for transactions that create no mint, including
// ones the node no longer has.
func (q *RPCQuerier) MintInitialization(ctx context.Context, signature string) (MintInit, bool, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return MintInit{}, false, errors.NewValidationError("signature", "not a base58 signature", signature)
	}

	maxVersion := uint64(0)
	var tx *rpc.GetParsedTransactionResult
	err = q.call(ctx, func(ctx context.Context) error {
		var err error
		tx, err = q.client.GetParsedTransaction(ctx, sig, &rpc.GetParsedTransactionOpts{
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			tx, err = nil, nil
		}
		return err
	})
	if err != nil {
		return MintInit{}, false, err
	}
	if tx == nil || tx.Meta == nil || tx.Transaction == nil || !hasLog(tx.Meta.LogMessages, initializeMintLog) {
		return MintInit{}, false, nil
	}

	msg := tx.Transaction.Message
	for _, ix := range msg.Instructions {
		mint, ok := initializedMint(ix)
		if !ok {
			continue
		}
		found := MintInit{Mint: mint, Signature: signature, Slot: tx.Slot}
		if len(msg.AccountKeys) > 0 {
			found.Creator = msg.AccountKeys[0].PublicKey.String()
		}
		if tx.BlockTime != nil {
			found.BlockTime = int64(*tx.BlockTime)
		}
		return found, true, nil
	}
	return MintInit{}, false, nil
}

func hasLog(logs []string, needle string) bool {
	for _, l := range logs {
		if strings.Contains(l, needle) {
			return true
		}
	}
	return false
}

// initializedMint extracts info.mint from a parsed initializeMint instruction.
// The parsed envelope keeps its fields private, so it is read back through JSON.
func initializedMint(ix *rpc.ParsedInstruction) (string, bool) {
	if ix == nil || ix.Program != "spl-token" || ix.Parsed == nil {
		return "", false
	}
	raw, err := json.Marshal(ix.Parsed)
	if err != nil {
		return "", false
	}
	var info rpc.InstructionInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", false
	}
	if !strings.HasPrefix(info.InstructionType, "initializeMint") {
		return "", false
	}
	mint, _ := info.Info["mint"].(string)
	return mint, mint != ""
}

// call throttles, bounds and measures one RPC round trip
func (q *RPCQuerier) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := q.limiters.Wait(ctx, Source); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = errors.NewTimeoutError(Source, errors.Join(errors.ErrTimeout, err))
		} else {
			err = errors.NewNetworkError(Source, err)
		}
		q.log.Debugw("RPC call failed", "error", err)
	}
	metrics.RecordFetchAttempt(Source, outcome(err), time.Since(start))
	return err
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(errors.KindOf(err))
}
