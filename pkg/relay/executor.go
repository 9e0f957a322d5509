package relay

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/raffleport/relay/pkg/chain"
	"github.com/raffleport/relay/pkg/errx"
)

// Submitter is the single path through which chain-mutating calls leave
// the process. chain.Client implements it; tests use a double.
type Submitter interface {
	Submit(ctx context.Context, method string, args []interface{}, opts chain.SubmitOptions) (*chain.TxResult, error)
}

// Result is the normalized outcome returned for a processed job: the
// transaction hash plus job-specific echo fields for correlation.
type Result struct {
	TxHash      string `json:"txHash"`
	Confirmed   bool   `json:"confirmed"`
	ReferenceID string `json:"referenceId,omitempty"`
	RaffleID    string `json:"raffleId,omitempty"`
	Address     string `json:"address,omitempty"`
	Count       int    `json:"count,omitempty"`
}

// ExecutorConfig tunes executor conversions and policies.
type ExecutorConfig struct {
	// TokenDecimals scales decimal ticket prices to fixed-point units.
	TokenDecimals int32

	// GasMargin is applied to gas estimates of calls with unpredictable
	// cost (raffle execution). 1.2 means a 20% safety margin.
	GasMargin float64

	// NoConfirmationWait lists job types that may return after broadcast
	// without waiting for the receipt. Security-sensitive types (pause,
	// unpause, blocklist, withdraw) always wait regardless.
	NoConfirmationWait []JobType
}

// Executor maps one job to exactly one chain call. It performs no business
// validation (the boundary did) and never retries; failures surface as
// typed errors for the worker's hand-off policy.
type Executor struct {
	submitter Submitter
	decimals  int32
	gasMargin float64
	skipWait  map[JobType]bool
}

// NewExecutor creates an executor over the given submitter.
func NewExecutor(submitter Submitter, cfg ExecutorConfig) *Executor {
	if cfg.GasMargin <= 1 {
		cfg.GasMargin = 1.2
	}
	skipWait := make(map[JobType]bool, len(cfg.NoConfirmationWait))
	for _, t := range cfg.NoConfirmationWait {
		skipWait[t] = true
	}
	return &Executor{
		submitter: submitter,
		decimals:  cfg.TokenDecimals,
		gasMargin: cfg.GasMargin,
		skipWait:  skipWait,
	}
}

// securitySensitive job types always wait for on-chain confirmation no
// matter how the wait policy is configured.
var securitySensitive = map[JobType]bool{
	JobPause:           true,
	JobUnpause:         true,
	JobBlocklistAdd:    true,
	JobBlocklistRemove: true,
	JobBlocklistBatch:  true,
	JobWithdrawFees:    true,
}

func (e *Executor) waitFor(t JobType) bool {
	if securitySensitive[t] {
		return true
	}
	return !e.skipWait[t]
}

// Execute dispatches one job to its chain call. Exactly one submission
// attempt is made per invocation.
func (e *Executor) Execute(ctx context.Context, jobType JobType, payload json.RawMessage) (*Result, error) {
	switch jobType {
	case JobCreateRaffle:
		return e.createRaffle(ctx, payload)
	case JobExecuteRaffle:
		return e.raffleCall(ctx, payload, "executeRaffle", e.gasMargin)
	case JobCancelRaffle:
		return e.raffleCall(ctx, payload, "cancelRaffle", 0)
	case JobExecuteRefund:
		return e.raffleCall(ctx, payload, "executeRefund", 0)
	case JobPause:
		return e.plainCall(ctx, JobPause, "pause")
	case JobUnpause:
		return e.plainCall(ctx, JobUnpause, "unpause")
	case JobBlocklistAdd:
		return e.blocklistAdd(ctx, payload)
	case JobBlocklistRemove:
		return e.blocklistRemove(ctx, payload)
	case JobBlocklistBatch:
		return e.blocklistBatch(ctx, payload)
	case JobWithdrawFees:
		return e.plainCall(ctx, JobWithdrawFees, "withdrawFees")
	case JobArchiveRaffles:
		return e.archiveRaffles(ctx, payload)
	default:
		return nil, relayErrors.New(ErrUnknownJobType).WithDetail("type", string(jobType))
	}
}

func (e *Executor) createRaffle(ctx context.Context, payload json.RawMessage) (*Result, error) {
	var p CreateRafflePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	price, err := e.scalePrice(p.TicketPrice)
	if err != nil {
		return nil, err
	}

	args := []interface{}{
		mustBigInt(p.ReferenceID),
		mustBigInt(p.TemplateID),
		price,
		p.MaxTickets,
		p.MinTickets,
		p.DurationSeconds,
	}

	res, err := e.submit(ctx, "createRaffle", args, 0, e.waitFor(JobCreateRaffle))
	if err != nil {
		return nil, err
	}
	res.ReferenceID = p.ReferenceID
	return res, nil
}

func (e *Executor) raffleCall(ctx context.Context, payload json.RawMessage, method string, gasMargin float64) (*Result, error) {
	var p RafflePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	jobType := methodJobType(method)
	res, err := e.submit(ctx, method, []interface{}{mustBigInt(p.RaffleID)}, gasMargin, e.waitFor(jobType))
	if err != nil {
		return nil, err
	}
	res.RaffleID = p.RaffleID
	return res, nil
}

func (e *Executor) plainCall(ctx context.Context, jobType JobType, method string) (*Result, error) {
	return e.submit(ctx, method, nil, 0, e.waitFor(jobType))
}

func (e *Executor) blocklistAdd(ctx context.Context, payload json.RawMessage) (*Result, error) {
	var p BlocklistAddPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	args := []interface{}{common.HexToAddress(p.Address), p.Reason}
	res, err := e.submit(ctx, "addToBlocklist", args, 0, e.waitFor(JobBlocklistAdd))
	if err != nil {
		return nil, err
	}
	res.Address = p.Address
	return res, nil
}

func (e *Executor) blocklistRemove(ctx context.Context, payload json.RawMessage) (*Result, error) {
	var p BlocklistRemovePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	res, err := e.submit(ctx, "removeFromBlocklist", []interface{}{common.HexToAddress(p.Address)}, 0, e.waitFor(JobBlocklistRemove))
	if err != nil {
		return nil, err
	}
	res.Address = p.Address
	return res, nil
}

func (e *Executor) blocklistBatch(ctx context.Context, payload json.RawMessage) (*Result, error) {
	var p BlocklistBatchPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	accounts := make([]common.Address, len(p.Entries))
	reasons := make([]string, len(p.Entries))
	for i, entry := range p.Entries {
		accounts[i] = common.HexToAddress(entry.Address)
		reasons[i] = entry.Reason
	}

	res, err := e.submit(ctx, "batchAddToBlocklist", []interface{}{accounts, reasons}, 0, e.waitFor(JobBlocklistBatch))
	if err != nil {
		return nil, err
	}
	res.Count = len(p.Entries)
	return res, nil
}

func (e *Executor) archiveRaffles(ctx context.Context, payload json.RawMessage) (*Result, error) {
	var p ArchiveRafflesPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	ids := make([]*big.Int, len(p.RaffleIDs))
	for i, id := range p.RaffleIDs {
		ids[i] = mustBigInt(id)
	}

	res, err := e.submit(ctx, "archiveRaffles", []interface{}{ids}, 0, e.waitFor(JobArchiveRaffles))
	if err != nil {
		return nil, err
	}
	res.Count = len(p.RaffleIDs)
	return res, nil
}

func (e *Executor) submit(ctx context.Context, method string, args []interface{}, gasMargin float64, wait bool) (*Result, error) {
	tx, err := e.submitter.Submit(ctx, method, args, chain.SubmitOptions{
		GasMargin: gasMargin,
		Wait:      wait,
	})
	if err != nil {
		if isConfirmationTimeout(err) {
			return nil, err
		}
		return nil, relayErrors.NewWithCause(ErrSubmission, err).WithDetail("method", method)
	}

	return &Result{TxHash: tx.Hash, Confirmed: tx.Confirmed}, nil
}

// isConfirmationTimeout reports whether err carries the chain client's
// confirmation-timeout code. Such a transaction was broadcast and may still
// be mined, so it is never safe to re-submit.
func isConfirmationTimeout(err error) bool {
	var coded *errx.Error
	return errx.As(err, &coded) && coded.Code == chain.ErrConfirmationTimeout.Code
}

// scalePrice converts a decimal token amount into fixed-point units.
func (e *Executor) scalePrice(price string) (*big.Int, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, relayErrors.NewWithCause(ErrValidation, err).WithDetail("ticketPrice", price)
	}
	return d.Shift(e.decimals).BigInt(), nil
}

// mustBigInt converts a boundary-validated numeric id. Malformed input
// yields zero rather than a panic; validation upstream makes that
// unreachable in practice.
func mustBigInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

func methodJobType(method string) JobType {
	switch method {
	case "executeRaffle":
		return JobExecuteRaffle
	case "cancelRaffle":
		return JobCancelRaffle
	case "executeRefund":
		return JobExecuteRefund
	default:
		return JobType(method)
	}
}
