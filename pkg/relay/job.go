package relay

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/raffleport/relay/pkg/errx"
)

// JobType discriminates the closed set of transaction intents.
type JobType string

const (
	JobCreateRaffle    JobType = "create_raffle"
	JobExecuteRaffle   JobType = "execute_raffle"
	JobCancelRaffle    JobType = "cancel_raffle"
	JobExecuteRefund   JobType = "execute_refund"
	JobPause           JobType = "pause"
	JobUnpause         JobType = "unpause"
	JobBlocklistAdd    JobType = "blocklist_add"
	JobBlocklistRemove JobType = "blocklist_remove"
	JobBlocklistBatch  JobType = "blocklist_batch"
	JobWithdrawFees    JobType = "withdraw_fees"
	JobArchiveRaffles  JobType = "archive_raffles"
)

// AllJobTypes lists every variant, in dispatch order.
var AllJobTypes = []JobType{
	JobCreateRaffle,
	JobExecuteRaffle,
	JobCancelRaffle,
	JobExecuteRefund,
	JobPause,
	JobUnpause,
	JobBlocklistAdd,
	JobBlocklistRemove,
	JobBlocklistBatch,
	JobWithdrawFees,
	JobArchiveRaffles,
}

// Known reports whether t is a member of the closed set.
func (t JobType) Known() bool {
	for _, known := range AllJobTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

// CreateRafflePayload carries the parameters of a new raffle.
type CreateRafflePayload struct {
	ReferenceID     string `json:"referenceId"`
	TemplateID      string `json:"templateId"`
	TicketPrice     string `json:"ticketPrice"`
	MaxTickets      uint32 `json:"maxTickets"`
	MinTickets      uint32 `json:"minTickets"`
	DurationSeconds uint64 `json:"durationSeconds"`
}

// Validate checks the payload against the boundary rules. The token
// decimal count bounds how many fractional digits the price may carry.
func (p CreateRafflePayload) Validate(tokenDecimals int32) error {
	if !isNumericID(p.ReferenceID) {
		return relayErrors.NewWithMessage(ErrValidation, "referenceId must be a non-empty numeric string")
	}
	if !isNumericID(p.TemplateID) {
		return relayErrors.NewWithMessage(ErrValidation, "templateId must be a non-empty numeric string")
	}

	price, err := decimal.NewFromString(p.TicketPrice)
	if err != nil {
		return relayErrors.NewWithMessage(ErrValidation, "ticketPrice must be a decimal string").WithDetail("ticketPrice", p.TicketPrice)
	}
	if !price.IsPositive() {
		return relayErrors.NewWithMessage(ErrValidation, "ticketPrice must be positive")
	}
	if price.Exponent() < -tokenDecimals {
		return relayErrors.NewWithMessage(ErrValidation, "ticketPrice has more fractional digits than the token supports").
			WithDetail("token_decimals", tokenDecimals)
	}

	if p.MinTickets == 0 {
		return relayErrors.NewWithMessage(ErrValidation, "minTickets must be at least 1")
	}
	if p.MaxTickets < p.MinTickets {
		return relayErrors.NewWithMessage(ErrValidation, "maxTickets must be >= minTickets")
	}
	if p.DurationSeconds == 0 {
		return relayErrors.NewWithMessage(ErrValidation, "durationSeconds must be positive")
	}
	return nil
}

// RafflePayload addresses one existing raffle; shared by the execute,
// cancel and refund intents.
type RafflePayload struct {
	RaffleID string `json:"raffleId"`
}

func (p RafflePayload) Validate() error {
	if !isNumericID(p.RaffleID) {
		return relayErrors.NewWithMessage(ErrValidation, "raffleId must be a non-empty numeric string")
	}
	return nil
}

// BlocklistAddPayload blocks one address with an audit reason.
type BlocklistAddPayload struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

func (p BlocklistAddPayload) Validate() error {
	if !common.IsHexAddress(p.Address) {
		return relayErrors.NewWithMessage(ErrValidation, "address must be a valid hex address").WithDetail("address", p.Address)
	}
	if p.Reason == "" {
		return relayErrors.NewWithMessage(ErrValidation, "reason is required")
	}
	return nil
}

// BlocklistRemovePayload unblocks one address.
type BlocklistRemovePayload struct {
	Address string `json:"address"`
}

func (p BlocklistRemovePayload) Validate() error {
	if !common.IsHexAddress(p.Address) {
		return relayErrors.NewWithMessage(ErrValidation, "address must be a valid hex address").WithDetail("address", p.Address)
	}
	return nil
}

// BlocklistBatchPayload blocks many addresses in one transaction.
type BlocklistBatchPayload struct {
	Entries []BlocklistAddPayload `json:"entries"`
}

func (p BlocklistBatchPayload) Validate() error {
	if len(p.Entries) == 0 {
		return relayErrors.NewWithMessage(ErrValidation, "entries must not be empty")
	}
	for i, entry := range p.Entries {
		if err := entry.Validate(); err != nil {
			var e *errx.Error
			if errx.As(err, &e) {
				return e.WithDetail("index", i)
			}
			return err
		}
	}
	return nil
}

// ArchiveRafflesPayload archives a list of finished raffles.
type ArchiveRafflesPayload struct {
	RaffleIDs []string `json:"raffleIds"`
}

func (p ArchiveRafflesPayload) Validate() error {
	if len(p.RaffleIDs) == 0 {
		return relayErrors.NewWithMessage(ErrValidation, "raffleIds must not be empty")
	}
	for _, id := range p.RaffleIDs {
		if !isNumericID(id) {
			return relayErrors.NewWithMessage(ErrValidation, "raffleIds must be non-empty numeric strings").WithDetail("raffleId", id)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func isNumericID(s string) bool {
	if s == "" {
		return false
	}
	_, ok := new(big.Int).SetString(s, 10)
	return ok
}

// decodePayload unmarshals raw into dst with a validation-typed error on
// malformed JSON.
func decodePayload(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return relayErrors.NewWithCause(ErrValidation, err)
	}
	return nil
}
