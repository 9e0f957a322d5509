package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// raffleABI covers the mutating entry points the relay submits and the
// read-only views the HTTP layer proxies.
const raffleABI = `[
  {"type":"function","name":"createRaffle","stateMutability":"nonpayable","inputs":[
    {"name":"referenceId","type":"uint256"},
    {"name":"templateId","type":"uint256"},
    {"name":"ticketPrice","type":"uint256"},
    {"name":"maxTickets","type":"uint32"},
    {"name":"minTickets","type":"uint32"},
    {"name":"duration","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"executeRaffle","stateMutability":"nonpayable","inputs":[{"name":"raffleId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelRaffle","stateMutability":"nonpayable","inputs":[{"name":"raffleId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"executeRefund","stateMutability":"nonpayable","inputs":[{"name":"raffleId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"pause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"unpause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"addToBlocklist","stateMutability":"nonpayable","inputs":[
    {"name":"account","type":"address"},{"name":"reason","type":"string"}],"outputs":[]},
  {"type":"function","name":"removeFromBlocklist","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
  {"type":"function","name":"batchAddToBlocklist","stateMutability":"nonpayable","inputs":[
    {"name":"accounts","type":"address[]"},{"name":"reasons","type":"string[]"}],"outputs":[]},
  {"type":"function","name":"withdrawFees","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"archiveRaffles","stateMutability":"nonpayable","inputs":[{"name":"raffleIds","type":"uint256[]"}],"outputs":[]},
  {"type":"function","name":"getRaffleStatus","stateMutability":"view","inputs":[{"name":"raffleId","type":"uint256"}],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"accumulatedFees","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isBlocklisted","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

// RaffleState names the contract's raffle status enum.
var raffleStates = map[uint8]string{
	0: "open",
	1: "executed",
	2: "cancelled",
	3: "refunded",
	4: "archived",
}

func (c *Client) view(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrPack, err).WithDetail("method", method)
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrCall, err).WithDetail("method", method)
	}

	results, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrCall, err).WithDetail("method", method)
	}
	return results, nil
}

// RaffleStatus returns the named state of a raffle.
func (c *Client) RaffleStatus(ctx context.Context, raffleID *big.Int) (string, error) {
	out, err := c.view(ctx, "getRaffleStatus", raffleID)
	if err != nil {
		return "", err
	}

	code, ok := out[0].(uint8)
	if !ok {
		return "", chainErrors.New(ErrCall).WithDetail("reason", "unexpected status type")
	}
	if name, ok := raffleStates[code]; ok {
		return name, nil
	}
	return "unknown", nil
}

// Paused returns the contract's pause state.
func (c *Client) Paused(ctx context.Context) (bool, error) {
	out, err := c.view(ctx, "paused")
	if err != nil {
		return false, err
	}
	paused, _ := out[0].(bool)
	return paused, nil
}

// AccumulatedFees returns the withdrawable fee balance in token units.
func (c *Client) AccumulatedFees(ctx context.Context) (*big.Int, error) {
	out, err := c.view(ctx, "accumulatedFees")
	if err != nil {
		return nil, err
	}
	fees, ok := out[0].(*big.Int)
	if !ok {
		return nil, chainErrors.New(ErrCall).WithDetail("reason", "unexpected fees type")
	}
	return fees, nil
}

// IsBlocklisted reports whether an address is on the contract blocklist.
func (c *Client) IsBlocklisted(ctx context.Context, account common.Address) (bool, error) {
	out, err := c.view(ctx, "isBlocklisted", account)
	if err != nil {
		return false, err
	}
	blocked, _ := out[0].(bool)
	return blocked, nil
}
