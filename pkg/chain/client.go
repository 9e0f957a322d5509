package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/raffleport/relay/pkg/logx"
)

// Config holds the chain connection and signer settings.
type Config struct {
	RPCURL          string
	ContractAddress string

	// PrivateKey is the hex-encoded signer key, with or without 0x prefix.
	PrivateKey string

	// ChainID of the target network. Zero means query it from the node.
	ChainID int64
}

// SubmitOptions tunes one transaction submission.
type SubmitOptions struct {
	// GasMargin multiplies the estimated gas limit when > 1 (e.g. 1.2 for
	// a 20% safety margin). Zero or 1 uses the raw estimate.
	GasMargin float64

	// Wait blocks until the transaction is mined and checks its receipt.
	Wait bool
}

// TxResult is the normalized outcome of a submission.
type TxResult struct {
	Hash        string
	GasUsed     uint64
	BlockNumber uint64
	Confirmed   bool
}

// Client submits contract calls through a single signer account. The
// account nonce is read from the node's pending state at submission time,
// so callers must serialize submissions; the relay worker guarantees that
// by processing one job at a time.
type Client struct {
	eth      *ethclient.Client
	contract common.Address
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
}

// Dial connects to the RPC endpoint and prepares the signer.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrBadKey, err)
	}

	parsed, err := abi.JSON(strings.NewReader(raffleABI))
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrBadABI, err)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrDial, err).WithDetail("rpc_url", cfg.RPCURL)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			return nil, chainErrors.NewWithCause(ErrRPC, err)
		}
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	logx.WithFields(logx.Fields{
		"signer":   from.Hex(),
		"contract": cfg.ContractAddress,
		"chain_id": chainID.String(),
	}).Info("chain: client ready")

	return &Client{
		eth:      eth,
		contract: common.HexToAddress(cfg.ContractAddress),
		abi:      parsed,
		key:      key,
		from:     from,
		chainID:  chainID,
	}, nil
}

// From returns the signer address.
func (c *Client) From() common.Address {
	return c.from
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Ping checks RPC liveness.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.eth.BlockNumber(ctx); err != nil {
		return chainErrors.NewWithCause(ErrRPC, err)
	}
	return nil
}

// SignerBalance returns the signer account balance in wei.
func (c *Client) SignerBalance(ctx context.Context) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, c.from, nil)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrRPC, err)
	}
	return balance, nil
}

// EstimateGas estimates the gas for one contract call.
func (c *Client) EstimateGas(ctx context.Context, method string, args ...interface{}) (uint64, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return 0, chainErrors.NewWithCause(ErrPack, err).WithDetail("method", method)
	}
	return c.estimate(ctx, data, method)
}

func (c *Client) estimate(ctx context.Context, data []byte, method string) (uint64, error) {
	est, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	})
	if err != nil {
		return 0, chainErrors.NewWithCause(ErrEstimateGas, err).WithDetail("method", method)
	}
	return est, nil
}

// Submit packs, signs and broadcasts one contract call and, when requested,
// waits for its confirmation. It never retries.
func (c *Client) Submit(ctx context.Context, method string, args []interface{}, opts SubmitOptions) (*TxResult, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrPack, err).WithDetail("method", method)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrRPC, err).WithDetail("method", method)
	}

	gasLimit, err := c.estimate(ctx, data, method)
	if err != nil {
		return nil, err
	}
	if opts.GasMargin > 1 {
		gasLimit = uint64(float64(gasLimit) * opts.GasMargin)
	}

	tx, err := c.buildTx(ctx, nonce, gasLimit, data)
	if err != nil {
		return nil, err
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrSubmit, err).WithDetail("method", method)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, chainErrors.NewWithCause(ErrSubmit, err).
			WithDetail("method", method).
			WithDetail("nonce", nonce)
	}

	result := &TxResult{Hash: signed.Hash().Hex()}
	logx.WithFields(logx.Fields{
		"method": method,
		"tx":     result.Hash,
		"nonce":  nonce,
		"gas":    gasLimit,
	}).Info("chain: transaction broadcast")

	if !opts.Wait {
		return result, nil
	}

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, chainErrors.NewWithCause(ErrConfirmationTimeout, err).WithDetail("tx", result.Hash)
		}
		return nil, chainErrors.NewWithCause(ErrRPC, err).WithDetail("tx", result.Hash)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, chainErrors.New(ErrReverted).
			WithDetail("tx", result.Hash).
			WithDetail("block", receipt.BlockNumber.Uint64())
	}

	result.GasUsed = receipt.GasUsed
	result.BlockNumber = receipt.BlockNumber.Uint64()
	result.Confirmed = true
	return result, nil
}

// buildTx prefers EIP-1559 dynamic fees, falling back to a legacy
// transaction on chains with no base fee.
func (c *Client) buildTx(ctx context.Context, nonce, gasLimit uint64, data []byte) (*types.Transaction, error) {
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrRPC, err)
	}

	if head.BaseFee == nil {
		gasPrice, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, chainErrors.NewWithCause(ErrRPC, err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &c.contract,
			Data:     data,
		}), nil
	}

	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, chainErrors.NewWithCause(ErrRPC, err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &c.contract,
		Data:      data,
	}), nil
}
