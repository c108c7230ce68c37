package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrNoSigner is returned by SubmitTransfer when the client was built without
// a custody key.
var ErrNoSigner = fmt.Errorf("%w: no signer key configured", domain.ErrNonRetryable)

// Client implements ports.ChainClient over an EVM JSON-RPC endpoint.
type Client struct {
	name     string
	eth      *ethclient.Client
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
	gasLimit uint64
	limiter  *rate.Limiter
	cache    ports.ChainCache
	log      zerolog.Logger

	// serializes nonce allocation for the custody signer; signerLock extends
	// that across processes sharing the key
	sendMu     sync.Mutex
	signerLock ports.SignerLock
	lockTTL    time.Duration
}

// Dial connects to rpcURL. name identifies the endpoint in logs and cache keys.
// cache may be nil.
func Dial(ctx context.Context, name, rpcURL string, cfg config.ChainConfig, cache ports.ChainCache, log zerolog.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("dial %s chain: empty rpc url", name)
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s chain: %w", name, err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPCRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPCRateLimit), max(cfg.RPCBurst, 1))
	}

	c := &Client{
		name:     name,
		eth:      eth,
		chainID:  big.NewInt(cfg.ChainID),
		gasLimit: cfg.GasLimit,
		limiter:  limiter,
		cache:    cache,
		log:      logger.Component(log, "chain").With().Str("endpoint", name).Logger(),
		lockTTL:  cfg.SignerLockTTL,
	}
	if c.lockTTL <= 0 {
		c.lockTTL = 30 * time.Second
	}

	if cfg.SignerKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerKey, "0x"))
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("parse signer key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// Name returns the endpoint name.
func (c *Client) Name() string {
	return c.name
}

// From returns the custody signer address; zero when the client is read-only.
func (c *Client) From() common.Address {
	return c.from
}

// UseSignerLock makes SubmitTransfer hold lock while it allocates a nonce and
// broadcasts. Clients for different endpoints sharing a key should share it.
func (c *Client) UseSignerLock(lock ports.SignerLock) {
	c.signerLock = lock
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// SubmitTransfer signs and broadcasts req from the custody signer and returns
// the transaction hash. It does not wait for inclusion.
func (c *Client) SubmitTransfer(ctx context.Context, req domain.TransferRequest) (string, error) {
	if c.key == nil {
		return "", ErrNoSigner
	}

	to, data, err := encodeTransfer(c.from, req)
	if err != nil {
		return "", err
	}

	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return "", err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.signerLock != nil {
		signer := c.from.Hex()
		token, err := c.signerLock.Lock(ctx, signer, c.lockTTL)
		if err != nil {
			return "", fmt.Errorf("%s: signer lock: %w", c.name, err)
		}
		defer func() {
			if err := c.signerLock.Unlock(context.WithoutCancel(ctx), signer, token); err != nil {
				c.log.Warn().Err(err).Str("signer", signer).Msg("signer lock release failed")
			}
		}()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("%s: pending nonce: %w", c.name, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      c.gasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("%w: sign tx: %w", domain.ErrInvalidSignature, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("%s: send tx: %w", c.name, classify(err))
	}

	hash := signed.Hash().Hex()
	c.log.Info().
		Str("tx_hash", hash).
		Str("kind", string(req.Kind)).
		Str("contract", to.Hex()).
		Uint64("nonce", nonce).
		Msg("transfer submitted")
	return hash, nil
}

// GetReceipt returns nil, nil while the transaction is unknown or pending.
func (c *Client) GetReceipt(ctx context.Context, txHash string) (*domain.Receipt, error) {
	if !isHexHash(txHash) {
		return nil, fmt.Errorf("%w: malformed tx hash %q", domain.ErrNonRetryable, txHash)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	r, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: receipt: %w", c.name, err)
	}

	receipt := &domain.Receipt{
		TxHash:  txHash,
		Success: r.Status == types.ReceiptStatusSuccessful,
	}
	if r.BlockNumber != nil {
		receipt.BlockNumber = r.BlockNumber.Uint64()
	}
	return receipt, nil
}

// GetCurrentBlockNumber returns the head block, served from cache when fresh.
func (c *Client) GetCurrentBlockNumber(ctx context.Context) (uint64, error) {
	if c.cache != nil {
		n, ok, err := c.cache.GetBlockNumber(ctx, c.name)
		if err != nil {
			c.log.Warn().Err(err).Msg("block number cache read failed")
		} else if ok {
			return n, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: block number: %w", c.name, err)
	}

	if c.cache != nil {
		if err := c.cache.SetBlockNumber(ctx, c.name, n); err != nil {
			c.log.Warn().Err(err).Msg("block number cache write failed")
		}
	}
	return n, nil
}

// IsConnected reports whether the node answers within a short deadline.
func (c *Client) IsConnected(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

// Ping implements ports.HealthChecker. It bypasses the cache.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.eth.BlockNumber(ctx)
	return err
}

func (c *Client) gasPrice(ctx context.Context) (*big.Int, error) {
	if c.cache != nil {
		price, ok, err := c.cache.GetGasPrice(ctx, c.name)
		if err != nil {
			c.log.Warn().Err(err).Msg("gas price cache read failed")
		} else if ok {
			return price, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: gas price: %w", c.name, err)
	}

	if c.cache != nil {
		if err := c.cache.SetGasPrice(ctx, c.name, price); err != nil {
			c.log.Warn().Err(err).Msg("gas price cache write failed")
		}
	}
	return price, nil
}

func isHexHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}
