package evm

import (
	"fmt"
	"math/big"
	"strings"

	"marketplace-settlement/internal/core/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenDecimals is the ERC-20 decimals of the platform token.
const TokenDecimals = domain.AmountScale

// transferABI covers the two calls the custody signer makes:
// ERC-721 transferFrom and ERC-20 transfer.
const transferABI = `[
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable",
	 "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

var transferContract = mustParseABI(transferABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("evm: parse transfer abi: %v", err))
	}
	return parsed
}

// encodeTransfer builds the contract address and calldata for req. NFT
// transfers move the token out of the custody signer's address.
func encodeTransfer(from common.Address, req domain.TransferRequest) (common.Address, []byte, error) {
	if !common.IsHexAddress(req.Contract) {
		return common.Address{}, nil, fmt.Errorf("%w: invalid contract address %q", domain.ErrNonRetryable, req.Contract)
	}
	if !common.IsHexAddress(req.To) {
		return common.Address{}, nil, fmt.Errorf("%w: invalid recipient address %q", domain.ErrNonRetryable, req.To)
	}
	contract := common.HexToAddress(req.Contract)
	to := common.HexToAddress(req.To)

	var (
		data []byte
		err  error
	)
	switch req.Kind {
	case domain.TransferNFT:
		tokenID, ok := new(big.Int).SetString(req.TokenID, 0)
		if !ok || tokenID.Sign() < 0 {
			return common.Address{}, nil, fmt.Errorf("%w: invalid token id %q", domain.ErrNonRetryable, req.TokenID)
		}
		data, err = transferContract.Pack("transferFrom", from, to, tokenID)

	case domain.TransferToken:
		if !req.Amount.IsPositive() {
			return common.Address{}, nil, fmt.Errorf("%w: transfer amount must be positive", domain.ErrNonRetryable)
		}
		data, err = transferContract.Pack("transfer", to, toBaseUnits(req.Amount))

	default:
		return common.Address{}, nil, fmt.Errorf("%w: unknown transfer kind %q", domain.ErrNonRetryable, req.Kind)
	}
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%w: pack %s call: %v", domain.ErrNonRetryable, req.Kind, err)
	}
	return contract, data, nil
}

// toBaseUnits converts whole tokens to the contract's smallest unit, dropping
// anything below 10^-TokenDecimals.
func toBaseUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(TokenDecimals).Truncate(0).BigInt()
}
