package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"checkout-service/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const transferGasLimit = 21000

// EthProvider implements Provider against an EVM JSON-RPC endpoint using a
// locally held signing key.
type EthProvider struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	chainName  string
}

// NewEthProvider dials the RPC endpoint and derives the signer address from
// a hex-encoded private key (with or without "0x" prefix).
func NewEthProvider(ctx context.Context, rpcURL, privateKeyHex, chainName string) (*EthProvider, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth rpc: %w", err)
	}

	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chain id: %w", err)
	}

	return &EthProvider{
		client:     client,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    chainID,
		chainName:  chainName,
	}, nil
}

// Connect reports the signer's address, chain and current balance.
func (p *EthProvider) Connect(ctx context.Context, kind ProviderKind) (models.WalletConnection, error) {
	balance, err := p.client.BalanceAt(ctx, p.address, nil)
	if err != nil {
		return models.WalletConnection{}, NewWalletError(ConnectionDenied, err.Error())
	}

	return models.WalletConnection{
		Address:   p.address.Hex(),
		ChainID:   p.chainID.Int64(),
		ChainName: p.chainName,
		Balance:   balance.String(),
	}, nil
}

// SignAndSend builds, signs and broadcasts a native transfer and returns the
// transaction hash.
func (p *EthProvider) SignAndSend(ctx context.Context, req models.TxRequest) (string, error) {
	if !common.IsHexAddress(req.Recipient) {
		return "", fmt.Errorf("invalid recipient address %q", req.Recipient)
	}
	to := common.HexToAddress(req.Recipient)

	nonce, err := p.client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return "", fmt.Errorf("query nonce: %w", err)
	}

	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    tokenToWei(req.TokenAmount),
		Gas:      transferGasLimit,
		GasPrice: gasPrice,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("broadcast transaction: %w", err)
	}

	return signed.Hash().Hex(), nil
}

// TransactionStatus maps the receipt state onto the provider contract.
// A missing receipt means the transaction is still pending.
func (p *EthProvider) TransactionStatus(ctx context.Context, txID string) (TxState, error) {
	receipt, err := p.client.TransactionReceipt(ctx, common.HexToHash(txID))
	if errors.Is(err, ethereum.NotFound) {
		return TxPending, nil
	}
	if err != nil {
		return TxPending, err
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		return TxConfirmed, nil
	}
	return TxRejected, nil
}

// tokenToWei converts a display-precision token amount to wei.
func tokenToWei(amount float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(1e18))
	wei, _ := f.Int(nil)
	return wei
}
