// Package chain reads liquidity position NFTs from the position manager
// contract over JSON-RPC.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// positionManagerABI covers the read-only subset of the Algebra
// NonfungiblePositionManager used here. Algebra positions carry no fee field.
const positionManagerABI = `[
	{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"uint256","name":"index","type":"uint256"}],"name":"tokenOfOwnerByIndex","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"positions","outputs":[
		{"internalType":"uint96","name":"nonce","type":"uint96"},
		{"internalType":"address","name":"operator","type":"address"},
		{"internalType":"address","name":"token0","type":"address"},
		{"internalType":"address","name":"token1","type":"address"},
		{"internalType":"int24","name":"tickLower","type":"int24"},
		{"internalType":"int24","name":"tickUpper","type":"int24"},
		{"internalType":"uint128","name":"liquidity","type":"uint128"},
		{"internalType":"uint256","name":"feeGrowthInside0LastX128","type":"uint256"},
		{"internalType":"uint256","name":"feeGrowthInside1LastX128","type":"uint256"},
		{"internalType":"uint128","name":"tokensOwed0","type":"uint128"},
		{"internalType":"uint128","name":"tokensOwed1","type":"uint128"}
	],"stateMutability":"view","type":"function"}
]`

// maxPositions caps how many NFTs one wallet read will enumerate.
const maxPositions = 10_000

// PositionReader enumerates the position NFTs held by a wallet.
type PositionReader struct {
	caller      ethereum.ContractCaller
	manager     common.Address
	abi         abi.ABI
	concurrency int
	closeFn     func()
}

// Dial connects to rpcURL and returns a reader for the position manager at
// managerAddr.
func Dial(ctx context.Context, rpcURL, managerAddr string, concurrency int) (*PositionReader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	r, err := NewPositionReader(client, managerAddr, concurrency)
	if err != nil {
		client.Close()
		return nil, err
	}
	r.closeFn = client.Close
	return r, nil
}

// NewPositionReader wraps an existing contract caller.
func NewPositionReader(caller ethereum.ContractCaller, managerAddr string, concurrency int) (*PositionReader, error) {
	if !common.IsHexAddress(managerAddr) {
		return nil, fmt.Errorf("chain: invalid position manager address %q", managerAddr)
	}
	parsed, err := abi.JSON(strings.NewReader(positionManagerABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &PositionReader{
		caller:      caller,
		manager:     common.HexToAddress(managerAddr),
		abi:         parsed,
		concurrency: concurrency,
	}, nil
}

// Manager returns the position manager address.
func (r *PositionReader) Manager() common.Address { return r.manager }

// Close releases the RPC connection if the reader owns one.
func (r *PositionReader) Close() {
	if r.closeFn != nil {
		r.closeFn()
	}
}

// PositionsOf returns every position NFT held by owner, in the order the
// contract enumerates them.
func (r *PositionReader) PositionsOf(ctx context.Context, owner common.Address) ([]domain.Position, error) {
	out, err := r.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: balanceOf: unexpected output %T", out[0])
	}
	if balance.Sign() < 0 || !balance.IsInt64() || balance.Int64() > maxPositions {
		return nil, fmt.Errorf("chain: balanceOf %s returned %s: %w", owner.Hex(), balance, domain.ErrUpstream)
	}
	n := int(balance.Int64())

	positions := make([]domain.Position, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			idOut, err := r.call(gctx, "tokenOfOwnerByIndex", owner, big.NewInt(int64(i)))
			if err != nil {
				return err
			}
			id, ok := idOut[0].(*big.Int)
			if !ok {
				return fmt.Errorf("chain: tokenOfOwnerByIndex: unexpected output %T", idOut[0])
			}
			p, err := r.Position(gctx, id)
			if err != nil {
				return err
			}
			p.Owner = owner
			positions[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return positions, nil
}

// Position reads a single position by token id.
func (r *PositionReader) Position(ctx context.Context, tokenID *big.Int) (domain.Position, error) {
	out, err := r.call(ctx, "positions", tokenID)
	if err != nil {
		return domain.Position{}, err
	}
	if len(out) != 11 {
		return domain.Position{}, fmt.Errorf("chain: positions: expected 11 outputs, got %d", len(out))
	}

	p := domain.Position{TokenID: new(big.Int).Set(tokenID)}
	var ok bool
	if p.Token0, ok = out[2].(common.Address); !ok {
		return domain.Position{}, fmt.Errorf("chain: positions: token0 is %T", out[2])
	}
	if p.Token1, ok = out[3].(common.Address); !ok {
		return domain.Position{}, fmt.Errorf("chain: positions: token1 is %T", out[3])
	}
	p.TickLower = int32(bigOrZero(out[4]).Int64())
	p.TickUpper = int32(bigOrZero(out[5]).Int64())
	p.Liquidity = bigOrZero(out[6])
	p.TokensOwed0 = bigOrZero(out[9])
	p.TokensOwed1 = bigOrZero(out[10])
	return p, nil
}

func (r *PositionReader) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	res, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.manager, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w: %w", method, domain.ErrUpstream, err)
	}
	out, err := r.abi.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chain: %s: empty output", method)
	}
	return out, nil
}

func bigOrZero(v any) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}
