package rpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Precomputed function selectors
var (
	selSymbol   = hexutil.MustDecode("0x95d89b41")
	selDecimals = hexutil.MustDecode("0x313ce567")
)

var stringArgs = func() abi.Arguments {
	t, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

// ContractCaller is the subset of ethclient used for metadata reads.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC20Client reads ERC-20 metadata through eth_call at the latest block.
type ERC20Client struct {
	caller ContractCaller
	close  func()
}

// NewERC20Client wraps an existing caller.
func NewERC20Client(caller ContractCaller) *ERC20Client {
	return &ERC20Client{caller: caller, close: func() {}}
}

// DialERC20 connects to the first healthy endpoint of o.Endpoints over JSON-RPC.
func DialERC20(ctx context.Context, o Opts) (*ERC20Client, error) {
	httpClient, err := NewHTTPWithOpts(o)
	if err != nil {
		return nil, err
	}

	// The URL only seeds go-ethereum; the failover transport picks the endpoint per request.
	rc, err := gethrpc.DialOptions(ctx, o.Endpoints[0], gethrpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	return &ERC20Client{caller: ethclient.NewClient(rc), close: rc.Close}, nil
}

// Close releases the underlying RPC client.
func (c *ERC20Client) Close() {
	c.close()
}

func (c *ERC20Client) call(ctx context.Context, token string, selector []byte) ([]byte, error) {
	to := common.HexToAddress(token)
	return c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: selector}, nil)
}

// Symbol returns symbol(), accepting both the standard string and the legacy bytes32 encoding.
func (c *ERC20Client) Symbol(ctx context.Context, token string) (string, error) {
	out, err := c.call(ctx, token, selSymbol)
	if err != nil {
		return "", fmt.Errorf("call symbol() on %s: %w", token, err)
	}
	return parseStringOutput(out)
}

// Decimals returns decimals().
func (c *ERC20Client) Decimals(ctx context.Context, token string) (uint8, error) {
	out, err := c.call(ctx, token, selDecimals)
	if err != nil {
		return 0, fmt.Errorf("call decimals() on %s: %w", token, err)
	}
	return parseUint8(out)
}

// parseStringOutput decodes an ABI string, falling back to a bytes32 string.
func parseStringOutput(data []byte) (string, error) {
	if len(data) >= 64 {
		if vals, err := stringArgs.Unpack(data); err == nil && len(vals) == 1 {
			if s, ok := vals[0].(string); ok && s != "" {
				return cleanString(s), nil
			}
		}
	}
	if len(data) < 32 {
		return "", fmt.Errorf("short string output (%d bytes)", len(data))
	}
	return cleanString(string(data[:32])), nil
}

func cleanString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// parseUint8 decodes a uint256 word that must fit in a uint8.
func parseUint8(data []byte) (uint8, error) {
	if len(data) < 32 {
		return 0, fmt.Errorf("short uint output (%d bytes)", len(data))
	}
	n := new(big.Int).SetBytes(data[:32])
	if !n.IsUint64() || n.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of range: %s", n)
	}
	return uint8(n.Uint64()), nil
}
