// Package ledgercli inspects token ledgers and account history from a terminal.
package ledgercli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/canopy-network/tokenscope/pkg/db/chain"
	"github.com/canopy-network/tokenscope/pkg/history"
	"github.com/canopy-network/tokenscope/pkg/ledger"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/urfave/cli/v3"
)

// HolderLister is satisfied by *ledger.Service.
type HolderLister interface {
	ListHolders(ctx context.Context, q ledger.HolderQuery) (ledger.HolderPage, error)
}

// ActivityLister is satisfied by *history.Service.
type ActivityLister interface {
	ListAccountTransactions(ctx context.Context, q history.Query) (history.Page, error)
}

// Command returns the tokenscope-ledger root command writing to out.
func Command(holders HolderLister, activity ActivityLister, out io.Writer) *cli.Command {
	return &cli.Command{
		EnableShellCompletion: true,
		Name:                  "tokenscope-ledger",
		Description:           "Inspect token holder ledgers and account activity straight from the index.",
		Usage:                 "tokenscope-ledger [command] [flags]",
		Writer:                out,
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "chain",
				Usage: "Chain id",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print raw JSON instead of a table",
			},
		},
		Commands: []*cli.Command{
			holdersCommand(holders, out),
			activityCommand(activity, out),
		},
	}
}

// Run parses args and executes the matching command.
func Run(ctx context.Context, holders HolderLister, activity ActivityLister, out io.Writer, args []string) error {
	return Command(holders, activity, out).Run(ctx, args)
}

// holdersCommand prints one page of a token's holders.
//
//	tokenscope-ledger --chain 1 holders --token 0xa0b8... --limit 20
func holdersCommand(svc HolderLister, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "holders",
		Description: "Replay a token's Transfer events and list its holders by balance.",
		Usage:       "Lists token holders. Must provide the token address.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "token",
				Usage:    "ERC-20 contract address",
				Required: true,
			},
			&cli.IntFlag{Name: "offset", Usage: "Holders to skip"},
			&cli.IntFlag{Name: "limit", Usage: "Holders to print", Value: 20},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			page, err := svc.ListHolders(ctx, ledger.HolderQuery{
				ChainID: c.Uint64("chain"),
				Token:   c.String("token"),
				Offset:  c.Int("offset"),
				Limit:   c.Int("limit"),
			})
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return json.NewEncoder(out).Encode(page)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "RANK\tADDRESS\tBALANCE\tSHARE")
			for i, h := range page.Holders {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f%%\n", page.Offset+i+1, h.Address, h.Balance, h.Percentage)
			}
			_, _ = fmt.Fprintf(tw, "\nholders: %d\ttotal supply: %s\n", page.Total, page.TotalSupply)
			return tw.Flush()
		},
	}
}

// activityCommand prints one page of an account's merged transaction history.
//
//	tokenscope-ledger activity --address 0xabc... --direction sent --order asc
func activityCommand(svc ActivityLister, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "activity",
		Description: "List an account's direct and token-transfer transactions.",
		Usage:       "Lists account transactions. Must provide the account address.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Account address",
				Required: true,
			},
			&cli.IntFlag{Name: "offset", Usage: "Transactions to skip"},
			&cli.IntFlag{Name: "limit", Usage: "Transactions to print", Value: 20},
			&cli.StringFlag{Name: "direction", Usage: "sent, received or all", Value: "all"},
			&cli.StringFlag{Name: "order", Usage: "asc or desc", Value: "desc"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			page, err := svc.ListAccountTransactions(ctx, history.Query{
				ChainID:   c.Uint64("chain"),
				Address:   c.String("address"),
				Offset:    c.Int("offset"),
				Limit:     c.Int("limit"),
				Direction: chain.Direction(c.String("direction")),
				Order:     chain.SortOrder(c.String("order")),
			})
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return json.NewEncoder(out).Encode(page)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "BLOCK\tHASH\tFROM\tTO")
			for _, tx := range page.Transactions {
				to := "(contract creation)"
				if tx.To != nil {
					to = hexutil.Encode(tx.To.Bytes())
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tx.BlockNumber.ToInt(), tx.Hash.Hex(), hexutil.Encode(tx.From.Bytes()), to)
			}
			if page.HasMore {
				_, _ = fmt.Fprintf(tw, "\nmore after offset %d\n", page.Offset+len(page.Transactions))
			}
			return tw.Flush()
		},
	}
}
