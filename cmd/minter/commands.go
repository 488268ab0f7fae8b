// ====================================
// File: cmd/minter/commands.go
// ====================================
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/candy-mint/internal/candymachine"
	"github.com/rovshanmuradov/candy-mint/internal/minter"
)

func mintCommand() *cli.Command {
	return &cli.Command{
		Name:  "mint",
		Usage: "Mint a batch of NFTs and wait for every transaction to resolve",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "quantity",
				Aliases: []string{"n"},
				Value:   1,
				Usage:   "Number of NFTs to mint; clamped to the items remaining",
			},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.close()

			payer, err := a.loadWallet()
			if err != nil {
				return err
			}
			svc, err := a.mintService(payer)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			done := a.log.TrackPerformance("mint")
			report, err := svc.Mint(ctx, c.Int("quantity"))
			done()
			if err != nil {
				return err
			}
			logFailures(a, report)
			if c.Bool("json") {
				return printJSON(reportView(report))
			}
			printReport(report)
			return nil
		},
	}
}

func stateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Show the candy machine state",
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.close()

			provider, err := a.stateProvider()
			if err != nil {
				return err
			}
			done := a.log.TrackPerformance("state")
			st, err := provider.State(c.Context)
			done()
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(stateView(st))
			}
			printState(st)
			return nil
		},
	}
}

func accessCommand() *cli.Command {
	return &cli.Command{
		Name:  "access",
		Usage: "Check whether a wallet may mint right now",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "wallet",
				Usage: "Wallet address; defaults to the configured keypair",
			},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.close()

			var identity solana.PublicKey
			if w := c.String("wallet"); w != "" {
				identity, err = solana.PublicKeyFromBase58(w)
				if err != nil {
					return fmt.Errorf("invalid wallet: %w", err)
				}
			} else {
				payer, err := a.loadWallet()
				if err != nil {
					return err
				}
				identity = payer.PublicKey()
			}

			policy, err := a.loadPolicy()
			if err != nil {
				return err
			}
			d := policy.Check(identity.String(), time.Now())
			if c.Bool("json") {
				return printJSON(map[string]interface{}{
					"wallet":  identity.String(),
					"allowed": d.Allowed,
					"reason":  d.Reason,
					"window":  d.Window,
				})
			}
			if d.Allowed {
				fmt.Printf("%s may mint (window %d)\n", identity, d.Window)
			} else {
				fmt.Printf("%s: %s\n", identity, d.Reason)
			}
			return nil
		},
	}
}

// logFailures keeps failed signatures in the log file for later lookup.
func logFailures(a *app, r *minter.Report) {
	log := a.log.WithBatch(r.BatchID)
	for _, f := range r.Failures {
		if f.Signature == "" {
			log.Warn("Item failed before submission", zap.Int("index", f.Index), zap.String("kind", f.Kind))
			continue
		}
		a.log.WithSignature(f.Signature).Warn("Item failed",
			zap.String("batch_id", r.BatchID.String()),
			zap.Int("index", f.Index),
			zap.String("kind", f.Kind),
			zap.String("message", f.Message))
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func stateView(st *candymachine.State) map[string]interface{} {
	v := map[string]interface{}{
		"id":              st.ID.String(),
		"items_available": st.ItemsAvailable,
		"items_redeemed":  st.ItemsRedeemed,
		"items_remaining": st.ItemsRemaining,
		"price_sol":       st.PriceSOL().String(),
		"sold_out":        st.IsSoldOut(),
	}
	if st.GoLiveDate != nil {
		v["go_live_date"] = st.GoLiveDate.Format(time.RFC3339)
	}
	return v
}

func printState(st *candymachine.State) {
	fmt.Printf("Candy machine %s\n", st.ID)
	fmt.Printf("Total Available: %d\n", st.ItemsAvailable)
	fmt.Printf("Redeemed: %d\n", st.ItemsRedeemed)
	fmt.Printf("Remaining: %d\n", st.ItemsRemaining)
	fmt.Printf("Price: %s SOL\n", st.PriceSOL())
	if st.GoLiveDate != nil {
		fmt.Printf("Go live: %s\n", st.GoLiveDate.Format(time.RFC3339))
	}
	if st.IsSoldOut() {
		fmt.Println("SOLD OUT")
	}
}

func reportView(r *minter.Report) map[string]interface{} {
	failures := make([]map[string]interface{}, 0, len(r.Failures))
	for _, f := range r.Failures {
		item := map[string]interface{}{
			"index":   f.Index,
			"kind":    f.Kind,
			"message": f.Message,
		}
		if f.Signature != "" {
			item["signature"] = f.Signature
		}
		if f.Code != nil {
			item["code"] = *f.Code
		}
		if f.Condition != "" {
			item["condition"] = f.Condition
		}
		failures = append(failures, item)
	}
	v := map[string]interface{}{
		"batch_id":       r.BatchID.String(),
		"requested":      r.Requested,
		"attempted":      r.Attempted,
		"classification": r.Classification,
		"successes":      r.Successes,
		"minted":         r.Minted,
		"failures":       failures,
	}
	if r.State != nil {
		v["state"] = stateView(r.State)
	}
	if r.Balance != nil {
		v["balance_sol"] = r.Balance.String()
	}
	return v
}

func printReport(r *minter.Report) {
	for _, msg := range r.Messages() {
		fmt.Println(msg)
	}
	for _, mint := range r.Minted {
		fmt.Printf("  minted %s\n", mint)
	}
	for _, f := range r.Failures {
		fmt.Printf("  item %d %s: %s\n", f.Index, f.Kind, f.Message)
	}
	if r.Attempted < r.Requested {
		fmt.Printf("Only %d of %d requested items were available\n", r.Attempted, r.Requested)
	}
	if r.Balance != nil {
		fmt.Printf("Balance: %s SOL\n", r.Balance)
	}
	if r.State != nil {
		fmt.Printf("Remaining: %d\n", r.State.ItemsRemaining)
	}
}
