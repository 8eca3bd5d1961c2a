package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tranche-node/campaign"
	"tranche-node/config"
	"tranche-node/crypto"
	"tranche-node/ledger"
	"tranche-node/metrics"
)

var assumeYes bool

func addSignerFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Sign without asking for confirmation")
}

func newLedger(ctx context.Context) (ledger.Ledger, error) {
	switch cfg.Ledger.Backend {
	case config.BackendDevnet:
		transport, err := ledger.NewRPCTransport(cfg.Ledger.RPCURL)
		if err != nil {
			return nil, err
		}
		return ledger.NewABCILedger(transport), nil
	case config.BackendEthereum:
		l, err := ledger.DialEthLedger(ctx, cfg.Ledger.RPCURL, cfg.ContractAddress())
		if err != nil {
			return nil, err
		}
		if cfg.Ledger.ChainID != 0 && l.ChainID().Int64() != cfg.Ledger.ChainID {
			return nil, errors.Errorf("node is on chain %s, expected %d", l.ChainID(), cfg.Ledger.ChainID)
		}
		return l, nil
	}
	return nil, errors.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
}

func newSigner() (ledger.Signer, error) {
	key, err := crypto.LoadKey(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	signer := ledger.NewKeySigner(key)
	if assumeYes {
		return signer, nil
	}
	return &ledger.ConfirmSigner{Signer: signer, Confirm: confirm}, nil
}

// confirm asks on the terminal before a signature is produced.
func confirm(ctx context.Context, summary string) (bool, error) {
	fmt.Printf("Sign %s? [y/N] ", summary)
	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		return line == "y" || line == "yes", nil
	}
}

// newController connects to the ledger and loads the first snapshot. Without signing the session
// is read-only.
func newController(ctx context.Context, signing bool, m *metrics.Metrics) (*campaign.Controller, error) {
	l, err := newLedger(ctx)
	if err != nil {
		return nil, err
	}
	var signer ledger.Signer
	if signing {
		if signer, err = newSigner(); err != nil {
			return nil, err
		}
	}
	session := campaign.NewSession(signer, logger.With("module", "session"))
	controller := campaign.NewController(l, session, campaign.Config{
		FetchConcurrency: cfg.Client.FetchConcurrency,
		ConfirmTimeout:   cfg.Client.ConfirmTimeout,
		Logger:           logger.With("module", "campaign"),
		Metrics:          m,
	})
	if _, err := controller.Refresh(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return controller, nil
}

// follow prints every transition of attempt and returns its failure, if any.
func follow(ctx context.Context, attempt *campaign.Attempt) error {
	for transition := range attempt.Watch(ctx) {
		line := fmt.Sprintf("%-18s", transition.State)
		if transition.Reference != "" {
			line += " tx " + transition.Reference
		}
		fmt.Println(line)
	}
	if err := attempt.Wait(ctx); err != nil {
		return err
	}
	if failure := attempt.Err(); failure != nil {
		return failure
	}
	return nil
}
