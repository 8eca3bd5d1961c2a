package cmd

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"tranche-node/campaign"
	"tranche-node/ledger"
)

func mockTuple(description string, target, current int64, released bool, votes uint64) ledger.MilestoneTuple {
	return ledger.MilestoneTuple{
		Description:     description,
		ServiceProvider: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		TargetAmount:    big.NewInt(target),
		CurrentAmount:   big.NewInt(current),
		Released:        released,
		VoteCount:       votes,
	}
}

func TestPrintSnapshot(t *testing.T) {
	snapshot := campaign.BuildSnapshot([]ledger.MilestoneTuple{
		mockTuple("design", 10, 10, true, 3),
		mockTuple("build", 5, 2, false, 1),
		mockTuple("ship", 8, 0, false, 0),
	})
	var out bytes.Buffer
	printSnapshot(&out, snapshot, 3)
	text := out.String()

	for _, expected := range []string{"Released", "Active", "Locked", "40.0%", "1/3 (2 left)", "Raised 12 of 23", "milestone 1"} {
		if !strings.Contains(text, expected) {
			t.Errorf("Missing %q in\n%s", expected, text)
		}
	}

	out.Reset()
	printSnapshot(&out, campaign.BuildSnapshot([]ledger.MilestoneTuple{mockTuple("design", 10, 10, true, 3)}), 3)
	if !strings.Contains(out.String(), "Every milestone is released") {
		t.Errorf("Completed campaign not reported:\n%s", out.String())
	}
}
