package chain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func parsedABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(raffleABI))
	if err != nil {
		t.Fatalf("embedded ABI does not parse: %v", err)
	}
	return parsed
}

func TestRaffleABI_CoversEveryRelayMethod(t *testing.T) {
	parsed := parsedABI(t)

	methods := []string{
		"createRaffle", "executeRaffle", "cancelRaffle", "executeRefund",
		"pause", "unpause",
		"addToBlocklist", "removeFromBlocklist", "batchAddToBlocklist",
		"withdrawFees", "archiveRaffles",
		"getRaffleStatus", "paused", "accumulatedFees", "isBlocklisted",
	}
	for _, name := range methods {
		if _, ok := parsed.Methods[name]; !ok {
			t.Fatalf("ABI missing method %s", name)
		}
	}
}

func TestRaffleABI_PacksCreateRaffle(t *testing.T) {
	parsed := parsedABI(t)

	_, err := parsed.Pack("createRaffle",
		big.NewInt(42), big.NewInt(7), big.NewInt(1_500_000),
		uint32(100), uint32(10), uint64(3600),
	)
	if err != nil {
		t.Fatalf("Pack createRaffle: %v", err)
	}
}

func TestRaffleABI_PacksBatchBlocklist(t *testing.T) {
	parsed := parsedABI(t)

	accounts := []common.Address{
		common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72"),
	}
	if _, err := parsed.Pack("batchAddToBlocklist", accounts, []string{"fraud"}); err != nil {
		t.Fatalf("Pack batchAddToBlocklist: %v", err)
	}
}

func TestRaffleStates_NamesEveryEnumValue(t *testing.T) {
	want := map[uint8]string{
		0: "open", 1: "executed", 2: "cancelled", 3: "refunded", 4: "archived",
	}
	for code, name := range want {
		if raffleStates[code] != name {
			t.Fatalf("state %d = %q, want %q", code, raffleStates[code], name)
		}
	}
}
