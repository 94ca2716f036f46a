// Command ctxtool builds and inspects matcher context account images.
//
//	ctxtool init -program <id> -tag PRIVMATC -mode 1 -lp-owner <pubkey> -out ctx.json
//	ctxtool inspect -in ctx.json
//	ctxtool price -base 100000000 -spread-bps 50
//
// init emits a solana-test-validator account fixture so a context can be
// preloaded into a local validator.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/quoteline/matcher/backend/internal/chain"
	"github.com/quoteline/matcher/backend/internal/matcherctx"
)

type fixtureAccount struct {
	Lamports   uint64   `json:"lamports"`
	Data       []string `json:"data"`
	Owner      string   `json:"owner"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

type fixture struct {
	Pubkey  string         `json:"pubkey"`
	Account fixtureAccount `json:"account"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "price":
		err = runPrice(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ctxtool:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ctxtool <init|inspect|price> [flags]")
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	programArg := fs.String("program", "", "matcher program id (base58)")
	tagArg := fs.String("tag", "", "matcher tag, 8 ASCII bytes (e.g. PRIVMATC)")
	modeArg := fs.Uint("mode", 0, "matcher mode byte")
	lpOwnerArg := fs.String("lp-owner", "", "LP owner pubkey the authority PDA derives from")
	lamportsArg := fs.Uint64("lamports", 3_173_760, "lamports to fund the fixture account with")
	outArg := fs.String("out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	programID, err := solana.PublicKeyFromBase58(*programArg)
	if err != nil {
		return fmt.Errorf("parse -program: %w", err)
	}
	tag, err := matcherctx.TagFromString(*tagArg)
	if err != nil {
		return fmt.Errorf("parse -tag: %w", err)
	}
	if *modeArg > 0xff {
		return fmt.Errorf("-mode must fit in one byte")
	}
	lpOwner, err := solana.PublicKeyFromBase58(*lpOwnerArg)
	if err != nil {
		return fmt.Errorf("parse -lp-owner: %w", err)
	}

	ctxKey, _, err := chain.DeriveContextPDA(programID, tag)
	if err != nil {
		return fmt.Errorf("derive context PDA: %w", err)
	}
	lpKey, _, err := chain.DeriveLPAuthorityPDA(programID, lpOwner)
	if err != nil {
		return fmt.Errorf("derive lp authority PDA: %w", err)
	}

	buf := make([]byte, matcherctx.CtxSize)
	view := matcherctx.Account{Key: ctxKey, Data: buf, IsWritable: true}
	if err := matcherctx.VerifyInitPreconditions(view, tag, tag.String()); err != nil {
		return err
	}
	matcherctx.WriteHeader(buf, tag, uint8(*modeArg), lpKey)

	out := fixture{
		Pubkey: ctxKey.String(),
		Account: fixtureAccount{
			Lamports: *lamportsArg,
			Data:     []string{base64.StdEncoding.EncodeToString(buf), "base64"},
			Owner:    programID.String(),
		},
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')

	if *outArg == "" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	return os.WriteFile(*outArg, encoded, 0o644)
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	inArg := fs.String("in", "", "fixture file written by ctxtool init")
	dataArg := fs.String("data", "", "raw base64 account data (alternative to -in)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inArg == "" && *dataArg == "" {
		return fmt.Errorf("one of -in or -data is required")
	}

	var fx fixture
	if *inArg != "" {
		raw, err := os.ReadFile(*inArg)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return fmt.Errorf("parse fixture: %w", err)
		}
		if len(fx.Account.Data) == 0 {
			return fmt.Errorf("fixture has no account data")
		}
	} else {
		fx.Account.Data = []string{*dataArg}
	}
	buf, err := base64.StdEncoding.DecodeString(fx.Account.Data[0])
	if err != nil {
		return fmt.Errorf("decode account data: %w", err)
	}

	header, err := matcherctx.DecodeHeader(buf)
	if err != nil {
		return err
	}

	report := map[string]any{
		"pubkey":     fx.Pubkey,
		"owner":      fx.Account.Owner,
		"tag":        header.Tag().String(),
		"version":    header.Version,
		"mode":       header.Mode,
		"lp_pda":     header.LPPDA.String(),
		"exec_price": header.ExecPrice,
	}
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func runPrice(args []string) error {
	fs := flag.NewFlagSet("price", flag.ExitOnError)
	baseArg := fs.Uint64("base", 0, "base price")
	spreadArg := fs.Uint64("spread-bps", 0, "spread in basis points")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *baseArg == 0 {
		return fmt.Errorf("-base must be > 0")
	}

	execPrice, err := matcherctx.ComputeExecPrice(*baseArg, *spreadArg)
	if err != nil {
		return err
	}
	fmt.Println(execPrice)
	return nil
}
