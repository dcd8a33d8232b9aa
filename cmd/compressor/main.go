package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/config"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/engine"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "holdings", "holdings | compress | decompress | swap")
	owner := flag.String("owner", "", "wallet address (default: WALLET_PRIVATE_KEY's address)")
	mint := flag.String("mint", "", "token mint")
	to := flag.String("to", "", "output mint for swap")
	amt := flag.String("amount", "", "amount in UI units (e.g. 1.5)")
	rep := flag.String("from", "", "swap source: compressed | uncompressed (default: uncompressed if held)")
	slippageBps := flag.Uint("slippage-bps", 50, "swap slippage in bps")
	byValue := flag.Bool("by-value", false, "sort holdings by USD value")
	execute := flag.Bool("execute", false, "sign and send with the local wallet instead of printing the transaction")
	simulate := flag.Bool("simulate", false, "dry-run the built transaction on the ledger")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid configuration:", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.New(ctx, cfg, logger)
	if err != nil {
		fmt.Println("failed to init engine:", err)
		os.Exit(1)
	}
	defer eng.Close()

	if *owner == "" && eng.Signer() != nil {
		*owner = eng.Signer().Address()
	}

	switch *mode {
	case "holdings":
		if err := printHoldings(ctx, eng, *owner, *byValue); err != nil {
			fmt.Println("holdings failed:", err)
			os.Exit(1)
		}
		return
	case "compress", "decompress", "swap":
	default:
		fmt.Println("unknown -mode:", *mode)
		os.Exit(2)
	}

	if *amt == "" {
		fmt.Println("missing -amount")
		os.Exit(2)
	}
	slip := uint16(*slippageBps)
	req := engine.ActionRequest{
		Kind:           models.ActionKind(*mode),
		Owner:          *owner,
		Mint:           *mint,
		OutputMint:     *to,
		UIAmount:       *amt,
		Representation: portfolio.Representation(*rep),
		SlippageBps:    &slip,
	}

	if *execute {
		res, err := eng.Execute(ctx, req)
		if err != nil {
			fmt.Println("execute failed:", err)
			os.Exit(1)
		}
		fmt.Printf("kind=%s amount=%d sig=%s\n", res.Kind, res.Amount, res.Signature)
		return
	}

	if *simulate {
		res, err := eng.Simulate(ctx, req)
		if err != nil {
			fmt.Println("simulate failed:", err)
			os.Exit(1)
		}
		for _, line := range res.Logs {
			fmt.Println(line)
		}
		fmt.Printf("success=%t units=%d %s\n", res.Success, res.UnitsConsumed, res.Error)
		if !res.Success {
			os.Exit(1)
		}
		return
	}

	built, err := eng.BuildAction(ctx, req)
	if err != nil {
		fmt.Println("build failed:", err)
		os.Exit(1)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, s := range built.Steps {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, s.Role, s.Label, s.Program)
	}
	_ = w.Flush()
	fmt.Printf("lookup_tables=%v\n%s\n", built.LookupTables, built.Transaction)
}

func printHoldings(ctx context.Context, eng *engine.Engine, owner string, byValue bool) error {
	hs, err := eng.Holdings(ctx, owner, byValue)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MINT\tSYMBOL\tKIND\tAMOUNT\tUSD")
	for _, h := range hs {
		symbol := h.Symbol
		if !h.MetadataFound {
			symbol = "?"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\n", h.Mint, symbol, h.Representation, h.UIAmount(), h.Value())
	}
	return w.Flush()
}
