package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"solana-arb-engine/internal/domain"
	pgstore "solana-arb-engine/internal/storage/postgres"
)

// report summarizes persisted arbitrage opportunities over a time range.
func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (defaults to POSTGRES_DSN)")
	fromFlag := flag.String("from", "", "Range start, RFC3339 (default: 24h ago)")
	toFlag := flag.String("to", "", "Range end, RFC3339 (default: now)")
	topFlag := flag.Int("top", 20, "Number of top opportunities by profit to list")
	flag.Parse()

	_ = godotenv.Load()

	dsn := *postgresDSN
	if dsn == "" {
		dsn = os.Getenv("POSTGRES_DSN")
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn or POSTGRES_DSN is required")
		os.Exit(1)
	}

	from, to, err := parseRange(*fromFlag, *toFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := pgstore.NewOpportunityStore(pool)

	all, err := store.GetByTimeRange(ctx, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying opportunities: %v\n", err)
		os.Exit(1)
	}

	top, err := store.GetTopByProfit(ctx, from.UnixMilli(), to.UnixMilli(), *topFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying top opportunities: %v\n", err)
		os.Exit(1)
	}

	printSummary(os.Stdout, from, to, all, top)
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	if fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: %w", fromStr, err)
		}
		from = t
	}
	if toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q: %w", toStr, err)
		}
		to = t
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %v is not before --to %v", from, to)
	}
	return from, to, nil
}

func printSummary(out *os.File, from, to time.Time, all, top []*domain.Opportunity) {
	fmt.Fprintf(out, "Opportunities from %s to %s\n\n", from.Format(time.RFC3339), to.Format(time.RFC3339))

	byHops := make(map[int]int)
	var best float64
	for _, o := range all {
		byHops[o.HopCount]++
		if o.ProfitPct > best {
			best = o.ProfitPct
		}
	}

	fmt.Fprintf(out, "Total: %d\n", len(all))
	for hops := 2; hops <= 5; hops++ {
		if n := byHops[hops]; n > 0 {
			fmt.Fprintf(out, "  %d-hop: %d\n", hops, n)
		}
	}
	fmt.Fprintf(out, "Best profit: %.4f%%\n\n", best)

	if len(top) == 0 {
		fmt.Fprintln(out, "No opportunities in range.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROFIT%\tHOPS\tSLOT\tLIQUIDITY USD\tFEES BPS\tPATH")
	for _, o := range top {
		fmt.Fprintf(w, "%.4f\t%d\t%d\t%d\t%d\t%s\n",
			o.ProfitPct, o.HopCount, o.Slot, o.MinLiquidityUSD, o.TotalFeeBps, pathString(o.Path))
	}
	w.Flush()
}

func pathString(path []string) string {
	s := ""
	for i, mint := range path {
		if i > 0 {
			s += " -> "
		}
		if len(mint) > 8 {
			mint = mint[:8]
		}
		s += mint
	}
	return s
}
