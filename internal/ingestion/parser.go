package ingestion

import (
	"encoding/base64"
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/solana"
)

// Monitored DEX program IDs.
const (
	// RaydiumAMMV4 is the Raydium AMM v4 program ID.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// OrcaWhirlpool is the Orca Whirlpool program ID.
	OrcaWhirlpool = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	// MeteoraDLMM is the Meteora DLMM program ID.
	MeteoraDLMM = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"
)

// DefaultPrograms lists the programs every provider feed subscribes to.
func DefaultPrograms() []string {
	return []string{RaydiumAMMV4, OrcaWhirlpool, MeteoraDLMM}
}

// Raydium ray_log swap layout:
// discriminator(1) + pool(32) + sourceMint(32) + targetMint(32) +
// amountIn(8 LE) + amountOut(8 LE) + feeBps(2 LE) + liquidityUSD(8 LE)
const rayLogSwapLen = 1 + 32 + 32 + 32 + 8 + 8 + 2 + 8

// ParseResult is everything extracted from one log notification.
// Errors counts skipped lines by failure kind for the parse_errors
// metric; a malformed line never fails the whole notification.
type ParseResult struct {
	Updates []domain.PriceUpdate
	Whiffs  []domain.WhiffEvent
	Errors  map[string]int
}

// LogParser extracts price updates and whiff signals from transaction
// log notifications. Raydium swaps arrive as base64 ray_log payloads;
// Orca and Meteora feeds emit enriched key=value swap lines. Whiff
// lines can come from any monitored program.
type LogParser struct {
	rayLogPattern *regexp.Regexp
	swapPattern   *regexp.Regexp
	whiffPattern  *regexp.Regexp

	programDex map[string]string // programID -> dex tag for textual swaps
}

// NewLogParser creates a parser with the default program set.
func NewLogParser() *LogParser {
	return &LogParser{
		rayLogPattern: regexp.MustCompile(`ray_log: ([A-Za-z0-9+/=]+)`),
		swapPattern:   regexp.MustCompile(`swap pool=(\S+) source=(\S+) target=(\S+) rate=([0-9.eE+-]+) fee_bps=(\d+) liquidity_usd=(\d+)`),
		whiffPattern:  regexp.MustCompile(`whiff type=([A-Z_]+) mint=(\S+) amount=(\d+) confidence=([0-9.]+) direction=(BULLISH|BEARISH|VOLATILE)`),
		programDex: map[string]string{
			OrcaWhirlpool: domain.DexOrca,
			MeteoraDLMM:   domain.DexMeteora,
		},
	}
}

// Parse extracts events from one notification. Failed transactions are
// skipped entirely. Provider attribution is left to the caller.
func (p *LogParser) Parse(notif solana.LogNotification) ParseResult {
	res := ParseResult{Errors: make(map[string]int)}
	if notif.Err != nil {
		return res
	}

	// Track which program's log section we are in, so textual swap
	// lines can be attributed to a venue.
	currentProgram := ""

	for _, line := range notif.Logs {
		if prog, ok := invokedProgram(line); ok {
			currentProgram = prog
			continue
		}
		if strings.HasSuffix(line, " success") || strings.HasSuffix(line, " failed") {
			currentProgram = ""
			continue
		}

		if m := p.rayLogPattern.FindStringSubmatch(line); m != nil {
			if update, kind := p.parseRayLog(m[1], notif); kind != "" {
				res.Errors[kind]++
			} else {
				res.Updates = append(res.Updates, update)
			}
			continue
		}

		if m := p.swapPattern.FindStringSubmatch(line); m != nil {
			dex, ok := p.programDex[currentProgram]
			if !ok {
				res.Errors["unknown_venue"]++
				continue
			}
			if update, kind := p.parseTextualSwap(m, dex, notif); kind != "" {
				res.Errors[kind]++
			} else {
				res.Updates = append(res.Updates, update)
			}
			continue
		}

		if m := p.whiffPattern.FindStringSubmatch(line); m != nil {
			if whiff, kind := p.parseWhiff(m, currentProgram); kind != "" {
				res.Errors[kind]++
			} else {
				res.Whiffs = append(res.Whiffs, whiff)
			}
		}
	}

	return res
}

// parseRayLog decodes a Raydium base64 swap payload. The returned
// string is the error kind, empty on success.
func (p *LogParser) parseRayLog(encoded string, notif solana.LogNotification) (domain.PriceUpdate, string) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.PriceUpdate{}, "bad_ray_log"
	}
	if len(data) < rayLogSwapLen || !isSwapDiscriminator(data[0]) {
		return domain.PriceUpdate{}, "bad_ray_log"
	}

	pool := base58.Encode(data[1:33])
	source := base58.Encode(data[33:65])
	target := base58.Encode(data[65:97])
	amountIn := binary.LittleEndian.Uint64(data[97:105])
	amountOut := binary.LittleEndian.Uint64(data[105:113])
	feeBps := binary.LittleEndian.Uint16(data[113:115])
	liquidity := binary.LittleEndian.Uint64(data[115:123])

	if isOnCurve(data[1:33]) {
		return domain.PriceUpdate{}, "bad_pool"
	}
	if amountIn == 0 || amountOut == 0 {
		return domain.PriceUpdate{}, "bad_rate"
	}

	return domain.PriceUpdate{
		SourceMint:   source,
		TargetMint:   target,
		PoolAddress:  pool,
		ExchangeRate: float64(amountOut) / float64(amountIn),
		FeeBps:       feeBps,
		LiquidityUSD: liquidity,
		Slot:         notif.Slot,
		Dex:          domain.DexRaydium,
		TxSignature:  notif.Signature,
	}, ""
}

// parseTextualSwap handles enriched key=value swap lines.
func (p *LogParser) parseTextualSwap(m []string, dex string, notif solana.LogNotification) (domain.PriceUpdate, string) {
	pool, source, target := m[1], m[2], m[3]

	if !isValidMint(source) || !isValidMint(target) {
		return domain.PriceUpdate{}, "bad_mint"
	}
	if !isValidPool(pool) {
		return domain.PriceUpdate{}, "bad_pool"
	}

	rate, err := strconv.ParseFloat(m[4], 64)
	if err != nil || rate <= 0 {
		return domain.PriceUpdate{}, "bad_rate"
	}
	feeBps, err := strconv.ParseUint(m[5], 10, 16)
	if err != nil {
		return domain.PriceUpdate{}, "bad_fee"
	}
	liquidity, err := strconv.ParseUint(m[6], 10, 64)
	if err != nil {
		return domain.PriceUpdate{}, "bad_liquidity"
	}

	return domain.PriceUpdate{
		SourceMint:   source,
		TargetMint:   target,
		PoolAddress:  pool,
		ExchangeRate: rate,
		FeeBps:       uint16(feeBps),
		LiquidityUSD: liquidity,
		Slot:         notif.Slot,
		Dex:          dex,
		TxSignature:  notif.Signature,
	}, ""
}

// parseWhiff handles intelligence signal lines.
func (p *LogParser) parseWhiff(m []string, source string) (domain.WhiffEvent, string) {
	mint := m[2]
	if !isValidMint(mint) {
		return domain.WhiffEvent{}, "bad_mint"
	}

	amount, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		return domain.WhiffEvent{}, "bad_amount"
	}
	confidence, err := strconv.ParseFloat(m[4], 32)
	if err != nil || confidence < 0 || confidence > 1 {
		return domain.WhiffEvent{}, "bad_confidence"
	}

	return domain.WhiffEvent{
		WhiffType:  m[1],
		Mint:       mint,
		Amount:     amount,
		Confidence: float32(confidence),
		Direction:  m[5],
		Source:     source,
	}, ""
}

// isSwapDiscriminator reports whether a ray_log payload is a swap.
// 0x09 is SwapBaseIn, 0x0b is SwapBaseOut.
func isSwapDiscriminator(disc byte) bool {
	return disc == 0x09 || disc == 0x0b
}

// invokedProgram extracts the program ID from an invoke line.
func invokedProgram(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "Program ")
	if !ok {
		return "", false
	}
	prog, rest, ok := strings.Cut(rest, " ")
	if !ok || !strings.HasPrefix(rest, "invoke") {
		return "", false
	}
	return prog, true
}
