package metadata

import (
	"context"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
)

// Tier is one step of the resolution chain.
type Tier struct {
	Source Source
	// WriteBack sends this tier's hits to the cache.
	WriteBack bool
}

// Resolver folds its tiers left to right; each tier only sees mints still
// unresolved by the ones before it. Prices are looked up for every mint.
type Resolver struct {
	tiers     []Tier
	prices    PriceSource
	writeback *Writeback
	logger    *logrus.Logger
}

type ResolverConfig struct {
	Tiers     []Tier
	Prices    PriceSource // optional
	Writeback *Writeback  // optional
	Logger    *logrus.Logger
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Resolver{
		tiers:     cfg.Tiers,
		prices:    cfg.Prices,
		writeback: cfg.Writeback,
		logger:    cfg.Logger,
	}
}

// Resolve never fails: every requested mint is in the result, with
// NotFound and price 0 when nothing knew it.
func (r *Resolver) Resolve(ctx context.Context, mints []string) map[string]Priced {
	out := make(map[string]Priced, len(mints))
	// A blank id is never sent to a source but still gets its sentinel.
	if slices.Contains(mints, "") {
		out[""] = Priced{Record: NotFound("")}
	}
	mints = uniq(mints)
	if len(mints) == 0 {
		return out
	}

	resolved := make(map[string]Hit, len(mints))
	pending := mints
	var discovered []Record

	for _, t := range r.tiers {
		if len(pending) == 0 {
			break
		}
		hits, err := t.Source.Lookup(ctx, pending)
		if err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"source": t.Source.Name(),
				"mints":  len(pending),
			}).Warn("metadata source failed")
			continue
		}

		next := make([]string, 0, len(pending))
		for _, m := range pending {
			h, ok := hits[m]
			if !ok || !h.Found {
				next = append(next, m)
				continue
			}
			h.Mint = m
			resolved[m] = h
			if t.WriteBack {
				discovered = append(discovered, h.Record)
			}
		}
		r.logger.WithFields(logrus.Fields{
			"source":   t.Source.Name(),
			"resolved": len(pending) - len(next),
			"pending":  len(next),
		}).Debug("metadata tier done")
		pending = next
	}

	if len(discovered) > 0 && r.writeback != nil {
		r.writeback.Dispatch(discovered)
	}

	prices := r.lookupPrices(ctx, mints)
	for _, m := range mints {
		h, ok := resolved[m]
		if !ok {
			h = Hit{Record: NotFound(m)}
		}
		price := 0.0
		if p, ok := prices[m]; ok {
			price = p
		} else if h.Price != nil {
			price = *h.Price
		}
		out[m] = Priced{Record: h.Record, PricePerToken: price}
	}
	return out
}

func (r *Resolver) lookupPrices(ctx context.Context, mints []string) map[string]float64 {
	out := make(map[string]float64, len(mints))
	if r.prices == nil {
		return out
	}
	for _, batch := range chunk(mints, constants.MaxMetadataBatch) {
		got, err := r.prices.Prices(ctx, batch)
		if err != nil {
			r.logger.WithError(err).WithField("mints", len(batch)).Warn("price lookup failed")
			continue
		}
		for k, v := range got {
			out[k] = v
		}
	}
	return out
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func chunk(in []string, size int) [][]string {
	if size <= 0 || len(in) <= size {
		return [][]string{in}
	}
	var out [][]string
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	return append(out, in)
}
