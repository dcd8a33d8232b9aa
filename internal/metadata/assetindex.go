package metadata

import (
	"context"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

// AssetIndexSource queries a DAS-style asset index with one getAssetBatch
// call per lookup.
type AssetIndexSource struct {
	rpc *rpc.Client
}

func NewAssetIndexSource(client *rpc.Client) *AssetIndexSource {
	return &AssetIndexSource{rpc: client}
}

func (s *AssetIndexSource) Name() string { return "asset-index" }

type asset struct {
	ID      string `json:"id"`
	Content *struct {
		Links *struct {
			Image string `json:"image"`
		} `json:"links"`
	} `json:"content"`
	TokenInfo *struct {
		Symbol    string `json:"symbol"`
		Decimals  *int   `json:"decimals"`
		PriceInfo *struct {
			PricePerToken float64 `json:"price_per_token"`
		} `json:"price_info"`
	} `json:"token_info"`
}

// Lookup treats assets without token_info as misses so later tiers can try.
func (s *AssetIndexSource) Lookup(ctx context.Context, mints []string) (map[string]Hit, error) {
	out := make(map[string]Hit, len(mints))
	if len(mints) == 0 {
		return out, nil
	}

	var assets []*asset
	if err := s.rpc.CallResult(ctx, "getAssetBatch", map[string]any{"ids": mints}, &assets); err != nil {
		return nil, err
	}
	for _, a := range assets {
		if a == nil || a.ID == "" || a.TokenInfo == nil {
			continue
		}
		rec := Record{Mint: a.ID, Symbol: a.TokenInfo.Symbol, Found: true}
		if a.TokenInfo.Decimals != nil {
			if *a.TokenInfo.Decimals < 0 {
				continue
			}
			rec.Decimals = *a.TokenInfo.Decimals
		}
		if a.Content != nil && a.Content.Links != nil {
			rec.Image = a.Content.Links.Image
		}
		hit := Hit{Record: rec}
		if a.TokenInfo.PriceInfo != nil {
			p := a.TokenInfo.PriceInfo.PricePerToken
			hit.Price = &p
		}
		out[a.ID] = hit
	}
	return out, nil
}
