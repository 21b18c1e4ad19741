package fetcher

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func staticFetcher(price int64) PriceFetcher {
	return Func(func(ctx context.Context, source string) Result {
		return Found(decimal.NewFromInt(price))
	})
}

func TestRegistryRoutesByHostSuffix(t *testing.T) {
	reg := NewRegistry(staticFetcher(1))
	reg.Register("amazon.com", staticFetcher(2))
	reg.Register("smile.amazon.com", staticFetcher(3))

	cases := map[string]int64{
		"https://www.amazon.com/dp/X":   2,
		"https://amazon.com/dp/X":       2,
		"https://smile.amazon.com/dp/X": 3,
		"https://notamazon.com/dp/X":    1,
		"https://shop.example.org/p/1":  1,
	}
	for source, want := range cases {
		res := reg.Fetch(context.Background(), source)
		if res.Outcome != OutcomePrice || !res.Price.Equal(decimal.NewFromInt(want)) {
			t.Fatalf("%s routed wrongly: %+v", source, res)
		}
	}
}

func TestRegistryWithoutFallback(t *testing.T) {
	reg := NewRegistry(nil)
	if res := reg.Fetch(context.Background(), "https://unknown.test/"); res.Outcome != OutcomeTransient {
		t.Fatalf("unmatched host without fallback should be transient, got %s", res.Outcome)
	}
	if res := reg.Fetch(context.Background(), "::bad"); res.Outcome != OutcomeTransient {
		t.Fatalf("bad url should be transient, got %s", res.Outcome)
	}
}
