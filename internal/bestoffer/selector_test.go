package bestoffer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-ops/be-proc-approvals/internal/errors"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func line(vendor, item string, round int, price int64) OfferLine {
	return OfferLine{
		VendorID:   vendor,
		LineItemID: item,
		Round:      round,
		Price:      dec(price),
		Quantity:   dec(1),
		TripFactor: dec(1),
	}
}

func TestSelectBestVendorFinalRoundWins(t *testing.T) {
	// Vendor A reduced its price in round 2; vendor B only bid once.
	lines := []OfferLine{
		line("vendor-a", "item1", 1, 100),
		line("vendor-a", "item1", 2, 90),
		line("vendor-b", "item1", 1, 95),
	}

	result, err := SelectBestVendor(lines, []string{"item1"})
	require.NoError(t, err)
	assert.Equal(t, "vendor-a", result.VendorID)
	assert.True(t, result.Total.Equal(dec(90)), "total = %s", result.Total)
}

func TestTwoAlgorithmsDiverge(t *testing.T) {
	// Vendor A raised its price in round 2: the final-round rule honors the
	// later (higher) offer, the lowest-price rule keeps the round-1 price.
	lines := []OfferLine{
		line("vendor-a", "item1", 1, 100),
		line("vendor-a", "item1", 2, 110),
	}

	final, err := SelectBestVendor(lines, []string{"item1"})
	require.NoError(t, err)
	assert.True(t, final.Total.Equal(dec(110)), "final-round total = %s", final.Total)

	lowest, err := SelectBestVendorLowestPrice(lines, []string{"item1"})
	require.NoError(t, err)
	assert.True(t, lowest.Total.Equal(dec(100)), "lowest-price total = %s", lowest.Total)
}

func TestLowestPriceTieBreaksToLaterRound(t *testing.T) {
	lines := []OfferLine{
		line("vendor-a", "item1", 1, 100),
		line("vendor-a", "item1", 3, 100),
		line("vendor-a", "item1", 2, 100),
	}

	picked := lowestPrice(lines)
	assert.Equal(t, 3, picked.Round)
}

func TestIncompleteVendorNeverSelected(t *testing.T) {
	// Vendor B is cheapest on item1 but never priced item2.
	lines := []OfferLine{
		line("vendor-a", "item1", 1, 100),
		line("vendor-a", "item2", 1, 100),
		line("vendor-b", "item1", 1, 10),
	}

	result, err := SelectBestVendor(lines, []string{"item1", "item2"})
	require.NoError(t, err)
	assert.Equal(t, "vendor-a", result.VendorID)
	assert.True(t, result.Total.Equal(dec(200)))
}

func TestNoCompleteOffer(t *testing.T) {
	lines := []OfferLine{
		line("vendor-a", "item1", 1, 100),
	}

	_, err := SelectBestVendor(lines, []string{"item1", "item2"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoCompleteOffer, errors.Code(err))

	_, err = SelectBestVendor(nil, []string{"item1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoCompleteOffer, errors.Code(err))
}

func TestSelectionDeterministicUnderInputOrder(t *testing.T) {
	lines := []OfferLine{
		line("vendor-a", "item1", 1, 100),
		line("vendor-a", "item2", 2, 50),
		line("vendor-b", "item1", 1, 80),
		line("vendor-b", "item2", 1, 70),
		line("vendor-c", "item1", 2, 75),
		line("vendor-c", "item2", 1, 75),
	}
	required := []string{"item1", "item2"}

	first, err := SelectBestVendor(lines, required)
	require.NoError(t, err)

	// Reverse the input order; the outcome must not change.
	reversed := make([]OfferLine, len(lines))
	for i, l := range lines {
		reversed[len(lines)-1-i] = l
	}
	second, err := SelectBestVendor(reversed, required)
	require.NoError(t, err)

	assert.Equal(t, first.VendorID, second.VendorID)
	assert.True(t, first.Total.Equal(second.Total))
}

func TestEqualTotalsBreakToSmallerVendorID(t *testing.T) {
	lines := []OfferLine{
		line("vendor-b", "item1", 1, 100),
		line("vendor-a", "item1", 1, 100),
	}

	result, err := SelectBestVendor(lines, []string{"item1"})
	require.NoError(t, err)
	assert.Equal(t, "vendor-a", result.VendorID)
}

func TestLineTotalAppliesQuantityAndTripFactor(t *testing.T) {
	lines := []OfferLine{
		{
			VendorID:   "vendor-a",
			LineItemID: "item1",
			Round:      1,
			Price:      dec(10),
			Quantity:   dec(4),
			TripFactor: dec(3),
		},
		{
			VendorID:   "vendor-b",
			LineItemID: "item1",
			Round:      1,
			Price:      dec(10),
			Quantity:   dec(4),
			TripFactor: dec(0), // clamped to 1
		},
	}

	result, err := SelectBestVendor(lines, []string{"item1"})
	require.NoError(t, err)
	assert.Equal(t, "vendor-b", result.VendorID)
	assert.True(t, result.Total.Equal(dec(40)), "total = %s", result.Total)

	a, err := SelectBestVendor(lines[:1], []string{"item1"})
	require.NoError(t, err)
	assert.True(t, a.Total.Equal(dec(120)), "total = %s", a.Total)
}

func TestRevenueAndProfit(t *testing.T) {
	items := []RevenueLine{
		{BaseTariff: dec(100), AddTariff: dec(10), KmFactor: dec(5), Quantity: dec(2)}, // (100+50)*2 = 300
		{BaseTariff: dec(200), AddTariff: dec(0), KmFactor: dec(9), Quantity: dec(1)},  // 200
	}

	revenue := Revenue(items)
	assert.True(t, revenue.Equal(dec(500)), "revenue = %s", revenue)

	summary := ProfitOf(revenue, dec(400))
	assert.True(t, summary.Profit.Equal(dec(100)))
	assert.True(t, summary.ProfitPercent.Equal(dec(20)))
}

func TestProfitPercentZeroOnZeroRevenue(t *testing.T) {
	summary := ProfitOf(decimal.Zero, dec(400))
	assert.True(t, summary.Profit.Equal(dec(-400)))
	assert.True(t, summary.ProfitPercent.IsZero())
}
