package accounting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemacentral/borderel/accounting"
)

func TestAggregate(t *testing.T) {
	// GIVEN: Mixed POS rows for one day
	rows := []accounting.TransactionRow{
		{Category: "Film", Film: "Wicked", Room: "2", Quantity: 2, Amount: dec("20.00")},
		{Category: "FILM", Film: "Dune", Room: "1", Quantity: 3, Amount: dec("31.50")},
		{Category: "film", Film: "Dune", Room: "1", Child: true, ThreeD: true, Quantity: 2, Amount: dec("15.00")},
		{Category: "film", Film: "Dune", Room: "1", Quantity: 1, Amount: dec("10.50")},
		{Category: "Film", Film: "Dune", Room: "1", Free: true, Quantity: 2, Amount: dec("99.00")},
		{Category: "Bar", Film: "Cola", Quantity: 5, Amount: dec("12.50")},
		{Category: "Film", Film: "  ", Quantity: 1, Amount: dec("9.00")},
		{Film: "Dune", Room: "2", Quantity: 1, Amount: dec("9.00")},
	}

	// WHEN: Aggregating
	got := accounting.Aggregate(rows)

	// THEN: One total per film and room, ordered by film then room
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Dune/1", "Dune/2", "Wicked/2"},
		[]string{got[0].Film + "/" + got[0].Room, got[1].Film + "/" + got[1].Room, got[2].Film + "/" + got[2].Room})

	dune := got[0]
	assert.Equal(t, 4, dune.PaidAdultQty)
	assert.Equal(t, 2, dune.PaidChildQty)
	assert.Equal(t, 2, dune.FreeAdultQty)
	assert.Equal(t, 0, dune.FreeChildQty)
	assert.True(t, dune.AdultAmount.Equal(dec("42.00")), "free row amount ignored")
	assert.True(t, dune.ChildAmount.Equal(dec("15.00")))
	assert.True(t, dune.Is3D, "3D is OR-ed over rows")

	assert.False(t, got[2].Is3D)
}

func TestAggregate_FreeDefaultsToZero(t *testing.T) {
	got := accounting.Aggregate([]accounting.TransactionRow{
		{Category: "Film", Film: "Flow", Quantity: 3, Amount: dec("27.00")},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].FreeAdultQty)
	assert.Equal(t, 0, got[0].FreeChildQty)
	assert.Equal(t, "", got[0].Room, "unassigned room")
}

func TestUnitPrice(t *testing.T) {
	p, ok := accounting.UnitPrice(dec("31.50"), 3)
	assert.True(t, ok)
	assert.True(t, p.Equal(dec("10.5")))

	_, ok = accounting.UnitPrice(dec("31.50"), 0)
	assert.False(t, ok)

	_, ok = accounting.UnitPrice(dec("31.50"), -1)
	assert.False(t, ok)
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "2.68", accounting.RoundMoney(dec("2.675")).StringFixed(2))
	assert.Equal(t, "-2.68", accounting.RoundMoney(dec("-2.675")).StringFixed(2))
	assert.Equal(t, "1234,50", accounting.Money(dec("1234.5")))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12,50", "12.5", false},
		{"1.234,50", "1234.5", false},
		{"1,234.50", "1234.5", false},
		{"1 234,50", "1234.5", false},
		{"€9", "9", false},
		{"-3,10", "-3.1", false},
		{"1,234,567.8", "1234567.8", false},
		{"", "", true},
		{"abc", "", true},
		{"1,2,3", "", true},
		{"1.234,5,0", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := accounting.ParseAmount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, accounting.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}
}
