package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatest(t *testing.T) {
	table := Table{
		{Country: "US", Province: "Alabama", Date: day(1), CumConfirmed: Int64(1)},
		{Country: "China", Province: "Hubei", Date: day(2), CumConfirmed: Int64(20)},
		{Country: "US", Province: "Alabama", Date: day(3), CumConfirmed: Int64(3)},
		{Country: "China", Province: "Hubei", Date: day(1), CumConfirmed: Int64(10)},
		{Country: "China", Province: AllProvinces, Date: day(2), CumConfirmed: Int64(25)},
	}

	got := Latest(table)

	require.Len(t, got, 3)
	assert.Equal(t, AllProvinces, got[0].Province)
	assert.Equal(t, "Hubei", got[1].Province)
	assert.Equal(t, int64(20), *got[1].CumConfirmed)
	assert.Equal(t, "US", got[2].Country)
	assert.Equal(t, day(3), got[2].Date)
}

func TestLatest_Empty(t *testing.T) {
	assert.Empty(t, Latest(nil))
}
