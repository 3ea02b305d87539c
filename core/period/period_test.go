package period

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod_RoundTrip(t *testing.T) {
	for year := 1999; year <= 2031; year++ {
		for month := 1; month <= 12; month++ {
			p := Period{Year: year, Month: month}
			assert.Equal(t, p, p.Sub(11).Add(11), "round trip %s", p)
			assert.Equal(t, p, p.Add(13).Sub(13), "round trip %s", p)
		}
	}
}

func TestPeriod_LagsStayInRange(t *testing.T) {
	for month := 1; month <= 12; month++ {
		p := Period{Year: 2024, Month: month}
		lags := p.Lags(11)
		require.Len(t, lags, 12)
		assert.Equal(t, p, lags[0])
		for i, l := range lags[1:] {
			assert.NoError(t, l.Validate(), "lag %d of %s", i+1, p)
			assert.True(t, l.Before(p), "lag %d of %s is not in the past", i+1, p)
		}
	}
}

func TestPeriod_YearBoundary(t *testing.T) {
	p := Period{Year: 2024, Month: 1}
	assert.Equal(t, Period{Year: 2023, Month: 12}, p.Sub(1))
	assert.Equal(t, Period{Year: 2023, Month: 2}, p.Sub(11))
	assert.Equal(t, Period{Year: 2024, Month: 6}, Period{Year: 2024, Month: 5}.Add(1))
	assert.Equal(t, Period{Year: 2025, Month: 5}, Period{Year: 2024, Month: 5}.Add(12))
	assert.Equal(t, Period{Year: 2025, Month: 1}, Period{Year: 2024, Month: 12}.Add(1))
}

func TestNewAndParse(t *testing.T) {
	_, err := New(2024, 0)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
	_, err = New(2024, 13)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))

	p, err := Parse("2024-03")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2024, Month: 3}, p)
	assert.Equal(t, "2024-03", p.String())

	for _, bad := range []string{"2024", "2024-xx", "abcd-01", "2024-13"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}
