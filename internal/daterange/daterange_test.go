package daterange_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
)

func TestParseAndDays(t *testing.T) {
	r, err := daterange.Parse("2024-06-01", "2024-06-05")
	require.NoError(t, err)
	require.Equal(t, 4, r.Days())
	require.NoError(t, r.CheckSpan())
}

func TestParseRejectsInverted(t *testing.T) {
	_, err := daterange.Parse("2024-06-10", "2024-06-01")
	require.ErrorIs(t, err, daterange.ErrInvalid)
}

func TestCheckSpanTooLong(t *testing.T) {
	r, err := daterange.Parse("2024-06-01", "2024-06-16")
	require.NoError(t, err)
	require.ErrorIs(t, r.CheckSpan(), daterange.ErrTooLong)

	exact, err := daterange.Parse("2024-06-01", "2024-06-15")
	require.NoError(t, err)
	require.NoError(t, exact.CheckSpan())
}

func TestOverlaps(t *testing.T) {
	base, _ := daterange.Parse("2024-06-05", "2024-06-10")
	cases := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{"before", "2024-06-01", "2024-06-04", false},
		{"touches start", "2024-06-01", "2024-06-05", true},
		{"inside", "2024-06-06", "2024-06-08", true},
		{"touches end", "2024-06-10", "2024-06-12", true},
		{"after", "2024-06-11", "2024-06-12", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			other, err := daterange.Parse(tc.start, tc.end)
			require.NoError(t, err)
			require.Equal(t, tc.want, base.Overlaps(other))
			require.Equal(t, tc.want, other.Overlaps(base))
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	r, _ := daterange.Parse("2024-06-01", "2024-06-03")
	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t, `{"start_date":"2024-06-01","end_date":"2024-06-03"}`, string(data))

	var decoded daterange.Range
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, r, decoded)

	var zero daterange.Range
	require.NoError(t, json.Unmarshal([]byte(`{"start_date":"","end_date":""}`), &zero))
	require.True(t, zero.IsZero())
}
