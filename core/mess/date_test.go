package mess

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.February, 29), d)
	assert.Equal(t, "2024-02-29", d.String())

	for _, s := range []string{"", "2023-02-29", "29/02/2024", "2024-02-29T10:00:00Z"} {
		_, err := ParseDate(s)
		assert.Error(t, err, s)
	}
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	late := time.Date(2024, time.March, 1, 23, 30, 0, 0, loc)
	assert.Equal(t, NewDate(2024, time.March, 1), DateOf(late))
	assert.Equal(t, NewDate(2024, time.March, 1), DateOf(late.UTC()))
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date": "2024-03-01"}`), &v))
	assert.Equal(t, NewDate(2024, time.March, 1), v.Date)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date": "2024-03-01"}`, string(data))

	v.Date = Date{}
	data, err = json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date": null}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"date": 20240301}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"date": "March 1st"}`), &v))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, NewDate(2024, time.March, 1), d)

	require.NoError(t, d.Scan([]byte("2024-03-02T00:00:00Z")))
	assert.Equal(t, NewDate(2024, time.March, 2), d)

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestDateRange(t *testing.T) {
	rng, err := NewDateRange(day(28), day(31))
	require.NoError(t, err)
	assert.Equal(t, 4, rng.Len())
	assert.Equal(t, []Date{day(28), day(29), day(30), day(31)}, rng.Days())
	assert.True(t, rng.Contains(day(28)))
	assert.True(t, rng.Contains(day(31)))
	assert.False(t, rng.Contains(day(27)))
	assert.Equal(t, "2024-03-28..2024-03-31", rng.String())

	// across a month boundary
	rng, err = NewDateRange(NewDate(2024, time.February, 28), day(1))
	require.NoError(t, err)
	assert.Equal(t, 3, rng.Len())

	_, err = NewDateRange(day(2), day(1))
	assert.Equal(t, ErrInvalidRange, errors.Cause(err))

	_, err = NewDateRange(Date{}, day(1))
	assert.Equal(t, ErrInvalidRange, errors.Cause(err))

	// a whole leap year is the longest range
	rng, err = NewDateRange(NewDate(2024, time.January, 1), NewDate(2024, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, MaxRangeDays, rng.Len())

	_, err = NewDateRange(NewDate(2024, time.January, 1), NewDate(2025, time.January, 1))
	assert.Equal(t, ErrInvalidRange, errors.Cause(err))

	_, err = NewDateRange(NewDate(2, time.January, 1), NewDate(9999, time.December, 31))
	assert.Equal(t, ErrInvalidRange, errors.Cause(err))

	inverted := DateRange{Start: day(2), End: day(1)}
	assert.Zero(t, inverted.Len())
	assert.Empty(t, inverted.Days())
}
