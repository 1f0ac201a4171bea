package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	assert.Equal(t, NewDate(2024, time.January, 1), ParseDate("2024-01-01"))

	for _, bad := range []string{"", "2024-1-01", "2024/01/01", "2024-02-30", "2024-01-01T00:00:00Z", " 2024-01-01", "abcd-ef-gh"} {
		assert.False(t, ParseDate(bad).Valid(), "expected %q to be absent", bad)
	}
}

func TestDateOfUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	ts := time.Date(2024, time.March, 4, 22, 30, 0, 0, loc)
	assert.Equal(t, "2024-03-04", DateOf(ts).String())
	assert.False(t, DateOf(time.Time{}).Valid())
}

func TestDateJSON(t *testing.T) {
	var item Item
	err := json.Unmarshal([]byte(`{"id":"a","planned_start_date":"01/02/2024","planned_end_date":"2024-02-01"}`), &item)
	require.NoError(t, err)
	assert.False(t, item.PlannedStartDate.Valid(), "malformed date is absent")
	assert.Equal(t, "2024-02-01", item.PlannedEndDate.String())

	err = json.Unmarshal([]byte(`{"id":"b","planned_start_date":20240101,"planned_end_date":null}`), &item)
	require.NoError(t, err)
	assert.False(t, item.PlannedStartDate.Valid())
	assert.False(t, item.PlannedEndDate.Valid())

	out, err := json.Marshal(Update{ID: "x", PlannedEndDate: d("2024-01-04")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","planned_start_date":null,"planned_end_date":"2024-01-04","planned_duration_days":0,"overdue_days":0}`, string(out))
}

func TestDateComparisons(t *testing.T) {
	a, b := d("2024-01-01"), d("2024-01-02")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Before(Date{}))
	assert.False(t, Date{}.After(a))
	assert.True(t, Date{}.Equal(Date{}))
	assert.False(t, a.Equal(Date{}))

	assert.Equal(t, b, laterOf(a, b))
	assert.Equal(t, b, laterOf(b, a))
	assert.Equal(t, a, laterOf(Date{}, a))
	assert.Equal(t, a, laterOf(a, Date{}))
	assert.False(t, laterOf(Date{}, Date{}).Valid())
}
