package visitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	base := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	exit := base.Add(2 * time.Hour)
	return []Record{
		{ID: "1", Name: "Aung Aung", NationalID: "12/ABC(N)111", Phone: "0991111", Company: "Acme", EntryAt: base},
		{ID: "2", Name: "Su Su", NationalID: "9/XYZ(N)222", Phone: "0992222", Company: "Globex", EntryAt: base.Add(time.Hour), ExitAt: &exit},
		{ID: "3", Name: "Mg Mg", NationalID: "5/DEF(N)333", Phone: "0993333", Company: "acme labs", EntryAt: base.AddDate(0, 0, -1)},
	}
}

func ids(rs []Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestCriteriaApply(t *testing.T) {
	day := DayRange(time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC), time.UTC)

	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"no criteria", Criteria{}, []string{"1", "2", "3"}},
		{"active", Criteria{Status: StatusActive}, []string{"1", "3"}},
		{"checked out", Criteria{Status: StatusCheckedOut}, []string{"2"}},
		{"search is case insensitive", Criteria{Search: "ACME"}, []string{"1", "3"}},
		{"search national id", Criteria{Search: "xyz"}, []string{"2"}},
		{"search phone", Criteria{Search: "0993"}, []string{"3"}},
		{"range", Criteria{Range: &day}, []string{"1", "2"}},
		{"status and search compose", Criteria{Status: StatusActive, Search: "acme", Range: &day}, []string{"1"}},
		{"blank search ignored", Criteria{Search: "   "}, []string{"1", "2", "3"}},
		{"nothing matches", Criteria{Search: "nobody"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.c.Apply(sampleRecords())))
		})
	}
}

func TestApplyReturnsFreshSlice(t *testing.T) {
	in := sampleRecords()
	out := Criteria{}.Apply(in)
	require.Len(t, out, 3)
	out[0].Name = "changed"
	assert.Equal(t, "Aung Aung", in[0].Name)
}

func TestDateRangeInclusive(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := DateRange{Start: start, End: start.Add(time.Hour)}
	assert.True(t, r.Contains(start))
	assert.True(t, r.Contains(start.Add(time.Hour)))
	assert.False(t, r.Contains(start.Add(-time.Nanosecond)))
	assert.False(t, r.Contains(start.Add(time.Hour+time.Nanosecond)))
}

func TestDayRangeUsesLocation(t *testing.T) {
	yangon := time.FixedZone("MMT", 6*3600+1800)
	// 20:00 UTC on the 10th is already the 11th in Yangon
	r := DayRange(time.Date(2024, 6, 10, 20, 0, 0, 0, time.UTC), yangon)
	assert.Equal(t, 11, r.Start.Day())
	assert.Equal(t, 0, r.Start.Hour())
	assert.Equal(t, r.Start.AddDate(0, 0, 1).Add(-time.Nanosecond), r.End)
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{"": StatusAll, "ALL": StatusAll, " active ": StatusActive, "checked_out": StatusCheckedOut} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseStatus("gone")
	assert.Error(t, err)
}

func TestPatchValidate(t *testing.T) {
	blank, name := " ", "Ko"
	assert.Error(t, Patch{Name: &blank}.Validate())
	assert.Error(t, Patch{Phone: &blank}.Validate())
	assert.NoError(t, Patch{Name: &name, Company: &blank}.Validate())
	assert.True(t, Patch{}.Empty())
	assert.False(t, Patch{Company: &blank}.Empty())
}

func TestStayHours(t *testing.T) {
	entry := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	exit := entry.Add(150 * time.Minute)
	h, ok := Record{EntryAt: entry, ExitAt: &exit}.StayHours()
	assert.True(t, ok)
	assert.Equal(t, 2.5, h)

	_, ok = Record{EntryAt: entry}.StayHours()
	assert.False(t, ok)
}
