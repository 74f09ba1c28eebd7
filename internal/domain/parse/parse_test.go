package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYesNo(t *testing.T) {
	cases := []struct {
		input string
		value bool
		ok    bool
	}{
		{"ya", true, true},
		{"Iya dong", true, true},
		{"boleh", true, true},
		{"tidak", false, true},
		{"nggak", false, true},
		{"belum", false, true}, // overlaps with check-in "not yet"
		{"mungkin", false, false},
		{"", false, false},
	}
	for _, tc := range cases {
		value, ok := YesNo(tc.input)
		assert.Equal(t, tc.ok, ok, "input %q", tc.input)
		if tc.ok {
			assert.Equal(t, tc.value, value, "input %q", tc.input)
		}
	}
}

func TestClockTime(t *testing.T) {
	valid := map[string]string{
		"7":     "07:00",
		"23":    "23:00",
		"7:5":   "07:05",
		"07:30": "07:30",
		"17.05": "17:05",
		"730":   "07:30",
		"1705":  "17:05",
		" 9 ":   "09:00",
	}
	for input, want := range valid {
		got, ok := ClockTime(input)
		require.True(t, ok, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	for _, input := range []string{"24", "2460", "12:60", "99:99", "jam lima", ""} {
		_, ok := ClockTime(input)
		assert.False(t, ok, "input %q", input)
	}
}

func TestCalendarDate(t *testing.T) {
	assert.Equal(t, "2024-01-31", CalendarDate("2024-01-31").Day)
	assert.Equal(t, "2024-01-31", CalendarDate("2024/01/31").Day)
	assert.Equal(t, "2024-01-31", CalendarDate("31-01-2024").Day)
	assert.Equal(t, "2024-01-31", CalendarDate("31/01/2024").Day)
	assert.Equal(t, "2024-02-05", CalendarDate("5-2-2024").Day)

	for _, input := range []string{"2024-99-99", "2024-13-01", "31-02-2024", "kemarin", ""} {
		d := CalendarDate(input)
		assert.False(t, d.Valid(), "input %q", input)
	}

	d := CalendarDate("31-01-2024")
	assert.Equal(t, "31-01-2024", d.Raw)
}

func TestCheckinAnswer(t *testing.T) {
	got, ok := CheckinAnswer("Sudah ✅")
	require.True(t, ok)
	assert.Equal(t, AnswerDone, got)

	got, ok = CheckinAnswer("udah kok")
	require.True(t, ok)
	assert.Equal(t, AnswerDone, got)

	got, ok = CheckinAnswer("belum nih")
	require.True(t, ok)
	assert.Equal(t, AnswerNotYet, got)

	_, ok = CheckinAnswer("nanti dulu")
	assert.False(t, ok)
}

func TestDeliveryAnswer(t *testing.T) {
	delivered, ok := DeliveryAnswer("sudah melahirkan")
	require.True(t, ok)
	assert.True(t, delivered)

	delivered, ok = DeliveryAnswer("belum lahiran")
	require.True(t, ok)
	assert.False(t, delivered)

	// Without the delivery keyword the classifier must stay silent so plain
	// check-in answers are not misrouted.
	_, ok = DeliveryAnswer("sudah")
	assert.False(t, ok)
	_, ok = DeliveryAnswer("belum")
	assert.False(t, ok)
}

func TestParseAdminCommand(t *testing.T) {
	assert.Nil(t, ParseAdminCommand("halo"))

	cmd := ParseAdminCommand("admin")
	require.NotNil(t, cmd)
	assert.Equal(t, "help", cmd.Action)

	cmd = ParseAdminCommand("admin allow 628123")
	require.NotNil(t, cmd)
	assert.Equal(t, "allow", cmd.Action)
	assert.Equal(t, []string{"628123"}, cmd.Args)
	assert.Equal(t, "628123", cmd.RawArgs)

	cmd = ParseAdminCommand("admin purge logs 90")
	require.NotNil(t, cmd)
	assert.Equal(t, "purge", cmd.Action)
	assert.Equal(t, []string{"logs", "90"}, cmd.Args)
}

func TestGreetingAndAlwaysCommand(t *testing.T) {
	assert.True(t, Greeting("Halo"))
	assert.True(t, Greeting("assalamualaikum"))
	assert.False(t, Greeting("halo semuanya"))

	assert.True(t, AlwaysCommand("help"))
	assert.True(t, AlwaysCommand("hapus"))
	assert.False(t, AlwaysCommand("start"))
}
