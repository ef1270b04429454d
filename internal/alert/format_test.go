package alert

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		miles float64
		want  string
	}{
		{0.1, "528 ft"},
		{0.5, "2640 ft"},
		{0.9999, "5279 ft"},
		{1, "1.0 mi"},
		{2.03, "2.0 mi"},
		{12.46, "12.5 mi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDistance(tt.miles))
	}
}

func TestCategoryEmoji(t *testing.T) {
	assert.Equal(t, "🔴", CategoryEmoji(domain.CategoryCritical))
	assert.Equal(t, "🟠", CategoryEmoji(domain.CategoryActive))
	assert.Equal(t, "🟡", CategoryEmoji(domain.CategoryObserved))
	assert.Equal(t, "⚪", CategoryEmoji(domain.CategoryOther))
	assert.Equal(t, "📍", CategoryEmoji(domain.Category("")))
}

func TestFormatter_Broadcast(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	f := NewFormatter("https://map.example.org/", loc)

	msg := f.Broadcast(testReport())
	want := "🟠 <b>ACTIVE: ACTIVE - Lake St &amp; Chicago Ave</b>\n\n" +
		"📍 Lake St &amp; Chicago Ave\n" +
		"🕐 10:39 AM\n\n" +
		"two vehicles &lt;near&gt; the bus stop\n\n" +
		"<a href=\"https://map.example.org/?report=r-1\">View on map →</a>\n\n" +
		"⚠️ Always verify with local rapid response networks"
	assert.Equal(t, want, msg.Text)
	assert.Zero(t, msg.DistanceMiles)
}

func TestFormatter_DirectIncludesDistance(t *testing.T) {
	f := NewFormatter("", nil)
	r := testReport()
	r.Address = ""
	r.Description = ""

	msg := f.Direct(r, 0.244)
	assert.Contains(t, msg.Text, "🚨 <b>Alert: 1288 ft from your location</b>")
	assert.NotContains(t, msg.Text, "📍")
	assert.NotContains(t, msg.Text, "View on map")
	assert.Contains(t, msg.Text, "🕐 4:39 PM", "nil location renders UTC")
}

func TestFormatter_FallsBackToIngestTime(t *testing.T) {
	f := NewFormatter("", time.UTC)
	r := domain.Report{IngestedAt: time.Date(2026, 1, 15, 0, 5, 0, 0, time.UTC)}
	assert.Equal(t, "12:05 AM", f.LocalTime(r))
}
