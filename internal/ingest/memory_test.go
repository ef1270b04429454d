package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

func TestMemoryReportStore_ListByStatusNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryReportStore()
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, domain.Report{ID: "old", Status: domain.StatusApproved, IngestedAt: base}))
	require.NoError(t, s.Create(ctx, domain.Report{ID: "newest", Status: domain.StatusApproved, IngestedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, s.Create(ctx, domain.Report{ID: "middle", Status: domain.StatusApproved, IngestedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Create(ctx, domain.Report{ID: "pending", Status: domain.StatusPending, IngestedAt: base.Add(3 * time.Hour)}))

	got, err := s.ListByStatus(ctx, domain.StatusApproved, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"newest", "middle", "old"}, ids)

	got, err = s.ListByStatus(ctx, domain.StatusApproved, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newest", got[0].ID)
	assert.Equal(t, "middle", got[1].ID)
}
