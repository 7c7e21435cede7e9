package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *Repository {
	t.Helper()

	require.NoError(t, Init(filepath.Join(t.TempDir(), "kinetic.db")))
	return NewRepository()
}

func TestRepository_SaveAndRecent(t *testing.T) {
	repo := setupDB(t)

	runs := []Run{
		{JobID: "750a", Kind: "bulk", Operation: "insert", Object: "Account", Status: StatusSuccess, State: "JobComplete", Processed: 100, RanAt: time.Now().Add(-2 * time.Hour)},
		{JobID: "750b", Kind: "bulk", Operation: "update", Object: "Contact", Status: StatusFailed, State: "Failed", ErrMsg: "limit exceeded", RanAt: time.Now().Add(-time.Hour)},
		{JobID: "0Af1", Kind: "deploy", Status: StatusSuccess, State: "Succeeded", RanAt: time.Now()},
	}
	for _, run := range runs {
		require.NoError(t, repo.Save(run))
	}

	recent, err := repo.GetRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "0Af1", recent[0].JobID, "newest first")
	require.Equal(t, "750b", recent[1].JobID)
}

func TestRepository_Stats(t *testing.T) {
	repo := setupDB(t)

	require.NoError(t, repo.Save(Run{JobID: "1", Kind: "bulk", Status: StatusSuccess}))
	require.NoError(t, repo.Save(Run{JobID: "2", Kind: "bulk", Status: StatusFailed}))
	require.NoError(t, repo.Save(Run{JobID: "3", Kind: "query", Status: StatusSuccess}))

	stats, err := repo.GetStats()
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Total)
	require.EqualValues(t, 2, stats.Success)
	require.EqualValues(t, 1, stats.Failed)
}

func TestRepository_GetFailed(t *testing.T) {
	repo := setupDB(t)

	require.NoError(t, repo.Save(Run{JobID: "1", Kind: "bulk", Status: StatusSuccess}))
	require.NoError(t, repo.Save(Run{JobID: "2", Kind: "deploy", Status: StatusFailed, ErrMsg: "component failure"}))

	failed, err := repo.GetFailed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "2", failed[0].JobID)
	require.Equal(t, "component failure", failed[0].ErrMsg)
}

func TestRepository_SaveFillsRanAt(t *testing.T) {
	repo := setupDB(t)

	require.NoError(t, repo.Save(Run{JobID: "1", Kind: "bulk", Status: StatusSuccess}))

	recent, err := repo.GetRecent(1)
	require.NoError(t, err)
	require.False(t, recent[0].RanAt.IsZero())
}
