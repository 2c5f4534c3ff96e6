package journal

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAssignsIdentityAndTimestamp(t *testing.T) {
	j := openTestJournal(t)

	e := Entry{SessionID: "s1", PromptLen: 12, Parts: 3, Tokens: 450}
	require.NoError(t, j.Append(&e))

	require.NotEmpty(t, e.ID)
	require.False(t, e.CreatedAt.IsZero())
}

func TestAppendRecentRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	e := Entry{
		SessionID: "s1",
		CreatedAt: time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
		PromptLen: 42,
		Parts:     5,
		Fields:    []string{"current_file", "cursor", "vcs"},
		Tokens:    1200,
	}
	require.NoError(t, j.Append(&e))

	got, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.Equal(t, e.ID, got[0].ID)
	require.Equal(t, "s1", got[0].SessionID)
	require.Equal(t, e.CreatedAt, got[0].CreatedAt)
	require.Equal(t, 42, got[0].PromptLen)
	require.Equal(t, 5, got[0].Parts)
	require.Equal(t, []string{"current_file", "cursor", "vcs"}, got[0].Fields)
	require.Equal(t, 1200, got[0].Tokens)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	j := openTestJournal(t)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := Entry{SessionID: "s1", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, j.Append(&e))
	}

	got, err := j.Recent(3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, base.Add(4*time.Minute), got[0].CreatedAt)
	require.Equal(t, base.Add(3*time.Minute), got[1].CreatedAt)
	require.Equal(t, base.Add(2*time.Minute), got[2].CreatedAt)
}

func TestRecentDefaultLimit(t *testing.T) {
	j := openTestJournal(t)

	for i := 0; i < DefaultRecentLimit+5; i++ {
		e := Entry{SessionID: fmt.Sprintf("s%d", i)}
		require.NoError(t, j.Append(&e))
	}

	got, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, got, DefaultRecentLimit)
}

func TestNilFieldsStayNil(t *testing.T) {
	j := openTestJournal(t)

	e := Entry{SessionID: "s1"}
	require.NoError(t, j.Append(&e))

	got, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Nil(t, got[0].Fields)
}

func TestCount(t *testing.T) {
	j := openTestJournal(t)

	n, err := j.Count()
	require.NoError(t, err)
	require.Zero(t, n)

	for i := 0; i < 3; i++ {
		e := Entry{SessionID: "s1"}
		require.NoError(t, j.Append(&e))
	}

	n, err = j.Count()
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestOpenOnDiskCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	e := Entry{SessionID: "s1"}
	require.NoError(t, j.Append(&e))

	n, err := j.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestOpenEmptyPathRejected(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}
