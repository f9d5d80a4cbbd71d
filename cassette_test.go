package grpcvcr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenNoneModeMissingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Open(path, None, nil)
	require.Error(t, err)
	var notFound *CassetteNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, path, notFound.Path)
}

func TestOpenOnceModeMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	cass, err := Open(path, Once, nil)
	require.NoError(t, err)
	assert.True(t, cass.CanRecord())
	assert.Empty(t, cass.Episodes())
}

func TestNewEpisodesRecordsInInsertionOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cassette.yaml")
	cass, err := Open(path, NewEpisodes, nil)
	require.NoError(t, err)

	cass.Record(Episode{RPCType: Unary, Request: rr("/a/B", "id:1", nil), Response: ResponseRecord{Code: "OK"}})
	cass.Record(Episode{RPCType: Unary, Request: rr("/a/B", "id:2", nil), Response: ResponseRecord{Code: "OK"}})

	episodes := cass.Episodes()
	require.Len(t, episodes, 2)
	assert.Equal(t, "id:1", string(episodes[0].Request.Body))
	assert.Equal(t, "id:2", string(episodes[1].Request.Body))

	ep, ok := cass.Find(rr("/a/B", "id:1", nil))
	require.True(t, ok)
	assert.Equal(t, "id:1", string(ep.Request.Body))
}

func TestAllModeOverwritesMatchingEpisode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cassette.yaml")
	cass, err := Open(path, NewEpisodes, nil)
	require.NoError(t, err)
	cass.Record(Episode{RPCType: Unary, Request: rr("/a/B", "id:1", nil), Response: ResponseRecord{Code: "OK", Body: []byte("old")}})
	cass.Record(Episode{RPCType: Unary, Request: rr("/a/B", "id:2", nil), Response: ResponseRecord{Code: "OK", Body: []byte("bob")}})
	require.NoError(t, cass.Save())

	reopened, err := Open(path, All, And(MethodMatcher{}, RequestMatcher{}))
	require.NoError(t, err)
	reopened.Record(Episode{RPCType: Unary, Request: rr("/a/B", "id:1", nil), Response: ResponseRecord{Code: "OK", Body: []byte("new")}})

	episodes := reopened.Episodes()
	require.Len(t, episodes, 2)
	assert.Equal(t, "id:2", string(episodes[0].Request.Body))
	assert.Equal(t, "id:1", string(episodes[1].Request.Body))
	assert.Equal(t, "new", string(episodes[1].Response.Body))
}

func TestSaveIsNoOpWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cassette.yaml")
	cass, err := Open(path, NewEpisodes, nil)
	require.NoError(t, err)
	cass.Record(Episode{RPCType: Unary, Request: rr("/a/B", "id:1", nil), Response: ResponseRecord{Code: "OK"}})
	require.NoError(t, cass.Save())

	info1, err := os.Stat(path)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, cass.Save())

	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info1.ModTime(), info2.ModTime())
}

func TestOnceModeLocksAfterNonEmptyOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cassette.yaml")
	cass, err := Open(path, Once, nil)
	require.NoError(t, err)
	cass.Record(Episode{RPCType: Unary, Request: rr("/a/B", "id:1", nil), Response: ResponseRecord{Code: "OK"}})
	require.NoError(t, cass.Save())

	reopened, err := Open(path, Once, nil)
	require.NoError(t, err)
	assert.False(t, reopened.CanRecord())
}
