package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/semandoc/domain/document"
)

func TestStore_SaveAndReopen(t *testing.T) {
	dir := t.TempDir()
	emb := newVocabEmbedder(64)
	ctx := context.Background()

	s := openStore(t, dir, emb, WithName("kb"))
	start := time.Unix(1_700_000_000, 0)
	inserted, err := s.AddDocuments(ctx, []document.Document{
		doc(t, "hello world", document.WithTags("t1"), document.WithCategories("c1"), document.WithStartTime(start)),
		doc(t, "goodbye moon", document.WithValidTime(3600), document.WithStartTime(time.Now())),
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)

	require.NoError(t, s.Save(ctx))
	assert.False(t, s.LastSave().IsZero())
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(dir, "kb.index"))
	assert.FileExists(t, filepath.Join(dir, "kb.docs"))
	assert.NoFileExists(t, filepath.Join(dir, "kb_backup.index"))
	assert.NoFileExists(t, filepath.Join(dir, "kb_backup.docs"))

	reopened := openStore(t, dir, emb, WithName("kb"))
	assert.Equal(t, 2, reopened.Count())
	assert.Equal(t, document.IDs(inserted), document.IDs(reopened.List()))
	assertConsistent(t, reopened)

	got, err := reopened.Get(inserted[0].ID())
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Content())
	assert.Equal(t, []string{"t1"}, got.Metadata().Tags())
	assert.Equal(t, []string{"c1"}, got.Metadata().Categories())
	assert.True(t, start.Equal(got.Metadata().StartTime()))

	got, err = reopened.Get(inserted[1].ID())
	require.NoError(t, err)
	assert.Equal(t, int64(3600), got.Metadata().ValidTime())

	results, err := reopened.Search(ctx, "goodbye moon", WithK(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, inserted[1].ID(), results[0].Document().ID())

	again, err := reopened.AddDocuments(ctx, []document.Document{doc(t, "Hello, world")})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestStore_SaveAndReopenEmpty(t *testing.T) {
	dir := t.TempDir()
	emb := newVocabEmbedder(16)

	s := openStore(t, dir, emb)
	require.NoError(t, s.Save(context.Background()))
	require.NoError(t, s.Close())

	reopened := openStore(t, dir, emb)
	assert.Equal(t, 0, reopened.Count())
	results, err := reopened.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOpen_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir, newVocabEmbedder(64))
	_, err := s.AddDocuments(context.Background(), []document.Document{doc(t, "alpha")})
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background()))
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), dir, newVocabEmbedder(32), WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestOpen_EmbedderUnavailable(t *testing.T) {
	emb := newVocabEmbedder(8)
	emb.setFail(errEmbedderDown)
	_, err := Open(context.Background(), t.TempDir(), emb, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, errEmbedderDown)
}

func TestOpen_LoneFileIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.docs"), []byte("x"), 0o644))

	_, err := Open(context.Background(), dir, newVocabEmbedder(8), WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrCorruptStore)
}

func TestOpen_GarbageIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.index"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.docs"), []byte("garbage"), 0o644))

	_, err := Open(context.Background(), dir, newVocabEmbedder(8), WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrCorruptStore)
}

func TestStore_SaveFailureRestoresPreviousFiles(t *testing.T) {
	dir := t.TempDir()
	emb := newVocabEmbedder(64)
	ctx := context.Background()
	s := openStore(t, dir, emb)

	_, err := s.AddDocuments(ctx, []document.Document{doc(t, "alpha")})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))

	indexBefore, err := os.ReadFile(s.IndexPath())
	require.NoError(t, err)
	docsBefore, err := os.ReadFile(s.DocsPath())
	require.NoError(t, err)

	_, err = s.AddDocuments(ctx, []document.Document{doc(t, "beta")})
	require.NoError(t, err)

	emb.setFail(errEmbedderDown)
	err = s.Save(ctx)
	require.ErrorIs(t, err, errEmbedderDown)
	emb.setFail(nil)

	indexAfter, err := os.ReadFile(s.IndexPath())
	require.NoError(t, err)
	docsAfter, err := os.ReadFile(s.DocsPath())
	require.NoError(t, err)
	assert.Equal(t, indexBefore, indexAfter)
	assert.Equal(t, docsBefore, docsAfter)
	assert.NoFileExists(t, filepath.Join(dir, "index_backup.index"))
	assert.NoFileExists(t, filepath.Join(dir, "index_backup.docs"))

	// A temp path occupied by a non-empty directory makes the write fail.
	blocker := filepath.Join(dir, "index.docs.tmp")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "x"), 0o755))
	err = s.Save(ctx)
	require.Error(t, err)

	docsAfter, err = os.ReadFile(s.DocsPath())
	require.NoError(t, err)
	assert.Equal(t, docsBefore, docsAfter)

	require.NoError(t, os.RemoveAll(blocker))
	require.NoError(t, s.Save(ctx))
	require.NoError(t, s.Close())

	reopened := openStore(t, dir, emb)
	assert.Equal(t, 2, reopened.Count())
}

func TestStore_FirstSaveFailureLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir, newVocabEmbedder(16))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "index.docs.tmp", "x"), 0o755))

	require.Error(t, s.Save(context.Background()))
	assert.NoFileExists(t, s.IndexPath())
	assert.NoFileExists(t, s.DocsPath())
}

func TestOpen_RecoversInterruptedSave(t *testing.T) {
	dir := t.TempDir()
	emb := newVocabEmbedder(64)
	ctx := context.Background()

	s := openStore(t, dir, emb)
	_, err := s.AddDocuments(ctx, []document.Document{doc(t, "alpha"), doc(t, "beta")})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))
	require.NoError(t, s.Close())

	// Simulate a crash after the backup step and a half-written rename.
	for _, name := range []string{"index.index", "index.docs"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		backup := filepath.Join(dir, "index_backup"+filepath.Ext(name))
		require.NoError(t, os.WriteFile(backup, data, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.index"), []byte("torn"), 0o644))

	reopened := openStore(t, dir, emb)
	assert.Equal(t, 2, reopened.Count())
	assert.NoFileExists(t, filepath.Join(dir, "index_backup.index"))
}

func TestStore_SaveAsync(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.AddDocuments(context.Background(), []document.Document{doc(t, "alpha")})
	require.NoError(t, err)

	assert.True(t, s.SaveAsync())
	require.Eventually(t, func() bool {
		_, err := os.Stat(s.DocsPath())
		return err == nil && !s.LastSave().IsZero()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStore_SaveAfterClose(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Save(context.Background()), ErrClosed)
	assert.False(t, s.SaveAsync())
}

func TestStore_ConcurrentSavesSerialize(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	_, err := s.AddDocuments(ctx, []document.Document{doc(t, "alpha")})
	require.NoError(t, err)

	errs := make(chan error, 5)
	for range 5 {
		go func() { errs <- s.Save(ctx) }()
	}
	for range 5 {
		assert.NoError(t, <-errs)
	}
	assert.NoFileExists(t, filepath.Join(filepath.Dir(s.IndexPath()), "index_backup.index"))
}

func TestOpen_DiscardsTornBackup(t *testing.T) {
	dir := t.TempDir()
	emb := newVocabEmbedder(64)
	ctx := context.Background()

	s := openStore(t, dir, emb)
	_, err := s.AddDocuments(ctx, []document.Document{doc(t, "alpha"), doc(t, "beta")})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))
	require.NoError(t, s.Close())

	indexData, err := os.ReadFile(filepath.Join(dir, "index.index"))
	require.NoError(t, err)
	docsData, err := os.ReadFile(filepath.Join(dir, "index.docs"))
	require.NoError(t, err)

	t.Run("half written backup pair", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index_backup.index"), indexData[:len(indexData)/2], 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index_backup.docs"), docsData, 0o644))

		reopened := openStore(t, dir, emb)
		assert.Equal(t, 2, reopened.Count())
		assertConsistent(t, reopened)
		require.NoError(t, reopened.Close())
		assert.NoFileExists(t, filepath.Join(dir, "index_backup.index"))
		assert.NoFileExists(t, filepath.Join(dir, "index_backup.docs"))
	})

	t.Run("only one backup written", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index_backup.index"), indexData, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index_backup.docs.tmp"), docsData[:1], 0o644))

		reopened := openStore(t, dir, emb)
		assert.Equal(t, 2, reopened.Count())
		require.NoError(t, reopened.Close())
		assert.NoFileExists(t, filepath.Join(dir, "index_backup.index"))
		assert.NoFileExists(t, filepath.Join(dir, "index_backup.docs.tmp"))
	})
}
