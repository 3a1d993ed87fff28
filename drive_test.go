package litdrive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/litdrive/litdrive"
	"github.com/litdrive/litdrive/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *litdrive.Registry {
	t.Helper()

	reg := litdrive.NewRegistry()
	require.NoError(t, reg.Register("lit", memory.NewProvider()))

	return reg
}

func newTestDrive(t *testing.T, reg *litdrive.Registry, raw, component string, options ...litdrive.Option) *litdrive.Drive {
	t.Helper()

	options = append([]litdrive.Option{
		litdrive.WithRegistry(reg),
		litdrive.WithRootFolder(t.TempDir()),
		litdrive.WithPollInterval(25 * time.Millisecond),
	}, options...)

	d, err := litdrive.New(raw, options...)
	require.NoError(t, err)

	if component != "" {
		d.BindComponent(component)
	}

	return d
}

func writeFile(t *testing.T, d *litdrive.Drive, rel, content string) {
	t.Helper()

	p := filepath.Join(d.RootFolder(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, d *litdrive.Drive, rel string) string {
	t.Helper()

	b, err := os.ReadFile(filepath.Join(d.RootFolder(), filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(b)
}

func TestNew_invalidIdentifier(t *testing.T) {
	_, err := litdrive.New("this_drive_id")
	var invalidErr litdrive.InvalidIdentifierError
	assert.ErrorAs(t, err, &invalidErr)

	_, err = litdrive.New("lit://this_drive_id/something_else")
	assert.ErrorAs(t, err, &invalidErr)
}

func TestPut_missingComponent(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	d := newTestDrive(t, reg, "lit://drive", "")
	writeFile(t, d, "a.txt", "example")

	err := d.Put(ctx, "a.txt")

	var missingErr litdrive.MissingOwnerError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, litdrive.OpPut, missingErr.Op)

	// No mutation happened.
	other := newTestDrive(t, reg, "lit://drive", "root.work")
	paths, err := other.List(ctx, ".")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDelete_missingComponent(t *testing.T) {
	ctx := context.Background()
	d := newTestDrive(t, newTestRegistry(t), "lit://drive", "")

	err := d.Delete(ctx, "a.txt")

	var missingErr litdrive.MissingOwnerError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, litdrive.OpDelete, missingErr.Op)
}

func TestPutListGet(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	producer := newTestDrive(t, reg, "lit://drive_1", "root.work_1")
	writeFile(t, producer, "a.txt", "example")

	paths, err := producer.List(ctx, ".")
	require.NoError(t, err)
	assert.Empty(t, paths)

	require.NoError(t, producer.Put(ctx, "a.txt"))

	paths, err = producer.List(ctx, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, paths)

	consumer := newTestDrive(t, reg, "lit://drive_1", "root.work_2")
	require.NoError(t, consumer.Get(ctx, "a.txt"))
	assert.Equal(t, "example", readFile(t, consumer, "a.txt"))
}

func TestPut_duplicate(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	a := newTestDrive(t, reg, "lit://drive_1", "root.work_1")
	b := newTestDrive(t, reg, "lit://drive_1", "root.work_2")
	writeFile(t, a, "a.txt", "example")
	writeFile(t, b, "a.txt", "example")

	require.NoError(t, a.Put(ctx, "a.txt"))

	// Re-publishing one's own path is idempotent.
	require.NoError(t, a.Put(ctx, "a.txt"))

	err := b.Put(ctx, "a.txt")
	var dupErr litdrive.DuplicateFileError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "a.txt", dupErr.Path)
	assert.Equal(t, "root.work_1", dupErr.Component)
}

func TestPut_duplicateInsideDirectory(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	a := newTestDrive(t, reg, "lit://drive_3", "root.work_1")
	b := newTestDrive(t, reg, "lit://drive_3", "root.work_2")
	writeFile(t, a, "checkpoints/a.txt", "example")
	writeFile(t, b, "checkpoints/a.txt", "example")

	require.NoError(t, a.Put(ctx, "checkpoints/"))

	err := b.Put(ctx, "checkpoints/a.txt")
	var dupErr litdrive.DuplicateFileError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "checkpoints/a.txt", dupErr.Path)
}

func TestAllowDuplicates(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	a := newTestDrive(t, reg, "lit://drive_3", "root.work_1", litdrive.AllowDuplicates(true))
	b := newTestDrive(t, reg, "lit://drive_3", "root.work_2", litdrive.AllowDuplicates(true))
	writeFile(t, a, "checkpoints/a.txt", "from work_1")
	writeFile(t, b, "checkpoints/a.txt", "from work_2")

	require.NoError(t, a.Put(ctx, "checkpoints/"))
	require.NoError(t, b.Put(ctx, "checkpoints/"))

	reader := newTestDrive(t, reg, "lit://drive_3", "root.work_3", litdrive.AllowDuplicates(true))

	err := reader.Get(ctx, "checkpoints/a.txt")
	var ambiguousErr litdrive.AmbiguousSourceError
	require.ErrorAs(t, err, &ambiguousErr)
	assert.Equal(t, []string{"root.work_1", "root.work_2"}, ambiguousErr.Components)

	// Still ambiguous after the timeout budget is spent.
	err = reader.Get(ctx, "checkpoints/a.txt", litdrive.WithTimeout(100*time.Millisecond))
	require.ErrorAs(t, err, &ambiguousErr)

	require.NoError(t, reader.Get(ctx, "checkpoints/a.txt", litdrive.FromComponent("root.work_1")))
	assert.Equal(t, "from work_1", readFile(t, reader, "checkpoints/a.txt"))
}

func TestGet_notFound(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	d := newTestDrive(t, reg, "lit://drive_4", "root.work_1", litdrive.AllowDuplicates(true))

	err := d.Get(ctx, "checkpoints/a.txt")
	var notFoundErr litdrive.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Zero(t, notFoundErr.Waited)

	start := time.Now()
	err = d.Get(ctx, "checkpoints/a.txt", litdrive.WithTimeout(150*time.Millisecond))
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, 150*time.Millisecond, notFoundErr.Waited)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestGet_pinnedComponentNotFound(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	d := newTestDrive(t, reg, "lit://drive_3", "root.work_1", litdrive.AllowDuplicates(true))
	writeFile(t, d, "checkpoints/a.txt", "example")
	require.NoError(t, d.Put(ctx, "checkpoints/"))

	err := d.Get(ctx, "checkpoints/b.txt", litdrive.FromComponent("root.work_1"))
	var notFoundErr litdrive.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "root.work_1", notFoundErr.Namespace)
}

func TestGet_waitsForProducer(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	producer := newTestDrive(t, reg, "lit://race", "root.work_a")
	consumer := newTestDrive(t, reg, "lit://race", "root.work_b")
	writeFile(t, producer, "a.txt", "example")

	go func() {
		time.Sleep(150 * time.Millisecond)
		producer.Put(ctx, "a.txt")
	}()

	start := time.Now()
	require.NoError(t, consumer.Get(ctx, "a.txt", litdrive.WithTimeout(5*time.Second)))

	// Resolved as soon as the producer published, not after the full timeout.
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "example", readFile(t, consumer, "a.txt"))
}

func TestGet_cancelled(t *testing.T) {
	reg := newTestRegistry(t)
	d := newTestDrive(t, reg, "lit://drive", "root.work")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := d.Get(ctx, "a.txt", litdrive.WithTimeout(5*time.Second))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGet_overwrite(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	producer := newTestDrive(t, reg, "lit://test", "root.work1", litdrive.AllowDuplicates(true))
	writeFile(t, producer, "checkpoints/a.txt", "published")
	require.NoError(t, producer.Put(ctx, "checkpoints"))

	// The local copy still exists, so a plain get collides.
	err := producer.Get(ctx, "checkpoints")
	var existsErr litdrive.AlreadyExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Contains(t, err.Error(), "Overwrite")

	writeFile(t, producer, "checkpoints/a.txt", "modified locally")
	require.NoError(t, producer.Get(ctx, "checkpoints", litdrive.Overwrite(true)))
	assert.Equal(t, "published", readFile(t, producer, "checkpoints/a.txt"))
}

func TestGet_driveRoot(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	producer := newTestDrive(t, reg, "lit://root_get", "root.work_1")
	writeFile(t, producer, "a.txt", "published")
	writeFile(t, producer, "checkpoints/b.txt", "nested")
	require.NoError(t, producer.Put(ctx, "."))

	consumer := newTestDrive(t, reg, "lit://root_get", "root.work_2")
	require.NoError(t, consumer.Get(ctx, "."))
	assert.Equal(t, "published", readFile(t, consumer, "a.txt"))
	assert.Equal(t, "nested", readFile(t, consumer, "checkpoints/b.txt"))

	// A second plain get collides on the fetched files, not on the root
	// folder itself.
	err := consumer.Get(ctx, ".")
	var existsErr litdrive.AlreadyExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, "a.txt", existsErr.Path)
}

func TestGet_driveRootOverwrite(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	producer := newTestDrive(t, reg, "lit://root_get_2", "root.work_1")
	writeFile(t, producer, "a.txt", "published")
	require.NoError(t, producer.Put(ctx, "a.txt"))

	consumer := newTestDrive(t, reg, "lit://root_get_2", "root.work_2")
	writeFile(t, consumer, "a.txt", "stale")
	writeFile(t, consumer, "precious.txt", "keep me")

	require.NoError(t, consumer.Get(ctx, ".", litdrive.Overwrite(true)))

	// The stale copy was replaced; unrelated local files survived.
	assert.Equal(t, "published", readFile(t, consumer, "a.txt"))
	assert.Equal(t, "keep me", readFile(t, consumer, "precious.txt"))

	// The staging directory was cleaned up.
	entries, err := os.ReadDir(consumer.RootFolder())
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".litdrive-")
	}
}

func TestGet_directory(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	producer := newTestDrive(t, reg, "lit://dirs", "root.work_1")
	writeFile(t, producer, "checkpoints/epoch_1/weights.bin", "w1")
	writeFile(t, producer, "checkpoints/epoch_2/weights.bin", "w2")
	require.NoError(t, producer.Put(ctx, "checkpoints"))

	consumer := newTestDrive(t, reg, "lit://dirs", "root.work_2")
	require.NoError(t, consumer.Get(ctx, "checkpoints"))
	assert.Equal(t, "w1", readFile(t, consumer, "checkpoints/epoch_1/weights.bin"))
	assert.Equal(t, "w2", readFile(t, consumer, "checkpoints/epoch_2/weights.bin"))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	a := newTestDrive(t, reg, "lit://drive_3", "root.work_1", litdrive.AllowDuplicates(true))
	b := newTestDrive(t, reg, "lit://drive_3", "root.work_2", litdrive.AllowDuplicates(true))
	writeFile(t, a, "checkpoints/a.txt", "example")
	writeFile(t, b, "checkpoints/a.txt", "example")

	require.NoError(t, a.Put(ctx, "checkpoints/"))

	// b never published, so there is nothing to delete in its namespace.
	err := b.Delete(ctx, "checkpoints/a.txt")
	var notFoundErr litdrive.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "root.work_2", notFoundErr.Namespace)

	require.NoError(t, b.Put(ctx, "checkpoints/a.txt"))
	require.NoError(t, b.Delete(ctx, "checkpoints/a.txt"))

	// a's copy is untouched.
	paths, err := a.List(ctx, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"checkpoints/a.txt"}, paths)

	paths, err = a.List(ctx, ".", litdrive.InComponent("root.work_2"))
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestList_scopedToComponent(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	a := newTestDrive(t, reg, "lit://drive", "root.work_1", litdrive.AllowDuplicates(true))
	b := newTestDrive(t, reg, "lit://drive", "root.work_2", litdrive.AllowDuplicates(true))
	writeFile(t, a, "a.txt", "example")
	writeFile(t, b, "b.txt", "example")

	require.NoError(t, a.Put(ctx, "a.txt"))
	require.NoError(t, b.Put(ctx, "b.txt"))

	paths, err := a.List(ctx, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, paths)

	paths, err = a.List(ctx, ".", litdrive.InComponent("root.work_2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, paths)
}

func TestCoordinatorGuard(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	d := newTestDrive(t, reg, "lit://drive_5", "root.work", litdrive.WithGuard(litdrive.Coordinator))
	writeFile(t, d, "a.txt", "example")

	var ctxErr litdrive.ContextError

	err := d.Put(ctx, "a.txt")
	require.ErrorAs(t, err, &ctxErr)
	assert.Equal(t, litdrive.OpPut, ctxErr.Op)

	_, err = d.List(ctx, "a.txt")
	require.ErrorAs(t, err, &ctxErr)
	assert.Equal(t, litdrive.OpList, ctxErr.Op)

	err = d.Get(ctx, "a.txt")
	require.ErrorAs(t, err, &ctxErr)
	assert.Equal(t, litdrive.OpGet, ctxErr.Op)

	err = d.Delete(ctx, "a.txt")
	require.ErrorAs(t, err, &ctxErr)
	assert.Equal(t, litdrive.OpDelete, ctxErr.Op)

	// The guard rejected everything before touching the backend.
	worker := newTestDrive(t, reg, "lit://drive_5", "root.work")
	paths, err := worker.List(ctx, ".")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDrive_unregisteredProtocol(t *testing.T) {
	reg := litdrive.NewRegistry()

	d, err := litdrive.New("s3://drive", litdrive.WithRegistry(reg), litdrive.WithRootFolder(t.TempDir()))
	require.NoError(t, err)
	d.BindComponent("root.work")

	_, err = d.List(context.Background(), ".")

	var unregisteredErr litdrive.UnregisteredProviderError
	require.ErrorAs(t, err, &unregisteredErr)
	assert.Equal(t, "s3://", unregisteredErr.Protocol)
}
