// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
	"github.com/desertthunder/imgset/internal/storage"
)

// MustOpenDB returns a migrated in-memory database closed at test cleanup.
func MustOpenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// MustOpenStore returns a store over an in-memory bucket closed at test cleanup.
func MustOpenStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(context.Background(), "mem://", shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func SeedUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	user := models.NewUser(0, email, "Test User")
	if err := repositories.NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

func SeedLabel(t *testing.T, db *sql.DB, userID, name string) *models.Label {
	t.Helper()
	label := models.NewLabel(0, userID, name)
	if err := repositories.NewLabelRepository(db).Create(context.Background(), label); err != nil {
		t.Fatalf("Failed to seed label: %v", err)
	}
	return label
}

func SeedCsvfile(t *testing.T, db *sql.DB, userID string, labelCol, start, end int) *models.Csvfile {
	t.Helper()
	csvfile := models.NewCsvfile(0, userID, "digits", "", labelCol, start, end)
	if err := repositories.NewCsvfileRepository(db).Create(context.Background(), csvfile); err != nil {
		t.Fatalf("Failed to seed csvfile: %v", err)
	}
	return csvfile
}

// FailingStore is a blob store double that fails every Save after the first Allow calls.
type FailingStore struct {
	Allow int

	mu      sync.Mutex
	saves   int
	Deleted []string
}

func (f *FailingStore) Save(ctx context.Context, field, filenameHint string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saves > f.Allow {
		return "", errors.Join(shared.ErrStorage, errors.New("bucket unavailable"))
	}
	return shared.UploadPath(filenameHint), nil
}

func (f *FailingStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, key)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// FReader simulates a failure when reading an upload body
type FReader struct{}

func (f *FReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FReader) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
