package tasks

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coocood/freecache"

	"github.com/desertthunder/imgset/internal/convert"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
	"github.com/desertthunder/imgset/internal/storage"
	tu "github.com/desertthunder/imgset/internal/testing"
)

type pipeline struct {
	db     *sql.DB
	store  *storage.Store
	engine *UploadEngine
	user   *models.User
}

func newPipeline(t *testing.T, store BlobStore) *pipeline {
	t.Helper()

	db := tu.MustOpenDB(t)
	memStore := tu.MustOpenStore(t)
	if store == nil {
		store = memStore
	}

	logger := shared.NewLogger(io.Discard)
	resolver := NewLabelResolver(repositories.NewLabelRepository(db), freecache.NewCache(512*1024), 60)
	upserter := NewImageUpserter(db, repositories.NewImageRepository(db), store, logger)

	return &pipeline{
		db:     db,
		store:  memStore,
		engine: NewUploadEngine(resolver, upserter, logger),
		user:   tu.SeedUser(t, db, "owner@example.com"),
	}
}

func (p *pipeline) countImages(t *testing.T, csvfile *models.Csvfile) int {
	t.Helper()
	n, err := repositories.NewImageRepository(p.db).Count(context.Background(), map[string]any{"csvfile_id": csvfile.ID()})
	if err != nil {
		t.Fatalf("failed to count images: %v", err)
	}
	return n
}

const catCSV = "label,p0,p1,p2,p3\ncat,0,34,154,29\n"

func TestUploadEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("SingleRow", func(t *testing.T) {
		p := newPipeline(t, nil)
		label := tu.SeedLabel(t, p.db, p.user.ID(), "cat")
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		result, err := p.engine.Process(ctx, csvfile, strings.NewReader(catCSV), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Rows != 1 || result.Side != 2 {
			t.Errorf("expected 1 row of side 2, got %d rows side %d", result.Rows, result.Side)
		}

		images, err := repositories.NewImageRepository(p.db).List(ctx, map[string]any{"csvfile_id": csvfile.ID()})
		if err != nil {
			t.Fatalf("failed to list images: %v", err)
		}
		if len(images) != 1 {
			t.Fatalf("expected exactly 1 image, got %d", len(images))
		}

		image := images[0]
		if image.Name() != csvfile.ID()+"_0" {
			t.Errorf("expected name %s_0, got %s", csvfile.ID(), image.Name())
		}
		if image.LabelID() != label.ID() || image.UserID() != p.user.ID() || image.Row() != 0 {
			t.Errorf("unexpected image key %+v", image.Key())
		}

		data, err := p.store.Read(ctx, image.ArrayPath())
		if err != nil {
			t.Fatalf("failed to read array: %v", err)
		}
		m, err := convert.DecodeArray(data)
		if err != nil {
			t.Fatalf("failed to decode array: %v", err)
		}
		for i, v := range []float64{0.0 / 255, 34.0 / 255, 154.0 / 255, 29.0 / 255} {
			if got := m.At(i/2, i%2); math.Abs(got-v) > 1e-12 {
				t.Errorf("array[%d] = %v, want %v", i, got, v)
			}
		}

		bitmap, err := p.store.Read(ctx, image.ImagePath())
		if err != nil {
			t.Fatalf("failed to read bitmap: %v", err)
		}
		gray, err := convert.DecodeBitmap(bitmap)
		if err != nil {
			t.Fatalf("failed to decode bitmap: %v", err)
		}
		if b := gray.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
			t.Errorf("expected 2x2 bitmap, got %v", b)
		}
		if gray.GrayAt(0, 1).Y != 154 {
			t.Errorf("expected 154 at row 1 col 0, got %d", gray.GrayAt(0, 1).Y)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		p := newPipeline(t, nil)
		tu.SeedLabel(t, p.db, p.user.ID(), "cat")
		tu.SeedLabel(t, p.db, p.user.ID(), "dog")
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)
		data := "label,a,b,c,d\ncat,0,0,0,0\ndog,1,1,1,1\ncat,2,2,2,2\n"

		if _, err := p.engine.Process(ctx, csvfile, strings.NewReader(data), nil); err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		first := p.countImages(t, csvfile)

		images := repositories.NewImageRepository(p.db)
		before, err := images.List(ctx, map[string]any{"csvfile_id": csvfile.ID()})
		if err != nil {
			t.Fatalf("failed to list images: %v", err)
		}

		if _, err := p.engine.Process(ctx, csvfile, strings.NewReader(data), nil); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if second := p.countImages(t, csvfile); second != first || second != 3 {
			t.Errorf("expected 3 images after both runs, got %d then %d", first, second)
		}

		for _, old := range before {
			ok, err := p.store.Exists(ctx, old.ImagePath())
			if err != nil {
				t.Fatalf("failed to stat blob: %v", err)
			}
			if ok {
				t.Errorf("replaced bitmap %s should have been removed", old.ImagePath())
			}
		}
	})

	t.Run("UnknownLabel", func(t *testing.T) {
		p := newPipeline(t, nil)
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		_, err := p.engine.Process(ctx, csvfile, strings.NewReader(catCSV), nil)
		if !errors.Is(err, shared.ErrUnknownLabel) {
			t.Fatalf("expected ErrUnknownLabel, got %v", err)
		}

		var rowErr *RowError
		if !errors.As(err, &rowErr) || rowErr.Row != 0 {
			t.Errorf("expected RowError for row 0, got %v", err)
		}
		if n := p.countImages(t, csvfile); n != 0 {
			t.Errorf("expected no images, got %d", n)
		}
	})

	t.Run("LabelOfAnotherUser", func(t *testing.T) {
		p := newPipeline(t, nil)
		other := tu.SeedUser(t, p.db, "other@example.com")
		tu.SeedLabel(t, p.db, other.ID(), "cat")
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		if _, err := p.engine.Process(ctx, csvfile, strings.NewReader(catCSV), nil); !errors.Is(err, shared.ErrUnknownLabel) {
			t.Fatalf("expected ErrUnknownLabel, got %v", err)
		}
	})

	t.Run("InvalidGeometry", func(t *testing.T) {
		p := newPipeline(t, nil)
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 14)

		_, err := p.engine.Process(ctx, csvfile, &tu.FReader{}, nil)
		if !errors.Is(err, shared.ErrInvalidGeometry) {
			t.Fatalf("expected ErrInvalidGeometry before reading input, got %v", err)
		}
		if n := p.countImages(t, csvfile); n != 0 {
			t.Errorf("expected no images, got %d", n)
		}
	})

	t.Run("FailFastWithoutRollback", func(t *testing.T) {
		p := newPipeline(t, nil)
		tu.SeedLabel(t, p.db, p.user.ID(), "cat")
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)
		data := "label,a,b,c,d\ncat,0,0,0,0\ndog,1,1,1,1\ncat,2,2,2,2\n"

		_, err := p.engine.Process(ctx, csvfile, strings.NewReader(data), nil)
		var rowErr *RowError
		if !errors.As(err, &rowErr) || rowErr.Row != 1 {
			t.Fatalf("expected RowError for row 1, got %v", err)
		}
		if n := p.countImages(t, csvfile); n != 1 {
			t.Errorf("expected the row before the failure to stay, got %d images", n)
		}
	})

	t.Run("BlankLineIsMalformed", func(t *testing.T) {
		for name, data := range map[string]string{
			"LF":   "label,a,b,c,d\ncat,0,0,0,0\n\ncat,1,1,1,1\n",
			"CRLF": "label,a,b,c,d\r\ncat,0,0,0,0\r\n\r\ncat,1,1,1,1\r\n",
		} {
			t.Run(name, func(t *testing.T) {
				p := newPipeline(t, nil)
				tu.SeedLabel(t, p.db, p.user.ID(), "cat")
				csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

				_, err := p.engine.Process(ctx, csvfile, strings.NewReader(data), nil)
				if !errors.Is(err, shared.ErrMalformedRow) {
					t.Fatalf("expected ErrMalformedRow, got %v", err)
				}
				var rowErr *RowError
				if !errors.As(err, &rowErr) || rowErr.Row != 1 {
					t.Errorf("expected RowError for row 1, got %v", err)
				}
				if n := p.countImages(t, csvfile); n != 1 {
					t.Errorf("expected only the row before the blank line, got %d images", n)
				}
			})
		}
	})

	t.Run("TrailingBlankLines", func(t *testing.T) {
		p := newPipeline(t, nil)
		tu.SeedLabel(t, p.db, p.user.ID(), "cat")
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		result, err := p.engine.Process(ctx, csvfile, strings.NewReader("label,a,b,c,d\ncat,0,0,0,0\n\n\n"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Rows != 1 {
			t.Errorf("expected 1 row, got %d", result.Rows)
		}
	})

	t.Run("RowErrors", func(t *testing.T) {
		tests := []struct {
			name string
			data string
			want error
		}{
			{name: "ShortRow", data: "h\ncat,1,2\n", want: shared.ErrMalformedRow},
			{name: "BareQuote", data: "h\ncat,1,2\"x,3,4\n", want: shared.ErrMalformedRow},
			{name: "PixelNotInteger", data: "h\ncat,0,x,1,2\n", want: shared.ErrPixelParse},
			{name: "PixelOutOfRange", data: "h\ncat,0,256,1,2\n", want: shared.ErrPixelParse},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				p := newPipeline(t, nil)
				tu.SeedLabel(t, p.db, p.user.ID(), "cat")
				csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

				_, err := p.engine.Process(ctx, csvfile, strings.NewReader(tt.data), nil)
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				var rowErr *RowError
				if !errors.As(err, &rowErr) || rowErr.Row != 0 {
					t.Errorf("expected RowError for row 0, got %v", err)
				}
			})
		}
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		p := newPipeline(t, nil)
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		result, err := p.engine.Process(ctx, csvfile, strings.NewReader("label,a,b,c,d\n"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Rows != 0 || len(result.ImageIDs) != 0 {
			t.Errorf("expected no rows, got %d", result.Rows)
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		p := newPipeline(t, nil)
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		if _, err := p.engine.Process(ctx, csvfile, strings.NewReader(""), nil); !errors.Is(err, shared.ErrMalformedRow) {
			t.Fatalf("expected ErrMalformedRow, got %v", err)
		}
	})

	t.Run("StorageFailure", func(t *testing.T) {
		p := newPipeline(t, &tu.FailingStore{})
		tu.SeedLabel(t, p.db, p.user.ID(), "cat")
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		_, err := p.engine.Process(ctx, csvfile, strings.NewReader(catCSV), nil)
		if !errors.Is(err, shared.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
		if n := p.countImages(t, csvfile); n != 0 {
			t.Errorf("expected no image record when blobs fail, got %d", n)
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		p := newPipeline(t, nil)
		tu.SeedLabel(t, p.db, p.user.ID(), "cat")
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := p.engine.Process(canceled, csvfile, strings.NewReader(catCSV), nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Progress", func(t *testing.T) {
		p := newPipeline(t, nil)
		tu.SeedLabel(t, p.db, p.user.ID(), "cat")
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		progress := make(chan ProgressUpdate, 16)
		if _, err := p.engine.Process(ctx, csvfile, strings.NewReader(catCSV+"cat,1,1,1,1\n"), progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		close(progress)

		var phases []Phase
		var last ProgressUpdate
		for u := range progress {
			phases = append(phases, u.Phase)
			last = u
		}

		want := []Phase{ValidateGeometry, ReadRows, ConvertRows, ConvertRows, Complete}
		if len(phases) != len(want) {
			t.Fatalf("expected phases %v, got %v", want, phases)
		}
		for i := range want {
			if phases[i] != want[i] {
				t.Errorf("phase %d: expected %s, got %s", i, want[i], phases[i])
			}
		}
		if last.Step != 2 || last.Total != 2 {
			t.Errorf("expected final step 2/2, got %d/%d", last.Step, last.Total)
		}
	})

	t.Run("FullProgressChannelDoesNotBlock", func(t *testing.T) {
		p := newPipeline(t, nil)
		tu.SeedLabel(t, p.db, p.user.ID(), "cat")
		csvfile := tu.SeedCsvfile(t, p.db, p.user.ID(), 0, 1, 4)

		progress := make(chan ProgressUpdate)
		if _, err := p.engine.Process(ctx, csvfile, strings.NewReader(catCSV), progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestImageUpserter(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesFirstBlobWhenSecondFails", func(t *testing.T) {
		db := tu.MustOpenDB(t)
		user := tu.SeedUser(t, db, "owner@example.com")
		label := tu.SeedLabel(t, db, user.ID(), "cat")
		csvfile := tu.SeedCsvfile(t, db, user.ID(), 0, 1, 4)

		store := &tu.FailingStore{Allow: 1}
		upserter := NewImageUpserter(db, repositories.NewImageRepository(db), store, shared.NewLogger(io.Discard))

		encoded, err := convert.Encode([]string{"1", "2", "3", "4"}, 2)
		if err != nil {
			t.Fatalf("failed to encode: %v", err)
		}

		_, err = upserter.Upsert(ctx, models.NewImageKey(user.ID(), csvfile.ID(), 0, label.ID()), encoded)
		if !errors.Is(err, shared.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
		if len(store.Deleted) != 1 || !strings.HasSuffix(store.Deleted[0], ".bmp") {
			t.Errorf("expected the saved bitmap to be removed, got %v", store.Deleted)
		}
	})

	t.Run("RemovesBlobsWhenRecordFails", func(t *testing.T) {
		db := tu.MustOpenDB(t)
		store := &tu.FailingStore{Allow: 2}
		upserter := NewImageUpserter(db, repositories.NewImageRepository(db), store, shared.NewLogger(io.Discard))

		encoded, err := convert.Encode([]string{"1", "2", "3", "4"}, 2)
		if err != nil {
			t.Fatalf("failed to encode: %v", err)
		}

		// unknown user, csvfile and label violate the foreign keys
		_, err = upserter.Upsert(ctx, models.NewImageKey("u", "c", 0, "l"), encoded)
		if !errors.Is(err, shared.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
		if len(store.Deleted) != 2 {
			t.Errorf("expected both blobs to be removed, got %v", store.Deleted)
		}
	})
}

func TestLabelResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("OldestMatchWins", func(t *testing.T) {
		db := tu.MustOpenDB(t)
		user := tu.SeedUser(t, db, "owner@example.com")
		first := tu.SeedLabel(t, db, user.ID(), "cat")
		tu.SeedLabel(t, db, user.ID(), "cat")

		resolver := NewLabelResolver(repositories.NewLabelRepository(db), nil, 0)
		label, err := resolver.Resolve(ctx, user.ID(), "cat")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label.ID() != first.ID() {
			t.Errorf("expected %s, got %s", first.ID(), label.ID())
		}
	})

	t.Run("ExactMatchOnly", func(t *testing.T) {
		db := tu.MustOpenDB(t)
		user := tu.SeedUser(t, db, "owner@example.com")
		tu.SeedLabel(t, db, user.ID(), "cat")

		resolver := NewLabelResolver(repositories.NewLabelRepository(db), nil, 0)
		for _, token := range []string{"Cat", " cat", "cat ", ""} {
			if _, err := resolver.Resolve(ctx, user.ID(), token); !errors.Is(err, shared.ErrUnknownLabel) {
				t.Errorf("token %q: expected ErrUnknownLabel, got %v", token, err)
			}
		}
	})

	t.Run("CachedUntilForgotten", func(t *testing.T) {
		db := tu.MustOpenDB(t)
		user := tu.SeedUser(t, db, "owner@example.com")
		label := tu.SeedLabel(t, db, user.ID(), "cat")
		labels := repositories.NewLabelRepository(db)

		resolver := NewLabelResolver(labels, freecache.NewCache(512*1024), 60)
		if _, err := resolver.Resolve(ctx, user.ID(), "cat"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := labels.Delete(ctx, label.ID()); err != nil {
			t.Fatalf("failed to delete label: %v", err)
		}

		cached, err := resolver.Resolve(ctx, user.ID(), "cat")
		if err != nil {
			t.Fatalf("expected cached label, got %v", err)
		}
		if cached.ID() != label.ID() {
			t.Errorf("expected cached id %s, got %s", label.ID(), cached.ID())
		}

		resolver.Forget(user.ID(), "cat")
		if _, err := resolver.Resolve(ctx, user.ID(), "cat"); !errors.Is(err, shared.ErrUnknownLabel) {
			t.Errorf("expected ErrUnknownLabel after Forget, got %v", err)
		}
	})
}

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()

	unlock := locks.Lock("a")

	var wg sync.WaitGroup
	acquired := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		release := locks.Lock("a")
		close(acquired)
		release()
	}()

	otherDone := make(chan struct{})
	go func() {
		locks.Lock("b")()
		close(otherDone)
	}()

	select {
	case <-otherDone:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key should not block")
	}

	select {
	case <-acquired:
		t.Fatal("second lock on the same key acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	wg.Wait()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.locks) != 0 {
		t.Errorf("expected idle keys to be released, got %d", len(locks.locks))
	}
}
