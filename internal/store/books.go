package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/moriai/storybook-server/internal/domain"
	"github.com/moriai/storybook-server/internal/errors"
)

// bookKeyPrefix namespaces book records inside the badger keyspace.
const bookKeyPrefix = "book:"

// CacheStats reports the state of the in-memory index.
type CacheStats struct {
	Books    int            `json:"books"`
	ByStatus map[string]int `json:"by_status"`
	WarmedUp bool           `json:"warmed_up"`
}

// BookRepository holds all book records in memory and write-throughs every
// mutation to the durable badger store. Reads never touch disk; the index is
// warmed once at startup via InitializeCache.
//
// Returned records are owned by the repository - callers must treat them as
// read-only and hand back a full replacement via Update.
type BookRepository struct {
	store  *Store
	cache  *gocache.Cache
	logger *slog.Logger

	// locks serializes mutations per book id. Cross-id mutations proceed
	// independently; single-writer-per-id is all the pipeline needs.
	locks sync.Map // map[string]*sync.Mutex

	mu       sync.Mutex
	warmedUp bool
}

// NewBookRepository creates a repository over the given store.
// InitializeCache must run before the repository serves any request.
func NewBookRepository(store *Store, logger *slog.Logger) *BookRepository {
	return &BookRepository{
		store:  store,
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: logger,
	}
}

// InitializeCache performs a one-time full scan of the durable store,
// deserializing every persisted record into the in-memory index. A failure
// here must fail the startup sequence.
func (r *BookRepository) InitializeCache(ctx context.Context) error {
	count := 0

	err := r.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(bookKeyPrefix)); it.ValidForPrefix([]byte(bookKeyPrefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var book domain.Book
				if err := json.Unmarshal(val, &book); err != nil {
					return fmt.Errorf("unmarshal book %s: %w", it.Item().Key(), err)
				}
				r.cache.Set(book.ID, &book, gocache.NoExpiration)
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache warm-up failed: %w", err)
	}

	r.mu.Lock()
	r.warmedUp = true
	r.mu.Unlock()

	r.logger.Info("Cache warm-up completed", "books", count)
	return nil
}

// Create persists a new book and indexes it. The durable write happens first
// so a storage failure never leaves a memory-only record behind.
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	if book == nil || book.ID == "" {
		return nil, errors.Validation("book id is required")
	}

	lock := r.lockFor(book.ID)
	lock.Lock()
	defer lock.Unlock()

	if _, found := r.cache.Get(book.ID); found {
		return nil, errors.AlreadyExists("book already exists: %s", book.ID)
	}

	if err := r.writeDurable(ctx, book); err != nil {
		return nil, err
	}
	r.cache.Set(book.ID, book, gocache.NoExpiration)

	r.logger.Info("Book created", "book_id", book.ID, "status", book.Status)
	return book, nil
}

// Get returns the book with the given id from memory, or NotFound.
func (r *BookRepository) Get(_ context.Context, bookID string) (*domain.Book, error) {
	if v, found := r.cache.Get(bookID); found {
		return v.(*domain.Book), nil
	}
	return nil, errors.NotFound("book not found: %s", bookID)
}

// GetAll returns every book currently in the index, from memory only.
func (r *BookRepository) GetAll(_ context.Context) []*domain.Book {
	items := r.cache.Items()
	books := make([]*domain.Book, 0, len(items))
	for _, item := range items {
		books = append(books, item.Object.(*domain.Book))
	}
	return books
}

// Update overwrites the full record identified by id. Updating an unknown id
// fails with NotFound. Once a record reaches a terminal status it is frozen:
// a further Update is a no-op success, so a straggling pipeline can never
// flip success to error or resurrect deleted state.
func (r *BookRepository) Update(ctx context.Context, bookID string, book *domain.Book) error {
	if book == nil {
		return errors.Validation("book is required")
	}
	if book.ID != bookID {
		return errors.Validation("book id mismatch: %s != %s", book.ID, bookID)
	}

	lock := r.lockFor(bookID)
	lock.Lock()
	defer lock.Unlock()

	existing, found := r.cache.Get(bookID)
	if !found {
		return errors.NotFound("book not found: %s", bookID)
	}
	if existing.(*domain.Book).Status.Terminal() {
		r.logger.Warn("Ignoring update to terminal book", "book_id", bookID, "status", existing.(*domain.Book).Status)
		return nil
	}

	if err := r.writeDurable(ctx, book); err != nil {
		return err
	}
	r.cache.Set(bookID, book, gocache.NoExpiration)

	r.logger.Info("Book updated", "book_id", bookID, "status", book.Status)
	return nil
}

// Delete removes the record from both the durable store and the index.
func (r *BookRepository) Delete(ctx context.Context, bookID string) error {
	lock := r.lockFor(bookID)
	lock.Lock()
	defer lock.Unlock()

	if _, found := r.cache.Get(bookID); !found {
		return errors.NotFound("book not found: %s", bookID)
	}

	err := r.store.db.Update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return txn.Delete([]byte(bookKeyPrefix + bookID))
	})
	if err != nil {
		return errors.Storage(err, "failed to delete book record: %s", bookID)
	}
	r.cache.Delete(bookID)

	r.logger.Info("Book deleted", "book_id", bookID)
	return nil
}

// GetCacheStats reports the record count per status, for observability.
func (r *BookRepository) GetCacheStats() CacheStats {
	items := r.cache.Items()
	stats := CacheStats{
		Books:    len(items),
		ByStatus: make(map[string]int),
	}
	for _, item := range items {
		stats.ByStatus[string(item.Object.(*domain.Book).Status)]++
	}

	r.mu.Lock()
	stats.WarmedUp = r.warmedUp
	r.mu.Unlock()

	return stats
}

func (r *BookRepository) writeDurable(ctx context.Context, book *domain.Book) error {
	data, err := json.Marshal(book)
	if err != nil {
		return errors.Internal(err, "failed to marshal book: %s", book.ID)
	}

	err = r.store.db.Update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return txn.Set([]byte(bookKeyPrefix+book.ID), data)
	})
	if err != nil {
		return errors.Storage(err, "failed to persist book record: %s", book.ID)
	}
	return nil
}

func (r *BookRepository) lockFor(bookID string) *sync.Mutex {
	v, _ := r.locks.LoadOrStore(bookID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
