package database

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

// Lock waits are bounded instead of failing immediately.
// A wait past this limit surfaces as a store error to the caller.
const busyTimeoutMs = 5000

var memCounter atomic.Uint64

// Open opens (and creates if absent) the shared bridge database file.
//
// Every bridge process (server, sweeper) opens the same file with the
// same settings. WAL lets readers proceed while another process writes.
// _txlock=immediate makes BeginTx grab the write lock up front, so a
// read inside the transaction cannot be invalidated by a concurrent
// writer before our own write lands.
func Open(filePath string) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate",
		filePath, busyTimeoutMs,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenInMemory opens a fresh private in-memory database.
//
// cache=shared keeps the database visible across the pool's
// connections; the unique name keeps parallel tests apart. Use a real
// file (t.TempDir) for tests that hammer the store from many
// goroutines, in-memory shared-cache mode returns table-lock errors
// under write contention that the file database does not.
func OpenInMemory() (*sql.DB, error) {
	n := memCounter.Add(1)
	dsn := fmt.Sprintf(
		"file:memdb%d?mode=memory&cache=shared&_busy_timeout=%d&_txlock=immediate",
		n, busyTimeoutMs,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// A pool of one cannot race against itself across connections.
	db.SetMaxOpenConns(1)
	return db, nil
}
