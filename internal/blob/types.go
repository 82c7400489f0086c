// Package blob re-exports the document store abstractions and opens the
// configured backend. It is the only package that imports infra backends.
package blob

import (
	"projecttracker/internal/blob/core"
	"projecttracker/internal/infra/blob/memory"
)

type (
	// Driver identifies a document backend driver.
	Driver = core.Driver
	// PutOptions configures a document write.
	PutOptions = core.PutOptions
	// Info describes stored document metadata.
	Info = core.Info
	// Store is the interface for document storage backends.
	Store = core.Store
	// Memory is the in-memory backend, exposed for fault injection in tests.
	Memory = memory.Store
	// MemoryOp names an operation a memory fault applies to.
	MemoryOp = memory.Op
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
	// DriverSQLite is the embedded SQLite driver.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres is the PostgreSQL driver.
	DriverPostgres = core.DriverPostgres

	MemoryPut    = memory.OpPut
	MemoryGet    = memory.OpGet
	MemoryDelete = memory.OpDelete
	MemoryList   = memory.OpList
)

// ErrNotFound is wrapped by Store.Get when a key holds no document.
var ErrNotFound = core.ErrNotFound

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return memory.New() }
