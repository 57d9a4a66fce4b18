// Package all wires every built-in archive backend into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. Importing it makes the following
// storage kinds available at runtime:
//
//   - "sqlite"   (bidsevents/internal/storage/sqlite)
//   - "postgres" (bidsevents/internal/storage/postgres)
//
// A binary that needs only one backend can blank-import that backend package
// directly instead of this one.
package all

import (
	_ "bidsevents/internal/storage/postgres"
	_ "bidsevents/internal/storage/sqlite"
)
