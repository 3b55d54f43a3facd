// Package database is the planner's storage seam. Repositories depend on
// the Database interface only; SurrealDB implements it in production and
// small fakes implement it in unit tests.
//
// Query returns one {"status", "result"} map per statement. QueryOne
// unwraps the first record of the first statement. Multi-statement
// writes that must land together go through AtomicBatch or TxBuilder, and
// status moves that may race use conditional UPDATE ... WHERE status = ...
//
//	job, err := db.QueryOne(ctx, "SELECT * FROM type::record($id)", map[string]interface{}{"id": id})
//	if errors.Is(err, database.ErrNotFound) {
//	    ...
//	}
//
// # Connection Management
//
//	db := database.NewSurrealDB(database.Config{
//	    Host:      "localhost",
//	    Port:      "8000",
//	    Namespace: "planner",
//	    Database:  "main",
//	    User:      "root",
//	    Password:  "root",
//
//	    ConnectAttempts: 5,
//	})
//	if err := db.Connect(ctx); err != nil { ... }
//	defer db.Close()
//
// Connect retries with Config.RetryDelay between attempts.
//
// # Migrations
//
// Migrate applies the *.surql scripts of an fs.FS in name order, skipping
// seed.surql. The server runs it against migrations.FS at startup when
// DB_MIGRATE is set, and testdb runs it for every isolated namespace.
//
// # Error Types
//
//   - ErrNotFound: Record does not exist
//   - ErrConnection: Database connection failed
//   - ErrQuery: Statement returned a non-OK status
package database
