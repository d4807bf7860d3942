// Package database provides the Operator, a facade over one SQLite file.
//
// The Operator removes the connection boilerplate around SQLite:
//   - one connection per call, opened read-only or read-write by intent
//   - optional write-ahead-log journal mode per call
//   - every unit of work runs in a transaction that commits on success and
//     rolls back on failure; autocommit mode issues the BEGIN explicitly
//   - connections are released on every exit path, including a lazy cursor
//     abandoned before its end
//   - every failure is returned to the caller and logged
//
// The SQL engine, its locking and its storage are go-sqlite3's.
//
// Security Considerations:
//   - Statements are passed through unmodified; bind caller data with ?
//     placeholders via InsertUpdateRow and BulkInsertUpdateRows
//   - Events and logs carry statement text, never bound values
//
// Usage:
//
//	op := database.New("/var/lib/app/db.sqlite3")
//	op.SetLogger(logger)
//
//	_, err := op.InsertUpdateRow(ctx,
//	    "INSERT INTO Person VALUES (?, ?, ?, ?)",
//	    []any{"abc@email.com", "ab", "c", 95},
//	    database.WithAutocommit(true))
//
//	rows, err := op.SelectQuery(ctx, "SELECT * FROM Person", database.AsDict(true))
//	if err != nil {
//	    return err
//	}
//	for row, err := range rows.All() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(row.Record)
//	}
package database
