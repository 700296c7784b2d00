// Package sql is the cross-dialect query builder and execution layer used
// by the CRUD request processor to read and write tables.
//
// # Building queries
//
// A Database is the factory for dialect-bound queries:
//
//	db, err := sql.Open(dialect.MySQL, dsn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	res, err := db.Select().
//	    Table("users").
//	    Where("age", 30, ">").
//	    Order("name asc").
//	    Limit(10).
//	    Exec(ctx)
//
// Conditions form a tree. Groups nest through callbacks:
//
//	db.Select().Table("users").
//	    Where("status", "active").
//	    WhereGroup(func(q *sql.Query) {
//	        q.Where("a", 1)
//	        q.OrWhere("b", 2)
//	    })
//
// Every value travels as a named binding; no caller input is ever spliced
// into the statement text. The rendered SQL carries named placeholders
// (visible to the debug hook) which the dialect compiles into the driver's
// positional markers at prepare time.
//
// # Dialects
//
// Each backend supplies a Policy: identifier and alias quoting, bind
// prefix, untyped-value coercion, the insert-id retrieval strategy, and a
// one-time connection init hook. MySQL reads the generated key from the
// insert's own execution, Postgres discovers the primary-key column in the
// catalog and appends a RETURNING clause, SQLite issues a follow-up
// last_insert_rowid() statement.
//
// # Transactions
//
// A Database holds at most one transaction; queries created while it is
// open run inside it:
//
//	if err := db.Transaction(ctx); err != nil { ... }
//	// ... queries ...
//	if err := db.Commit(); err != nil { ... }
//
// # Observability
//
// StatsRunner and DebugRunner wrap the execution path through the
// WithWrapper option without altering outcomes; the WithDebug callback
// receives every rendered statement with its bindings.
package sql
