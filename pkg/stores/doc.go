// Package stores provides progress persistence for the badge collector.
//
// JSONFileStore keeps progress in one hand-editable JSON document and
// replaces it atomically on every save. SQLiteStore keeps progress in a
// SQLite database with WAL mode and embedded migrations, and additionally
// records run summaries and every status transition for the history
// command. Both satisfy engine.ProgressStore and assume a single writer.
package stores
