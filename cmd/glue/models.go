package main

import "time"

// Audit is flattened into every table that embeds it.
type Audit struct {
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

// Account is a cached entity with an auto-generated key.
type Account struct {
	ID    int64  `db:"id,pk,auto"`
	Name  string `db:"name"`
	Email string `db:"email"`
	Audit
}

func (Account) TableName() string { return "account" }
func (Account) Cached() bool      { return true }

// Group is related to Account through the accountgroups join table.
type Group struct {
	ID    int64  `db:"group_id,pk,auto"`
	Title string `db:"title"`
}

func (Group) TableName() string { return "groups" }

// sqliteSchema creates the demo tables on SQLite.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS account (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		group_id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accountgroups (
		id INTEGER NOT NULL,
		group_id INTEGER NOT NULL,
		PRIMARY KEY (id, group_id)
	)`,
}
