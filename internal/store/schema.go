package store

// initSQL creates the schema on first run. Statements run inside the same
// transaction as the bootstrap check in ensureSchema.
var initSQL = []string{
	`create table users (
		id       text primary key,
		name     text not null unique,
		active   integer not null default 1,
		admin    integer not null default 0,
		password text not null,
		salt     text not null
	)`,
	`create table user_messages (
		id              text primary key,
		author_id       text not null references users(id),
		message         text not null,
		sent_at_instant integer not null
	)`,
	`create index idx_user_messages_sent_at on user_messages(sent_at_instant)`,
	`create index idx_user_messages_author on user_messages(author_id)`,
}
