// Package store provides transactional persistence for users and chat
// history: salted-password authentication, account lifecycle, and the
// message history queried by the admin console.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Sentinel errors returned by UserStore operations. Authenticate never
// distinguishes "no such user" from "wrong password" — both collapse to
// ErrAuthFailed, per spec.md §4.C.
var (
	ErrAuthFailed    = errors.New("store: authentication failed")
	ErrAlreadyExists = errors.New("store: user already exists")
	ErrNoSuchUser    = errors.New("store: no such user")
)

// User is a row of the users table, trimmed to the fields callers outside
// this package need.
type User struct {
	ID       string
	Name     string
	Active   bool
	Admin    bool
	Salt     string
	Digest   string
}

// UserMessage is a row of the message history, joined with its author's
// display name.
type UserMessage struct {
	ID         string
	AuthorName string
	Message    string
	SentAt     int64
}

// UserStore is the interface internal/session and internal/admin depend
// on. Passing the concrete *SQLStore (or a test fake) explicitly through
// constructors — rather than a package-level singleton — keeps the store
// swappable and testable, per spec.md §9's "avoid hidden singletons" note.
type UserStore interface {
	Authenticate(ctx context.Context, name, password string) (User, error)
	Signup(ctx context.Context, name, password string) (User, error)
	ChangePassword(ctx context.Context, user User, newPassword string) error
	UpdateUser(ctx context.Context, userID string, isAdmin, isActive bool) error
	SaveMessage(ctx context.Context, user User, msg Displayer) error
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByName(ctx context.Context, name string) (User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	GetMessagesDesc(ctx context.Context) ([]UserMessage, error)
}

// Displayer is implemented by wire.Message (and test fakes outside this
// package); kept narrow here so store does not import wire and bind the
// persistence layer to the wire protocol's package more tightly than
// necessary. Exported so other packages can implement UserStore.
type Displayer interface {
	Display() (text string, persist bool)
}

const defaultAdminName = "admin"
const defaultAdminPassword = "admin"

// SQLStore is the default UserStore, backed by modernc.org/sqlite through
// jmoiron/sqlx.
type SQLStore struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// Open opens (creating if absent) the SQLite database at path, bootstraps
// the schema if it's missing, and seeds the well-known default admin
// account on first run (spec.md §4.C).
func Open(path string, log zerolog.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time.

	s := &SQLStore{db: db, log: log}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin schema check: %w", err)
	}
	defer tx.Rollback()

	var names []string
	if err := tx.SelectContext(ctx, &names,
		`select name from sqlite_master where type = 'table' and name in ('users', 'user_messages')`); err != nil {
		return fmt.Errorf("store: inspect schema: %w", err)
	}
	if len(names) == 2 {
		return tx.Commit()
	}

	s.log.Warn().Msg("creating a new database; it did not exist before")
	for _, stmt := range initSQL {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: apply schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit schema: %w", err)
	}

	admin, err := s.Signup(ctx, defaultAdminName, defaultAdminPassword)
	if err != nil {
		return fmt.Errorf("store: seed default admin: %w", err)
	}
	if err := s.UpdateUser(ctx, admin.ID, true, true); err != nil {
		return fmt.Errorf("store: promote default admin: %w", err)
	}
	s.log.Warn().Msg("created first admin user: admin/admin — change these credentials")
	return nil
}

type dbUser struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Active   int    `db:"active"`
	Admin    int    `db:"admin"`
	Password string `db:"password"`
	Salt     string `db:"salt"`
}

func (u dbUser) toUser() User {
	return User{
		ID:     u.ID,
		Name:   u.Name,
		Active: u.Active != 0,
		Admin:  u.Admin != 0,
		Salt:   u.Salt,
		Digest: u.Password,
	}
}

// Authenticate implements UserStore.
func (s *SQLStore) Authenticate(ctx context.Context, name, password string) (User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("store: authenticate: %w", err)
	}
	defer tx.Rollback()

	u, err := getUserByName(ctx, tx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrAuthFailed
		}
		return User{}, fmt.Errorf("store: authenticate: %w", err)
	}

	if digest(password, u.Salt) != u.Password || u.Active == 0 {
		return User{}, ErrAuthFailed
	}
	return u.toUser(), tx.Commit()
}

// Signup implements UserStore.
func (s *SQLStore) Signup(ctx context.Context, name, password string) (User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("store: signup: %w", err)
	}
	defer tx.Rollback()

	if _, err := getUserByName(ctx, tx, name); err == nil {
		return User{}, ErrAlreadyExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("store: signup: %w", err)
	}

	id := uuid.NewString()
	salt := uuid.NewString()
	passDigest := digest(password, salt)

	if _, err := tx.ExecContext(ctx,
		`insert into users(id, name, active, admin, password, salt) values(?,?,1,0,?,?)`,
		id, name, passDigest, salt); err != nil {
		return User{}, fmt.Errorf("store: signup: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("store: signup: %w", err)
	}
	return User{ID: id, Name: name, Active: true, Admin: false, Salt: salt, Digest: passDigest}, nil
}

// ChangePassword implements UserStore.
func (s *SQLStore) ChangePassword(ctx context.Context, user User, newPassword string) error {
	newSalt := uuid.NewString()
	newDigest := digest(newPassword, newSalt)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: change password: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `update users set password=?, salt=? where id=?`,
		newDigest, newSalt, user.ID)
	if err != nil {
		return fmt.Errorf("store: change password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: change password: %w", err)
	}
	if n != 1 {
		return ErrNoSuchUser
	}
	return tx.Commit()
}

// UpdateUser implements UserStore.
func (s *SQLStore) UpdateUser(ctx context.Context, userID string, isAdmin, isActive bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: update user: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `update users set active=?, admin=? where id=?`,
		boolToInt(isActive), boolToInt(isAdmin), userID)
	if err != nil {
		return fmt.Errorf("store: update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update user: %w", err)
	}
	if n == 0 {
		return ErrNoSuchUser
	}
	return tx.Commit()
}

// SaveMessage implements UserStore. msg.Display reports whether the
// variant is persisted at all (control variants like Login/Quit are not).
func (s *SQLStore) SaveMessage(ctx context.Context, user User, msg Displayer) error {
	text, persist := msg.Display()
	if !persist {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save message: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`insert into user_messages(id, author_id, message, sent_at_instant) values(?,?,?,?)`,
		uuid.NewString(), user.ID, text, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: save message: %w", err)
	}
	return tx.Commit()
}

// GetUserByID implements UserStore.
func (s *SQLStore) GetUserByID(ctx context.Context, id string) (User, error) {
	var u dbUser
	err := s.db.GetContext(ctx, &u,
		`select id,name,active,admin,password,salt from users where id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNoSuchUser
	}
	if err != nil {
		return User{}, fmt.Errorf("store: get user by id: %w", err)
	}
	return u.toUser(), nil
}

// GetUserByName implements UserStore.
func (s *SQLStore) GetUserByName(ctx context.Context, name string) (User, error) {
	var u dbUser
	err := s.db.GetContext(ctx, &u,
		`select id,name,active,admin,password,salt from users where name=?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNoSuchUser
	}
	if err != nil {
		return User{}, fmt.Errorf("store: get user by name: %w", err)
	}
	return u.toUser(), nil
}

// GetAllUsers implements UserStore.
func (s *SQLStore) GetAllUsers(ctx context.Context) ([]User, error) {
	var rows []dbUser
	if err := s.db.SelectContext(ctx, &rows, `select * from users`); err != nil {
		return nil, fmt.Errorf("store: get all users: %w", err)
	}
	users := make([]User, len(rows))
	for i, r := range rows {
		users[i] = r.toUser()
	}
	return users, nil
}

// GetMessagesDesc implements UserStore.
func (s *SQLStore) GetMessagesDesc(ctx context.Context) ([]UserMessage, error) {
	var rows []struct {
		ID         string `db:"id"`
		AuthorName string `db:"author_name"`
		Message    string `db:"message"`
		SentAt     int64  `db:"sent_at_instant"`
	}
	const q = `
		select m.id as id, u.name as author_name, m.message, m.sent_at_instant
		from user_messages m
		join users u on u.id = m.author_id
		order by m.sent_at_instant desc`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("store: get messages: %w", err)
	}
	out := make([]UserMessage, len(rows))
	for i, r := range rows {
		out[i] = UserMessage{ID: r.ID, AuthorName: r.AuthorName, Message: r.Message, SentAt: r.SentAt}
	}
	return out, nil
}

func getUserByName(ctx context.Context, tx *sqlx.Tx, name string) (dbUser, error) {
	var u dbUser
	err := tx.GetContext(ctx, &u,
		`select id,name,active,admin,password,salt from users where name=?`, name)
	return u, err
}

// digest computes the salted password digest: sha256_hex(password + salt),
// matching spec.md §4.C exactly.
func digest(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
