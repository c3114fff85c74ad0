package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_SeedsDefaultAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin, err := s.GetUserByName(ctx, "admin")
	if err != nil {
		t.Fatalf("GetUserByName(admin) error = %v", err)
	}
	if !admin.Admin || !admin.Active {
		t.Errorf("default admin = %+v, want Admin=true Active=true", admin)
	}

	if _, err := s.Authenticate(ctx, "admin", "admin"); err != nil {
		t.Errorf("Authenticate(admin, admin) error = %v, want nil", err)
	}
}

func TestSignup_DuplicateNameRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Signup(ctx, "alice", "secret"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if _, err := s.Signup(ctx, "alice", "different"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second Signup() error = %v, want ErrAlreadyExists", err)
	}
}

func TestAuthenticate_WrongPasswordAndNoSuchUserBothFail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Signup(ctx, "alice", "secret"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if _, err := s.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Authenticate(wrong password) error = %v, want ErrAuthFailed", err)
	}
	if _, err := s.Authenticate(ctx, "nobody", "whatever"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Authenticate(no such user) error = %v, want ErrAuthFailed", err)
	}
}

func TestAuthenticate_InactiveUserFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Signup(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if err := s.UpdateUser(ctx, u.ID, false, false); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if _, err := s.Authenticate(ctx, "alice", "secret"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Authenticate(inactive user) error = %v, want ErrAuthFailed", err)
	}
}

func TestChangePassword_OldDigestStopsWorking(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Signup(ctx, "alice", "old-secret")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	oldSalt := u.Salt
	if err := s.ChangePassword(ctx, u, "new-secret"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	updated, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if updated.Salt == oldSalt {
		t.Errorf("ChangePassword() left salt unchanged = %q, want a freshly generated salt", updated.Salt)
	}

	if _, err := s.Authenticate(ctx, "alice", "old-secret"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Authenticate(old password) error = %v, want ErrAuthFailed", err)
	}
	if _, err := s.Authenticate(ctx, "alice", "new-secret"); err != nil {
		t.Errorf("Authenticate(new password) error = %v", err)
	}
}

func TestUpdateUser_NoSuchUser(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpdateUser(context.Background(), "does-not-exist", true, true); !errors.Is(err, ErrNoSuchUser) {
		t.Errorf("UpdateUser(missing) error = %v, want ErrNoSuchUser", err)
	}
}

func TestGetAllUsers_IncludesSeededAdminAndSignups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Signup(ctx, "bob", "secret"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	users, err := s.GetAllUsers(ctx)
	if err != nil {
		t.Fatalf("GetAllUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("GetAllUsers() returned %d users, want 2 (admin + bob)", len(users))
	}
}

// fakeDisplay stands in for a wire.Message without internal/store importing
// internal/wire.
type fakeDisplay struct {
	text    string
	persist bool
}

func (f fakeDisplay) Display() (string, bool) { return f.text, f.persist }

func TestSaveMessage_ControlVariantsNeverPersist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Signup(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if err := s.SaveMessage(ctx, u, fakeDisplay{persist: false}); err != nil {
		t.Fatalf("SaveMessage(non-persisting) error = %v", err)
	}
	msgs, err := s.GetMessagesDesc(ctx)
	if err != nil {
		t.Fatalf("GetMessagesDesc() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("GetMessagesDesc() = %d rows, want 0", len(msgs))
	}

	if err := s.SaveMessage(ctx, u, fakeDisplay{text: "hello", persist: true}); err != nil {
		t.Fatalf("SaveMessage(persisting) error = %v", err)
	}
	msgs, err = s.GetMessagesDesc(ctx)
	if err != nil {
		t.Fatalf("GetMessagesDesc() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Message != "hello" || msgs[0].AuthorName != "alice" {
		t.Fatalf("GetMessagesDesc() = %+v, want one row {alice, hello}", msgs)
	}
}

func TestGetMessagesDesc_ReturnsAllSavedMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Signup(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	for _, text := range []string{"first", "second", "third"} {
		if err := s.SaveMessage(ctx, u, fakeDisplay{text: text, persist: true}); err != nil {
			t.Fatalf("SaveMessage(%q) error = %v", text, err)
		}
	}

	msgs, err := s.GetMessagesDesc(ctx)
	if err != nil {
		t.Fatalf("GetMessagesDesc() error = %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("GetMessagesDesc() = %d rows, want 3", len(msgs))
	}
	// sent_at_instant has second resolution, so rows inserted within the same
	// second may tie; we only assert the full set round-trips correctly.
	seen := map[string]bool{}
	for _, m := range msgs {
		seen[m.Message] = true
	}
	for _, text := range []string{"first", "second", "third"} {
		if !seen[text] {
			t.Errorf("GetMessagesDesc() missing message %q", text)
		}
	}
}
