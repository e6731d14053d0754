package app

import (
	"errors"
	"testing"
	"time"

	"pdfchat/internal/pkg/jwtutil"
	"pdfchat/internal/repository"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := newTestDB(t)
	return NewAuthService(repository.NewUserRepository(db), "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)

	reg, err := svc.Register(RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.User.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", reg.User.Email)
	}

	claims, err := jwtutil.ParseToken("test-secret", reg.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.UserID != reg.User.ID {
		t.Fatalf("token user id = %s, want %s", claims.UserID, reg.User.ID)
	}

	login, err := svc.Login(LoginInput{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Fatal("login returned a different user")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Register(RegisterInput{Username: "alice", Email: "a@example.com", Password: "long enough"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(RegisterInput{Username: "alice", Email: "b@example.com", Password: "long enough"}); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("err = %v, want ErrUsernameExists", err)
	}
	if _, err := svc.Register(RegisterInput{Username: "bob", Email: "a@example.com", Password: "long enough"}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("err = %v, want ErrEmailExists", err)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Register(RegisterInput{Username: "alice", Email: "a@example.com", Password: "long enough"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(LoginInput{Username: "alice", Password: "wrong password"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
	if _, err := svc.Login(LoginInput{Username: "nobody", Password: "long enough"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Register(RegisterInput{Username: "alice", Email: "a@example.com", Password: "short"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
