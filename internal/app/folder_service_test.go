package app

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestFolderRenameRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env.db, "alice")
	intruder := createUser(t, env.db, "mallory")

	folder, err := env.folders.Create(owner.ID, "research")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}

	if _, err := env.folders.Rename(folder.ID, intruder.ID, "stolen"); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("err = %v, want ErrFolderNotFound", err)
	}

	renamed, err := env.folders.Rename(folder.ID, owner.ID, "papers")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "papers" {
		t.Fatalf("name = %q", renamed.Name)
	}
}

func TestFolderCreateRejectsBlankName(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env.db, "alice")

	if _, err := env.folders.Create(user.ID, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestFolderDeleteUnknownID(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env.db, "alice")

	if err := env.folders.Delete(uuid.New(), user.ID); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("err = %v, want ErrFolderNotFound", err)
	}
}
