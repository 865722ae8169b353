package main

import (
	"errors"
	"path/filepath"
	"testing"

	"dreary/internal/renpy"
	"dreary/internal/services"
	"dreary/internal/testsupport"
)

func writeGameDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "script.rpy"), []byte("label start:\n    return\n"))
	return dir
}

func TestRenPyUploadRejectsNameBeforeLogin(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"renpy", "upload", writeGameDir(t), "bad/name"}, env.configPath, "")
	if !errors.Is(err, services.ErrValidation) || !errors.Is(err, renpy.ErrNameSeparators) {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if n := env.pds.Calls("com.atproto.server.createSession"); n != 0 {
		t.Fatalf("expected no login for an invalid name, got %d sessions", n)
	}
}

func TestRenPyUploadRepromptsForName(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"renpy", "upload", writeGameDir(t)}, env.configPath, "[draft]\nMy Game\n")
	if err != nil {
		t.Fatalf("renpy upload: %v", err)
	}
	requireContains(t, out, renpy.ErrNameBrackets.Error())
	requireContains(t, out, "Uploaded 1 assets")
	projects := env.pds.Records(renpy.CollectionProject)
	if len(projects) != 1 || projects[0].Value["name"] != "My Game" {
		t.Fatalf("unexpected projects %+v", projects)
	}
}
