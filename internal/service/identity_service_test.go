package service

import (
	"errors"
	"testing"
	"time"

	"echo-link-go/internal/model"
)

func TestResolve_CreatesIdentityWithAnonymousAccount(t *testing.T) {
	env := newTestEnv(t)

	identity, err := env.identitySvc.Resolve(model.IdentityKindDiscord, "discord-42", "SomeUser", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.AccountID == "" {
		t.Fatal("identity should be bound to an account")
	}

	account, err := env.accountSvc.GetByID(identity.AccountID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if account.PrimaryEmail != nil {
		t.Errorf("discord identity should get an anonymous account, got email %q", *account.PrimaryEmail)
	}
}

func TestResolve_WebIdentityWithEmailConvergesOnEmailAccount(t *testing.T) {
	env := newTestEnv(t)

	existing, err := env.accountSvc.GetOrCreateForEmail("bob@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateForEmail: %v", err)
	}

	identity, err := env.identitySvc.Resolve(model.IdentityKindWeb, "user-bob", "bob@example.com", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.AccountID != existing.ID {
		t.Errorf("web identity should reuse the email account %s, got %s", existing.ID, identity.AccountID)
	}
}

func TestResolve_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.identitySvc.Resolve(model.IdentityKindDiscord, "discord-7", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := env.identitySvc.Resolve(model.IdentityKindDiscord, "discord-7", "", nil)
	if err != nil {
		t.Fatalf("Resolve (second): %v", err)
	}
	if first.ID != second.ID || first.AccountID != second.AccountID {
		t.Errorf("repeated resolve should return the same identity, got %s/%s and %s/%s",
			first.ID, first.AccountID, second.ID, second.AccountID)
	}
}

func TestResolve_RefreshesDisplayNameAndMetadata(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.identitySvc.Resolve(model.IdentityKindDiscord, "discord-9", "OldName", nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	refreshed, err := env.identitySvc.Resolve(model.IdentityKindDiscord, "discord-9", "NewName",
		model.IdentityMetadata{"guild_id": "guild-1"})
	if err != nil {
		t.Fatalf("Resolve (refresh): %v", err)
	}
	if refreshed.DisplayName == nil || *refreshed.DisplayName != "NewName" {
		t.Errorf("display name should be refreshed, got %v", refreshed.DisplayName)
	}
	if refreshed.ExtraMetadata.GuildID() != "guild-1" {
		t.Errorf("metadata should be refreshed, got %v", refreshed.ExtraMetadata)
	}

	// 再次 resolve 不带新信息时保持上次的值
	kept, err := env.identitySvc.Resolve(model.IdentityKindDiscord, "discord-9", "", nil)
	if err != nil {
		t.Fatalf("Resolve (keep): %v", err)
	}
	if kept.DisplayName == nil || *kept.DisplayName != "NewName" {
		t.Errorf("empty refresh should keep the previous name, got %v", kept.DisplayName)
	}
}

func TestUnlink_RemovesDiscordIdentity(t *testing.T) {
	env := newTestEnv(t)

	account := env.mustCreateAccount(t, "owner@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindDiscord, "discord-del")

	if err := env.identitySvc.Unlink(account.ID, identity.ID); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if _, err := env.identitySvc.GetByID(identity.ID); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("identity should be gone, got %v", err)
	}
}

func TestUnlink_KeepsFilesOnAccount(t *testing.T) {
	env := newTestEnv(t)

	account := env.mustCreateAccount(t, "keeper@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindDiscord, "discord-keep")
	file := env.mustCreateFile(t, account.ID, identity.ID, 123, time.Time{})

	if err := env.identitySvc.Unlink(account.ID, identity.ID); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	kept, err := env.fileRepo.FindByID(file.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if kept.AccountID != account.ID {
		t.Errorf("file should stay on account %s, got %s", account.ID, kept.AccountID)
	}
}

func TestUnlink_RejectsForeignIdentity(t *testing.T) {
	env := newTestEnv(t)

	owner := env.mustCreateAccount(t, "a@example.com")
	other := env.mustCreateAccount(t, "b@example.com")
	identity := env.mustCreateIdentity(t, owner.ID, model.IdentityKindDiscord, "discord-foreign")

	if err := env.identitySvc.Unlink(other.ID, identity.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestUnlink_RejectsWebIdentity(t *testing.T) {
	env := newTestEnv(t)

	account := env.mustCreateAccount(t, "web@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindWeb, "user-web")

	if err := env.identitySvc.Unlink(account.ID, identity.ID); !errors.Is(err, ErrNotDiscordIdentity) {
		t.Errorf("expected ErrNotDiscordIdentity, got %v", err)
	}
}
