package service

import (
	"errors"
	"testing"
	"time"

	"echo-link-go/internal/model"
)

func TestGetOrCreateForEmail_ReusesExistingAccount(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.accountSvc.GetOrCreateForEmail("alice@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateForEmail: %v", err)
	}
	second, err := env.accountSvc.GetOrCreateForEmail("alice@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateForEmail (second): %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same account, got %s and %s", first.ID, second.ID)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.accountSvc.GetByID("missing")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMerge_MovesFilesAndIdentities(t *testing.T) {
	env := newTestEnv(t)

	source := env.mustCreateAccount(t, "")
	target := env.mustCreateAccount(t, "target@example.com")

	sourceIdentity := env.mustCreateIdentity(t, source.ID, model.IdentityKindDiscord, "discord-1")
	env.mustCreateIdentity(t, target.ID, model.IdentityKindWeb, "web-1")
	env.mustCreateFile(t, source.ID, sourceIdentity.ID, 100, time.Time{})
	env.mustCreateFile(t, source.ID, sourceIdentity.ID, 200, time.Time{})

	if err := env.accountSvc.Merge(source.ID, target.ID); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	// 源账户被删除
	if _, err := env.accountSvc.GetByID(source.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("source account should be deleted, got %v", err)
	}

	// 身份全部归属目标账户
	identities, err := env.accountSvc.GetIdentities(target.ID)
	if err != nil {
		t.Fatalf("GetIdentities: %v", err)
	}
	if len(identities) != 2 {
		t.Fatalf("expected 2 identities on target, got %d", len(identities))
	}
	for _, identity := range identities {
		if identity.AccountID != target.ID {
			t.Errorf("identity %s still on account %s", identity.ID, identity.AccountID)
		}
	}

	// 文件统计算到目标账户头上
	stats, err := env.accountSvc.GetStats(target.ID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalFiles != 2 || stats.TotalBytes != 300 {
		t.Errorf("expected 2 files / 300 bytes, got %d / %d", stats.TotalFiles, stats.TotalBytes)
	}
}

func TestMerge_SameAccountIsNoop(t *testing.T) {
	env := newTestEnv(t)

	account := env.mustCreateAccount(t, "solo@example.com")
	if err := env.accountSvc.Merge(account.ID, account.ID); err != nil {
		t.Fatalf("Merge same account: %v", err)
	}
	if _, err := env.accountSvc.GetByID(account.ID); err != nil {
		t.Errorf("account should survive self-merge, got %v", err)
	}
}

func TestMerge_MissingSourceRollsBack(t *testing.T) {
	env := newTestEnv(t)

	target := env.mustCreateAccount(t, "target@example.com")
	err := env.accountSvc.Merge("missing-source", target.ID)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMerge_MissingTargetRollsBack(t *testing.T) {
	env := newTestEnv(t)

	source := env.mustCreateAccount(t, "")
	identity := env.mustCreateIdentity(t, source.ID, model.IdentityKindDiscord, "discord-x")
	env.mustCreateFile(t, source.ID, identity.ID, 50, time.Time{})

	err := env.accountSvc.Merge(source.ID, "missing-target")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	// 回滚后源账户的数据原样保留
	stats, err := env.accountSvc.GetStats(source.ID)
	if err != nil {
		t.Fatalf("GetStats after rollback: %v", err)
	}
	if stats.TotalFiles != 1 {
		t.Errorf("expected file to stay on source after rollback, got %d files", stats.TotalFiles)
	}
	identities, err := env.accountSvc.GetIdentities(source.ID)
	if err != nil {
		t.Fatalf("GetIdentities after rollback: %v", err)
	}
	if len(identities) != 1 {
		t.Errorf("expected identity to stay on source after rollback, got %d", len(identities))
	}
}

func TestGetStats_RollingWindow(t *testing.T) {
	env := newTestEnv(t)

	account := env.mustCreateAccount(t, "window@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindWeb, "user-window")

	env.mustCreateFile(t, account.ID, identity.ID, 100, time.Now().Add(-1*time.Hour))
	env.mustCreateFile(t, account.ID, identity.ID, 200, time.Now().Add(-25*time.Hour))

	stats, err := env.accountSvc.GetStats(account.ID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalFiles != 2 || stats.TotalBytes != 300 {
		t.Errorf("totals: expected 2 / 300, got %d / %d", stats.TotalFiles, stats.TotalBytes)
	}
	if stats.FilesLast24h != 1 || stats.BytesLast24h != 100 {
		t.Errorf("window: expected 1 / 100, got %d / %d", stats.FilesLast24h, stats.BytesLast24h)
	}
}

func TestGetStats_MissingAccount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.accountSvc.GetStats("missing")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}
