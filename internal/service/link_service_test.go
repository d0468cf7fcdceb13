package service

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"echo-link-go/internal/model"
)

var linkCodePattern = regexp.MustCompile(`^[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{3}-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{3}$`)

func TestGenerateLinkCode_Format(t *testing.T) {
	for i := 0; i < 10000; i++ {
		code := generateLinkCode()
		if !linkCodePattern.MatchString(code) {
			t.Fatalf("code %q does not match XXX-XXX format", code)
		}
	}
}

func TestCreateRequest_SupersedesPreviousCodes(t *testing.T) {
	env := newTestEnv(t)
	account := env.mustCreateAccount(t, "link@example.com")

	first, err := env.linkSvc.CreateRequest(account.ID)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	second, err := env.linkSvc.CreateRequest(account.ID)
	if err != nil {
		t.Fatalf("CreateRequest (second): %v", err)
	}
	if first.Code == second.Code {
		t.Fatalf("expected distinct codes, both were %q", first.Code)
	}

	// 老码被作废，只剩新码有效
	pending, err := env.linkSvc.ListPending(account.ID)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].Code != second.Code {
		t.Errorf("expected only the newest code pending, got %+v", pending)
	}

	// 老码无法兑换
	if _, err := env.linkSvc.Redeem(first.Code, "discord-s", "", ""); !errors.Is(err, ErrExpiredOrUsedCode) {
		t.Errorf("superseded code should be unusable, got %v", err)
	}
}

func TestCreateRequest_MissingAccount(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.linkSvc.CreateRequest("missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRedeem_LinksNewDiscordUser(t *testing.T) {
	env := newTestEnv(t)
	account := env.mustCreateAccount(t, "fresh@example.com")

	created, err := env.linkSvc.CreateRequest(account.ID)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	result, err := env.linkSvc.Redeem(created.Code, "discord-new", "NewUser", "guild-1")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if result.Status != LinkStatusLinked {
		t.Errorf("expected status linked, got %s", result.Status)
	}
	if result.AccountID != account.ID {
		t.Errorf("expected account %s, got %s", account.ID, result.AccountID)
	}

	identity, err := env.identityRepo.FindByKindAndExternalID(model.IdentityKindDiscord, "discord-new")
	if err != nil {
		t.Fatalf("FindByKindAndExternalID: %v", err)
	}
	if identity.AccountID != account.ID {
		t.Errorf("identity should be bound to %s, got %s", account.ID, identity.AccountID)
	}
	if identity.ExtraMetadata.GuildID() != "guild-1" {
		t.Errorf("guild metadata missing, got %v", identity.ExtraMetadata)
	}
}

func TestRedeem_NormalizesCode(t *testing.T) {
	env := newTestEnv(t)
	account := env.mustCreateAccount(t, "case@example.com")

	created, err := env.linkSvc.CreateRequest(account.ID)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	lower := "  " + strings.ToLower(created.Code) + " "
	result, err := env.linkSvc.Redeem(lower, "discord-case", "", "")
	if err != nil {
		t.Fatalf("Redeem with lowercased code: %v", err)
	}
	if result.Status != LinkStatusLinked {
		t.Errorf("expected status linked, got %s", result.Status)
	}
}

func TestRedeem_AlreadyLinkedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	account := env.mustCreateAccount(t, "idem@example.com")
	env.mustCreateIdentity(t, account.ID, model.IdentityKindDiscord, "discord-idem")

	created, err := env.linkSvc.CreateRequest(account.ID)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	result, err := env.linkSvc.Redeem(created.Code, "discord-idem", "", "")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if result.Status != LinkStatusAlreadyLinked {
		t.Errorf("expected status already_linked, got %s", result.Status)
	}
}

func TestRedeem_MergesForeignAccount(t *testing.T) {
	env := newTestEnv(t)

	// Discord 用户已有自己的账户和文件
	discordAccount := env.mustCreateAccount(t, "")
	discordIdentity := env.mustCreateIdentity(t, discordAccount.ID, model.IdentityKindDiscord, "discord-merge")
	env.mustCreateFile(t, discordAccount.ID, discordIdentity.ID, 500, time.Time{})

	// 目标账户发起绑定
	target := env.mustCreateAccount(t, "merge@example.com")
	created, err := env.linkSvc.CreateRequest(target.ID)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	result, err := env.linkSvc.Redeem(created.Code, "discord-merge", "", "")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if result.Status != LinkStatusMerged {
		t.Fatalf("expected status merged, got %s", result.Status)
	}
	if result.MergedFromAccountID != discordAccount.ID {
		t.Errorf("expected merged from %s, got %s", discordAccount.ID, result.MergedFromAccountID)
	}

	// 旧账户消失，文件与身份都在目标账户名下
	if _, err := env.accountSvc.GetByID(discordAccount.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("source account should be deleted, got %v", err)
	}
	stats, err := env.accountSvc.GetStats(target.ID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalFiles != 1 || stats.TotalBytes != 500 {
		t.Errorf("expected merged files on target, got %d / %d", stats.TotalFiles, stats.TotalBytes)
	}
}

func TestRedeem_InvalidCode(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.linkSvc.Redeem("ZZZ-ZZZ", "discord-x", "", ""); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode, got %v", err)
	}
}

func TestRedeem_CodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	account := env.mustCreateAccount(t, "single@example.com")

	created, err := env.linkSvc.CreateRequest(account.ID)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	if _, err := env.linkSvc.Redeem(created.Code, "discord-first", "", ""); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := env.linkSvc.Redeem(created.Code, "discord-second", "", ""); !errors.Is(err, ErrExpiredOrUsedCode) {
		t.Errorf("second redeem should fail, got %v", err)
	}
}

// 合并分支失败时整个事务回滚：绑定码不能被留在已消费状态，重试必须成功。
func TestRedeem_FailedMergeKeepsCodeRedeemable(t *testing.T) {
	env := newTestEnv(t)

	// Discord 用户自己的账户，兑换会走合并分支
	discordAccount := env.mustCreateAccount(t, "")
	env.mustCreateIdentity(t, discordAccount.ID, model.IdentityKindDiscord, "discord-retry")

	target := env.mustCreateAccount(t, "retry@example.com")
	created, err := env.linkSvc.CreateRequest(target.ID)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	// 目标账户在兑换前被删掉，合并中途失败
	if err := env.db.Delete(&model.Account{}, "id = ?", target.ID).Error; err != nil {
		t.Fatalf("delete target account: %v", err)
	}
	if _, err := env.linkSvc.Redeem(created.Code, "discord-retry", "", ""); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	// used_at 必须随事务回滚，码保持待兑换
	stored, err := env.linkRepo.FindByCode(created.Code)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if stored.UsedAt != nil {
		t.Fatal("failed redeem must not leave the code consumed")
	}
	if got := stored.StateAt(time.Now()); got != model.LinkStatePending {
		t.Fatalf("expected pending, got %v", got)
	}

	// 目标账户恢复后重试成功
	if err := env.db.Create(&model.Account{ID: target.ID}).Error; err != nil {
		t.Fatalf("recreate target account: %v", err)
	}
	result, err := env.linkSvc.Redeem(created.Code, "discord-retry", "", "")
	if err != nil {
		t.Fatalf("Redeem (retry): %v", err)
	}
	if result.Status != LinkStatusMerged {
		t.Errorf("expected status merged, got %s", result.Status)
	}

	// 码已消费，再次兑换只会报码已使用，不会再进合并分支
	if _, err := env.linkSvc.Redeem(created.Code, "discord-retry", "", ""); !errors.Is(err, ErrExpiredOrUsedCode) {
		t.Errorf("consumed code should report expired/used, got %v", err)
	}
}

func TestRedeem_ExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	account := env.mustCreateAccount(t, "expired@example.com")

	created, err := env.linkSvc.CreateRequest(account.ID)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	// 把过期时间改到过去
	if err := env.db.Model(&model.DiscordLinkRequest{}).
		Where("code = ?", created.Code).
		Update("expires_at", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("backdate request: %v", err)
	}

	if _, err := env.linkSvc.Redeem(created.Code, "discord-late", "", ""); !errors.Is(err, ErrExpiredOrUsedCode) {
		t.Errorf("expected ErrExpiredOrUsedCode, got %v", err)
	}
}

func TestLinkRequestStateAt(t *testing.T) {
	now := time.Now()
	used := now.Add(-time.Minute)

	request := model.DiscordLinkRequest{ExpiresAt: now.Add(10 * time.Minute)}
	if got := request.StateAt(now); got != model.LinkStatePending {
		t.Errorf("expected pending, got %v", got)
	}

	request.ExpiresAt = now.Add(-time.Minute)
	if got := request.StateAt(now); got != model.LinkStateExpired {
		t.Errorf("expected expired, got %v", got)
	}

	// used 优先于 expired
	request.UsedAt = &used
	if got := request.StateAt(now); got != model.LinkStateUsed {
		t.Errorf("expected used, got %v", got)
	}
}
