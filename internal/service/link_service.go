package service

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"echo-link-go/internal/model"
	"echo-link-go/internal/repository"
	"echo-link-go/pkg/log"
)

const (
	// 绑定码字符表：base32 变体，去掉易混淆的 0、O、1、I
	linkCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// 绑定码有效期
	linkCodeExpiration = 30 * time.Minute
	// 唯一索引冲突时的重试次数
	linkCodeMaxRetries = 5
)

// LinkStatus 表示一次绑定码兑换的结果分支。
type LinkStatus string

const (
	LinkStatusLinked        LinkStatus = "linked"
	LinkStatusAlreadyLinked LinkStatus = "already_linked"
	LinkStatusMerged        LinkStatus = "merged"
)

// LinkResult 描述兑换绑定码产生的结果。
type LinkResult struct {
	Status              LinkStatus `json:"status"`
	AccountID           string     `json:"accountId"`
	IdentityID          string     `json:"identityId"`
	MergedFromAccountID string     `json:"mergedFromAccountId,omitempty"`
}

// CreateLinkResult 描述新创建的绑定请求。
type CreateLinkResult struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LinkService 接口定义了 Discord 账户绑定相关的业务操作。
type LinkService interface {
	// CreateRequest 为账户生成一个新的绑定码，并作废该账户所有未使用的旧码。
	CreateRequest(accountID string) (*CreateLinkResult, error)
	// Redeem 用绑定码把一个 Discord 用户绑定到目标账户。
	// Discord 用户已有账户且与目标不同时会触发账户合并。
	// 整个兑换在一个事务中完成，进入分支前先以 CAS 消费绑定码，
	// 并发兑换同一个码时输家在行锁上等待后拿到 0 行，报码已使用；
	// 后续合并失败会回滚整个事务，码恢复可用。
	Redeem(code, discordUserID, discordUserName, discordGuildID string) (*LinkResult, error)
	// ListPending 列出账户当前有效的绑定请求。
	ListPending(accountID string) ([]model.DiscordLinkRequest, error)
}

// linkService 是 LinkService 接口的实现。
type linkService struct {
	db           *gorm.DB
	linkRepo     repository.LinkRequestRepository
	identityRepo repository.IdentityRepository
	accountSvc   AccountService
}

// NewLinkService 创建一个新的 LinkService 实例。
func NewLinkService(db *gorm.DB, linkRepo repository.LinkRequestRepository, identityRepo repository.IdentityRepository, accountSvc AccountService) LinkService {
	return &linkService{
		db:           db,
		linkRepo:     linkRepo,
		identityRepo: identityRepo,
		accountSvc:   accountSvc,
	}
}

// generateLinkCode 生成 XXX-XXX 格式的绑定码。
func generateLinkCode() string {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand 失败极罕见，退化为时间种子会破坏码的不可预测性，直接 panic
		panic(err)
	}

	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(linkCodeAlphabet[int(bytes[i])%len(linkCodeAlphabet)])
		if i == 2 {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// normalizeLinkCode 统一大小写并去除首尾空白。
func normalizeLinkCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateRequest 为账户生成一个新的绑定码。
func (s *linkService) CreateRequest(accountID string) (*CreateLinkResult, error) {
	if _, err := s.accountSvc.GetByID(accountID); err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(linkCodeExpiration)

	// 新码作废旧码：一个账户同一时刻只有一个有效绑定码
	if _, err := s.linkRepo.InvalidateUnused(accountID, now); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < linkCodeMaxRetries; i++ {
		request := &model.DiscordLinkRequest{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Code:      generateLinkCode(),
			ExpiresAt: expiresAt,
		}
		err := s.linkRepo.Create(request)
		if err == nil {
			log.Infof("[LinkService] 创建绑定请求, account: %s, code: %s", accountID, request.Code)
			return &CreateLinkResult{Code: request.Code, ExpiresAt: expiresAt}, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Redeem 兑换一个绑定码。
func (s *linkService) Redeem(code, discordUserID, discordUserName, discordGuildID string) (*LinkResult, error) {
	normalized := normalizeLinkCode(code)

	var result *LinkResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		request, err := s.linkRepo.WithTx(tx).FindByCode(normalized)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidCode
			}
			return err
		}

		now := time.Now()
		if request.StateAt(now) != model.LinkStatePending {
			return ErrExpiredOrUsedCode
		}

		// 进入分支前先消费绑定码：并发兑换者在这一行上互斥，
		// 输家等到行锁后 CAS 拿到 0 行，统一报码已使用。
		// 后面任何一步失败都会回滚 used_at，码保持可兑换。
		ok, err := s.linkRepo.WithTx(tx).MarkUsed(request.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrExpiredOrUsedCode
		}

		linkResult, err := s.redeemBranch(tx, request.AccountID, discordUserID, discordUserName, discordGuildID)
		if err != nil {
			return err
		}

		result = linkResult
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[LinkService] 绑定码兑换成功, status: %s, discord_user: %s, account: %s",
		result.Status, discordUserID, result.AccountID)
	return result, nil
}

// redeemBranch 根据 Discord 用户当前的身份状态选择绑定分支。
func (s *linkService) redeemBranch(tx *gorm.DB, targetAccountID, discordUserID, discordUserName, discordGuildID string) (*LinkResult, error) {
	identityRepo := s.identityRepo.WithTx(tx)

	existing, err := identityRepo.FindByKindAndExternalID(model.IdentityKindDiscord, discordUserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 分支 A：Discord 用户没有身份，直接在目标账户下创建
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var metadata model.IdentityMetadata
		if discordGuildID != "" {
			metadata = model.IdentityMetadata{"guild_id": discordGuildID}
		}
		identity := &model.UploadIdentity{
			ID:            uuid.NewString(),
			AccountID:     targetAccountID,
			Kind:          model.IdentityKindDiscord,
			ExternalID:    discordUserID,
			ExtraMetadata: metadata,
		}
		if discordUserName != "" {
			identity.DisplayName = &discordUserName
		}
		if createErr := identityRepo.Create(identity); createErr != nil {
			// 并发创建同一 Discord 身份：退化为查找后按已有身份分支处理
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				existing, findErr := identityRepo.FindByKindAndExternalID(model.IdentityKindDiscord, discordUserID)
				if findErr != nil {
					return nil, findErr
				}
				return s.existingIdentityBranch(tx, existing, targetAccountID)
			}
			return nil, createErr
		}
		return &LinkResult{
			Status:     LinkStatusLinked,
			AccountID:  targetAccountID,
			IdentityID: identity.ID,
		}, nil
	}

	return s.existingIdentityBranch(tx, existing, targetAccountID)
}

// existingIdentityBranch 处理 Discord 用户已有身份的两种情况。
func (s *linkService) existingIdentityBranch(tx *gorm.DB, existing *model.UploadIdentity, targetAccountID string) (*LinkResult, error) {
	// 分支 B：已经绑定到目标账户，幂等返回
	if existing.AccountID == targetAccountID {
		return &LinkResult{
			Status:     LinkStatusAlreadyLinked,
			AccountID:  targetAccountID,
			IdentityID: existing.ID,
		}, nil
	}

	// 分支 C：绑定到了别的账户，把旧账户整体并入目标账户
	sourceAccountID := existing.AccountID
	if err := s.accountSvc.MergeInTx(tx, sourceAccountID, targetAccountID); err != nil {
		return nil, err
	}
	return &LinkResult{
		Status:              LinkStatusMerged,
		AccountID:           targetAccountID,
		IdentityID:          existing.ID,
		MergedFromAccountID: sourceAccountID,
	}, nil
}

// ListPending 列出账户当前有效的绑定请求。
func (s *linkService) ListPending(accountID string) ([]model.DiscordLinkRequest, error) {
	return s.linkRepo.ListPending(accountID, time.Now())
}
