package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"echo-link-go/internal/config"
	"echo-link-go/internal/model"
	"echo-link-go/internal/repository"
	"echo-link-go/pkg/log"
	"echo-link-go/pkg/token"
)

// CreateSessionParams 描述机器人发起的上传会话。
type CreateSessionParams struct {
	DiscordUserID           string
	DiscordUserName         string
	DiscordChannelID        string
	DiscordGuildID          string
	DiscordInteractionToken string
	DiscordApplicationID    string
}

// SessionService 接口定义了 Discord 上传会话的业务操作。
type SessionService interface {
	// Create 为一个 Discord 用户创建上传会话，必要时创建其上传身份。
	// 返回会话与浏览器上传地址。
	Create(params CreateSessionParams) (*model.DiscordUploadSession, string, error)
	// GetValidByToken 根据令牌取会话，已完成或过期的会话报错。
	GetValidByToken(sessionToken string) (*model.DiscordUploadSession, error)
	// CompleteUpload 用会话完成一次上传：校验会话、执行上传、CAS 完成会话，
	// 然后向 Discord 发送通知。
	CompleteUpload(ctx context.Context, sessionToken, fileName string, data []byte) (*UploadResult, error)
	// ExpireStale 将超时的 pending 会话标记为 expired，返回处理数量。
	ExpireStale() (int64, error)
}

// UploadNotifier 向 Discord 推送上传完成通知。
type UploadNotifier interface {
	SendUploadCompletion(ctx context.Context, applicationID, interactionToken, channelID, fileName string, fileSize int64, shareURL, fileID string) error
}

// sessionService 是 SessionService 接口的实现。
type sessionService struct {
	cfg         config.DiscordConfig
	sessionRepo repository.SessionRepository
	identitySvc IdentityService
	fileSvc     FileService
	notifier    UploadNotifier
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(cfg config.DiscordConfig, sessionRepo repository.SessionRepository, identitySvc IdentityService, fileSvc FileService, notifier UploadNotifier) SessionService {
	return &sessionService{
		cfg:         cfg,
		sessionRepo: sessionRepo,
		identitySvc: identitySvc,
		fileSvc:     fileSvc,
		notifier:    notifier,
	}
}

// Create 为一个 Discord 用户创建上传会话。
func (s *sessionService) Create(params CreateSessionParams) (*model.DiscordUploadSession, string, error) {
	var metadata model.IdentityMetadata
	if params.DiscordGuildID != "" {
		metadata = model.IdentityMetadata{"guild_id": params.DiscordGuildID}
	}
	identity, err := s.identitySvc.Resolve(model.IdentityKindDiscord, params.DiscordUserID, params.DiscordUserName, metadata)
	if err != nil {
		return nil, "", err
	}

	session := &model.DiscordUploadSession{
		ID:               uuid.NewString(),
		Token:            token.NewSessionToken(),
		UploadIdentityID: identity.ID,
		DiscordUserID:    params.DiscordUserID,
		DiscordChannelID: params.DiscordChannelID,
		Status:           model.SessionStatusPending,
		ExpiresAt:        time.Now().Add(time.Duration(s.cfg.SessionExpireMinutes) * time.Minute),
	}
	if params.DiscordUserName != "" {
		session.DiscordUserName = &params.DiscordUserName
	}
	if params.DiscordGuildID != "" {
		session.DiscordGuildID = &params.DiscordGuildID
	}
	if params.DiscordInteractionToken != "" {
		session.DiscordInteractionToken = &params.DiscordInteractionToken
	}
	if params.DiscordApplicationID != "" {
		session.DiscordApplicationID = &params.DiscordApplicationID
	}

	if err := s.sessionRepo.Create(session); err != nil {
		return nil, "", err
	}

	log.Infof("[SessionService] 创建上传会话, id: %s, discord_user: %s", session.ID, params.DiscordUserID)
	return session, "/discord/upload/" + session.Token, nil
}

// GetValidByToken 根据令牌取会话并校验状态。
func (s *sessionService) GetValidByToken(sessionToken string) (*model.DiscordUploadSession, error) {
	session, err := s.sessionRepo.FindByToken(sessionToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	switch session.Status {
	case model.SessionStatusCompleted:
		return nil, ErrSessionUsed
	case model.SessionStatusExpired:
		return nil, ErrSessionExpired
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	return session, nil
}

// CompleteUpload 用会话完成一次上传。
func (s *sessionService) CompleteUpload(ctx context.Context, sessionToken, fileName string, data []byte) (*UploadResult, error) {
	session, err := s.GetValidByToken(sessionToken)
	if err != nil {
		return nil, err
	}

	identity, err := s.identitySvc.GetByID(session.UploadIdentityID)
	if err != nil {
		return nil, err
	}

	result, err := s.fileSvc.Upload(ctx, UploadParams{
		Identity: identity,
		FileName: fileName,
		Data:     data,
	})
	if err != nil {
		return nil, err
	}

	// CAS 完成会话：并发上传同一会话时只有一方成功
	ok, err := s.sessionRepo.Complete(session.ID, result.File.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionUsed
	}

	// 通知是尽力而为，失败不影响上传结果
	applicationID := ""
	interactionToken := ""
	if session.DiscordApplicationID != nil {
		applicationID = *session.DiscordApplicationID
	}
	if session.DiscordInteractionToken != nil {
		interactionToken = *session.DiscordInteractionToken
	}
	if err := s.notifier.SendUploadCompletion(ctx, applicationID, interactionToken,
		session.DiscordChannelID, fileName, result.File.SizeBytes, result.ShareURL, result.File.ID); err != nil {
		log.Warnf("[SessionService] 发送 Discord 通知失败, session: %s, error: %v", session.ID, err)
	}

	log.Infof("[SessionService] 会话上传完成, session: %s, file: %s", session.ID, result.File.ID)
	return result, nil
}

// ExpireStale 批量过期超时的 pending 会话。
func (s *sessionService) ExpireStale() (int64, error) {
	count, err := s.sessionRepo.ExpireStale(time.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Infof("[SessionService] 过期上传会话清理完成, count: %d", count)
	}
	return count, nil
}
