package service

import (
	"testing"
	"time"

	"echo-link-go/internal/model"
	"echo-link-go/internal/repository"
	"echo-link-go/internal/testutils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// testEnv 聚合了测试用到的仓库与服务实例。
type testEnv struct {
	db           *gorm.DB
	accountRepo  repository.AccountRepository
	identityRepo repository.IdentityRepository
	linkRepo     repository.LinkRequestRepository
	fileRepo     repository.FileRepository
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository

	accountSvc  AccountService
	identitySvc IdentityService
	linkSvc     LinkService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutils.SetupDB(t)

	env := &testEnv{
		db:           db,
		accountRepo:  repository.NewAccountRepository(db),
		identityRepo: repository.NewIdentityRepository(db),
		linkRepo:     repository.NewLinkRequestRepository(db),
		fileRepo:     repository.NewFileRepository(db),
		userRepo:     repository.NewUserRepository(db),
		sessionRepo:  repository.NewSessionRepository(db),
	}
	env.accountSvc = NewAccountService(db, env.accountRepo, env.identityRepo, env.fileRepo)
	env.identitySvc = NewIdentityService(env.identityRepo, env.accountSvc)
	env.linkSvc = NewLinkService(db, env.linkRepo, env.identityRepo, env.accountSvc)
	return env
}

// mustCreateAccount 创建账户，失败直接终止测试。
func (env *testEnv) mustCreateAccount(t *testing.T, email string) *model.Account {
	t.Helper()
	account, err := env.accountSvc.Create(email)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

// mustCreateIdentity 在指定账户下直接插入一个上传身份。
func (env *testEnv) mustCreateIdentity(t *testing.T, accountID string, kind model.IdentityKind, externalID string) *model.UploadIdentity {
	t.Helper()
	identity := &model.UploadIdentity{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Kind:       kind,
		ExternalID: externalID,
	}
	if err := env.identityRepo.Create(identity); err != nil {
		t.Fatalf("create identity: %v", err)
	}
	return identity
}

// mustCreateFile 在指定账户下直接插入一条文件记录。
func (env *testEnv) mustCreateFile(t *testing.T, accountID, identityID string, sizeBytes int64, createdAt time.Time) *model.File {
	t.Helper()
	file := &model.File{
		ID:               uuid.NewString(),
		AccountID:        accountID,
		UploadIdentityID: identityID,
		S3Key:            "files/" + uuid.NewString(),
		MimeType:         "image/png",
		SizeBytes:        sizeBytes,
	}
	if err := env.fileRepo.Create(file); err != nil {
		t.Fatalf("create file: %v", err)
	}
	// created_at 由 gorm 自动填充，需要回写才能构造窗口外的数据
	if !createdAt.IsZero() {
		if err := env.db.Model(&model.File{}).Where("id = ?", file.ID).
			Update("created_at", createdAt).Error; err != nil {
			t.Fatalf("backdate file: %v", err)
		}
		file.CreatedAt = createdAt
	}
	return file
}
