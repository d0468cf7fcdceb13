package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"echo-link-go/internal/model"
	"echo-link-go/internal/testutils"
)

func newSession(t *testing.T, repo SessionRepository, expiresAt time.Time) *model.DiscordUploadSession {
	t.Helper()
	session := &model.DiscordUploadSession{
		ID:               uuid.NewString(),
		Token:            uuid.NewString(),
		UploadIdentityID: uuid.NewString(),
		DiscordUserID:    "discord-1",
		DiscordChannelID: "chan-1",
		Status:           model.SessionStatusPending,
		ExpiresAt:        expiresAt,
	}
	if err := repo.Create(session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

// Complete 的 CAS 保证同一会话只有一次上传能成功。
func TestComplete_SingleWinner(t *testing.T) {
	db := testutils.SetupDB(t)
	repo := NewSessionRepository(db)

	session := newSession(t, repo, time.Now().Add(15*time.Minute))

	ok, err := repo.Complete(session.ID, uuid.NewString(), time.Now())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !ok {
		t.Fatal("第一次 Complete 应当成功")
	}

	ok, err = repo.Complete(session.ID, uuid.NewString(), time.Now())
	if err != nil {
		t.Fatalf("Complete(第二次): %v", err)
	}
	if ok {
		t.Fatal("已完成的会话不应再次被 Complete")
	}

	stored, err := repo.FindByID(session.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status != model.SessionStatusCompleted {
		t.Fatalf("状态应为 completed, 实际 %s", stored.Status)
	}
	if stored.FileID == nil || stored.CompletedAt == nil {
		t.Fatal("完成后 file_id 与 completed_at 都应当有值")
	}
}

// ExpireStale 只处理超时的 pending 会话。
func TestExpireStale_OnlyPending(t *testing.T) {
	db := testutils.SetupDB(t)
	repo := NewSessionRepository(db)

	stale := newSession(t, repo, time.Now().Add(-time.Minute))
	live := newSession(t, repo, time.Now().Add(15*time.Minute))
	done := newSession(t, repo, time.Now().Add(-time.Minute))
	if ok, err := repo.Complete(done.ID, uuid.NewString(), time.Now()); err != nil || !ok {
		t.Fatalf("Complete: ok=%v, err=%v", ok, err)
	}

	count, err := repo.ExpireStale(time.Now())
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if count != 1 {
		t.Fatalf("应当只过期 1 条会话, 实际 %d", count)
	}

	for _, tc := range []struct {
		id   string
		want string
	}{
		{stale.ID, model.SessionStatusExpired},
		{live.ID, model.SessionStatusPending},
		{done.ID, model.SessionStatusCompleted},
	} {
		stored, err := repo.FindByID(tc.id)
		if err != nil {
			t.Fatalf("FindByID(%s): %v", tc.id, err)
		}
		if stored.Status != tc.want {
			t.Fatalf("会话 %s 状态应为 %s, 实际 %s", tc.id, tc.want, stored.Status)
		}
	}
}
