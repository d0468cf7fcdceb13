package service

import (
	"strings"
	"testing"
	"time"

	"echo-link-go/internal/config"
	"echo-link-go/internal/model"
)

func testLimitsConfig() config.LimitsConfig {
	return config.LimitsConfig{
		MaxFilesPerDay: 3,
		MaxBytesPerDay: 1000,
		MaxTotalFiles:  5,
		MaxTotalBytes:  5000,
	}
}

func newLimitsEnv(t *testing.T) (*testEnv, LimitsService) {
	t.Helper()
	env := newTestEnv(t)
	return env, NewLimitsService(testLimitsConfig(), env.accountRepo)
}

func TestAuthorize_AllowsWithinLimits(t *testing.T) {
	env, limits := newLimitsEnv(t)
	account := env.mustCreateAccount(t, "quota@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindWeb, "user-q")

	result, err := limits.Authorize(identity, 100)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !result.Allowed {
		t.Errorf("upload should be allowed, got reason %q", result.Reason)
	}
}

func TestAuthorize_NoAccountIsAllowed(t *testing.T) {
	_, limits := newLimitsEnv(t)

	identity := &model.UploadIdentity{ID: "orphan"}
	result, err := limits.Authorize(identity, 100)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !result.Allowed {
		t.Errorf("identity without account should be allowed, got %q", result.Reason)
	}
}

func TestAuthorizeAccount_DailyFileLimit(t *testing.T) {
	env, limits := newLimitsEnv(t)
	account := env.mustCreateAccount(t, "daily@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindWeb, "user-d")

	for i := 0; i < 3; i++ {
		env.mustCreateFile(t, account.ID, identity.ID, 10, time.Time{})
	}

	result, err := limits.AuthorizeAccount(account.ID, 10)
	if err != nil {
		t.Fatalf("AuthorizeAccount: %v", err)
	}
	if result.Allowed {
		t.Fatal("fourth upload of the day should be denied")
	}
	if !strings.Contains(result.Reason, "Daily file limit reached (3 files per 24 hours)") {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

func TestAuthorizeAccount_DailyByteLimit(t *testing.T) {
	env, limits := newLimitsEnv(t)
	account := env.mustCreateAccount(t, "bytes@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindWeb, "user-b")

	env.mustCreateFile(t, account.ID, identity.ID, 900, time.Time{})

	// 900 + 100 == 1000 正好在限额内
	result, err := limits.AuthorizeAccount(account.ID, 100)
	if err != nil {
		t.Fatalf("AuthorizeAccount: %v", err)
	}
	if !result.Allowed {
		t.Errorf("exact boundary should be allowed, got %q", result.Reason)
	}

	// 900 + 101 超出
	result, err = limits.AuthorizeAccount(account.ID, 101)
	if err != nil {
		t.Fatalf("AuthorizeAccount: %v", err)
	}
	if result.Allowed {
		t.Fatal("upload exceeding daily bytes should be denied")
	}
	if !strings.Contains(result.Reason, "Daily upload limit reached") {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

func TestAuthorizeAccount_TotalFileLimit(t *testing.T) {
	env, limits := newLimitsEnv(t)
	account := env.mustCreateAccount(t, "total@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindWeb, "user-t")

	// 5 个历史文件全部在 24 小时窗口之外，只触发总量限制
	old := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 5; i++ {
		env.mustCreateFile(t, account.ID, identity.ID, 10, old)
	}

	result, err := limits.AuthorizeAccount(account.ID, 10)
	if err != nil {
		t.Fatalf("AuthorizeAccount: %v", err)
	}
	if result.Allowed {
		t.Fatal("upload above total file limit should be denied")
	}
	if !strings.Contains(result.Reason, "Total file limit reached (5 files). Please delete some files to continue uploading.") {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

func TestAuthorizeAccount_TotalByteLimit(t *testing.T) {
	env, limits := newLimitsEnv(t)
	account := env.mustCreateAccount(t, "storage@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindWeb, "user-s")

	env.mustCreateFile(t, account.ID, identity.ID, 4950, time.Now().Add(-48*time.Hour))

	result, err := limits.AuthorizeAccount(account.ID, 100)
	if err != nil {
		t.Fatalf("AuthorizeAccount: %v", err)
	}
	if result.Allowed {
		t.Fatal("upload above total storage limit should be denied")
	}
	if !strings.Contains(result.Reason, "Total storage limit reached") {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

func TestAuthorizeAccount_DailyChecksTakePrecedence(t *testing.T) {
	env, limits := newLimitsEnv(t)
	account := env.mustCreateAccount(t, "precedence@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindWeb, "user-p")

	// 同时触发日文件数与总文件数时，报日限额
	for i := 0; i < 3; i++ {
		env.mustCreateFile(t, account.ID, identity.ID, 10, time.Time{})
	}
	for i := 0; i < 2; i++ {
		env.mustCreateFile(t, account.ID, identity.ID, 10, time.Now().Add(-48*time.Hour))
	}

	result, err := limits.AuthorizeAccount(account.ID, 10)
	if err != nil {
		t.Fatalf("AuthorizeAccount: %v", err)
	}
	if result.Allowed {
		t.Fatal("upload should be denied")
	}
	if !strings.Contains(result.Reason, "Daily file limit reached") {
		t.Errorf("daily check should win, got %q", result.Reason)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.50 KB"},
		{2 << 30, "2 GB"},
	}
	for _, c := range cases {
		if got := formatBytes(c.in); got != c.want {
			t.Errorf("formatBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
