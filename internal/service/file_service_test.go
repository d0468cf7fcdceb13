package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"echo-link-go/internal/config"
	"echo-link-go/internal/model"
)

// pngBytes 是一个最小的 PNG 文件头，足够魔数识别。
var pngBytes = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00,
}

// mp4Bytes 是一个最小的 MP4 ftyp 盒子。
var mp4Bytes = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
	'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00,
	'i', 's', 'o', 'm', 'i', 's', 'o', '2',
}

func TestValidateFileType_AcceptsImages(t *testing.T) {
	result := validateFileType(pngBytes)
	if !result.Allowed {
		t.Fatalf("PNG should be allowed, got %q (%s)", result.Reason, result.DetectedMime)
	}
	if result.DetectedMime != "image/png" {
		t.Errorf("expected image/png, got %s", result.DetectedMime)
	}
}

func TestValidateFileType_AcceptsMP4(t *testing.T) {
	result := validateFileType(mp4Bytes)
	if !result.Allowed {
		t.Fatalf("MP4 should be allowed, got %q (%s)", result.Reason, result.DetectedMime)
	}
	if !strings.HasPrefix(result.DetectedMime, "video/") {
		t.Errorf("expected video mime, got %s", result.DetectedMime)
	}
}

func TestValidateFileType_AcceptsPDF(t *testing.T) {
	result := validateFileType([]byte("%PDF-1.4\n%some pdf content"))
	if !result.Allowed {
		t.Fatalf("PDF should be allowed, got %q (%s)", result.Reason, result.DetectedMime)
	}
}

func TestValidateFileType_RejectsPlainText(t *testing.T) {
	result := validateFileType([]byte("hello, just some text"))
	if result.Allowed {
		t.Fatalf("plain text should be rejected, detected %s", result.DetectedMime)
	}
}

func TestValidateFileType_RejectsHTML(t *testing.T) {
	result := validateFileType([]byte("<!DOCTYPE html><html><script>alert(1)</script></html>"))
	if result.Allowed {
		t.Fatalf("html should be rejected, detected %s", result.DetectedMime)
	}
}

func TestValidateFileType_RejectsUnknownBinary(t *testing.T) {
	result := validateFileType([]byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe, 0xfd})
	if result.Allowed {
		t.Fatalf("unidentifiable binary should be rejected, detected %s", result.DetectedMime)
	}
}

func newFileEnv(t *testing.T, limitsCfg config.LimitsConfig) (*testEnv, FileService, *model.UploadIdentity) {
	t.Helper()
	env := newTestEnv(t)
	limits := NewLimitsService(limitsCfg, env.accountRepo)
	svc := NewFileService(
		config.FilesConfig{MaxSizeBytes: 1 << 20, ExpirationDays: 30},
		config.PublicConfig{BaseURL: "https://files.example.com", CDNBaseURL: "https://cdn.example.com"},
		config.MinIOConfig{BucketName: "test-bucket"},
		env.fileRepo, limits,
	)

	account := env.mustCreateAccount(t, "uploader@example.com")
	identity := env.mustCreateIdentity(t, account.ID, model.IdentityKindWeb, "user-up")
	return env, svc, identity
}

func TestUpload_RejectsEmptyFile(t *testing.T) {
	_, svc, identity := newFileEnv(t, testLimitsConfig())

	_, err := svc.Upload(context.Background(), UploadParams{Identity: identity, FileName: "empty.png"})
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	_, svc, identity := newFileEnv(t, testLimitsConfig())

	big := make([]byte, (1<<20)+1)
	copy(big, pngBytes)
	_, err := svc.Upload(context.Background(), UploadParams{Identity: identity, FileName: "big.png", Data: big})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	_, svc, identity := newFileEnv(t, testLimitsConfig())

	_, err := svc.Upload(context.Background(), UploadParams{Identity: identity, FileName: "note.txt", Data: []byte("plain text")})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestUpload_RejectsWhenQuotaExhausted(t *testing.T) {
	// 日配额为零，任何上传都会被配额拒绝
	_, svc, identity := newFileEnv(t, config.LimitsConfig{
		MaxFilesPerDay: 0,
		MaxBytesPerDay: 1000,
		MaxTotalFiles:  10,
		MaxTotalBytes:  10000,
	})

	_, err := svc.Upload(context.Background(), UploadParams{Identity: identity, FileName: "pic.png", Data: pngBytes})
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected *QuotaError, got %v", err)
	}
	if !strings.Contains(quotaErr.Reason, "Daily file limit reached") {
		t.Errorf("unexpected reason %q", quotaErr.Reason)
	}
}

func TestShareAndDirectURLs(t *testing.T) {
	_, svc, _ := newFileEnv(t, testLimitsConfig())

	if got := svc.ShareURL("abc"); got != "https://files.example.com/v/abc" {
		t.Errorf("ShareURL = %q", got)
	}
	if got := svc.DirectURL("videos/abc.mp4"); got != "https://cdn.example.com/files/videos/abc.mp4" {
		t.Errorf("DirectURL = %q", got)
	}
}
