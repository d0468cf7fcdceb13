// Package pipeline 定义了视频缩略图生成的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"echo-link-go/internal/config"
	"echo-link-go/internal/repository"
	"echo-link-go/pkg/log"
	"echo-link-go/pkg/storage"
	"echo-link-go/pkg/tasks"
)

const (
	thumbnailWidth  = 640
	thumbnailHeight = 360
	// ffmpeg 的 -q:v 质量档位，2-31，越小越好
	thumbnailQuality = "5"
	// 默认从第 1 秒取帧
	frameTimestamp = "00:00:01"
	ffmpegTimeout  = 30 * time.Second
)

// Processor 封装了缩略图生成的所有依赖和逻辑。
type Processor struct {
	minioCfg config.MinIOConfig
	fileRepo repository.FileRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(minioCfg config.MinIOConfig, fileRepo repository.FileRepository) *Processor {
	return &Processor{
		minioCfg: minioCfg,
		fileRepo: fileRepo,
	}
}

// Process 是缩略图任务的主函数：
// 从 MinIO 下载视频，用 ffmpeg 抽帧，把缩略图写回 MinIO 并更新文件记录。
func (p *Processor) Process(ctx context.Context, task tasks.ThumbnailTask) error {
	log.Infof("[Processor] 开始生成缩略图, FileID: %s, Key: %s", task.FileID, task.S3Key)

	if !strings.HasPrefix(task.MimeType, "video/") {
		log.Warnf("[Processor] 非视频文件跳过缩略图生成, FileID: %s, MimeType: %s", task.FileID, task.MimeType)
		return nil
	}

	// 1. 从 MinIO 下载视频
	data, err := storage.GetBytes(ctx, p.minioCfg.BucketName, task.S3Key)
	if err != nil {
		log.Errorf("[Processor] 从MinIO下载视频失败, Key: %s, Error: %v", task.S3Key, err)
		return fmt.Errorf("从 MinIO 下载视频失败: %w", err)
	}
	if len(data) == 0 {
		log.Warnf("[Processor] 视频内容为空, 处理中止, FileID: %s", task.FileID)
		return errors.New("视频内容为空")
	}
	log.Infof("[Processor] 步骤1: 视频下载成功, 大小: %d字节", len(data))

	// 2. 写入临时文件并用 ffmpeg 抽帧
	tempDir := os.TempDir()
	inputPath := filepath.Join(tempDir, uuid.NewString()+".video")
	outputPath := filepath.Join(tempDir, uuid.NewString()+".jpg")
	defer func() {
		_ = os.Remove(inputPath)
		_ = os.Remove(outputPath)
	}()

	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return fmt.Errorf("写入临时视频文件失败: %w", err)
	}

	if err := p.runFfmpeg(ctx, inputPath, outputPath); err != nil {
		log.Errorf("[Processor] ffmpeg 抽帧失败, FileID: %s, Error: %v", task.FileID, err)
		return err
	}

	thumbnail, err := os.ReadFile(outputPath)
	if err != nil {
		return fmt.Errorf("读取缩略图失败: %w", err)
	}
	log.Infof("[Processor] 步骤2: 抽帧成功, 缩略图大小: %d字节", len(thumbnail))

	// 3. 缩略图写回 MinIO 并更新文件记录
	thumbnailKey := fmt.Sprintf("thumbnails/%s.jpg", task.FileID)
	if err := storage.PutBytes(ctx, p.minioCfg.BucketName, thumbnailKey, thumbnail, "image/jpeg"); err != nil {
		return fmt.Errorf("上传缩略图失败: %w", err)
	}

	if err := p.fileRepo.SetThumbnailKey(task.FileID, thumbnailKey); err != nil {
		return fmt.Errorf("更新文件缩略图记录失败: %w", err)
	}

	log.Infof("[Processor] 缩略图生成完成, FileID: %s, Key: %s", task.FileID, thumbnailKey)
	return nil
}

// runFfmpeg 调用 ffmpeg 在固定时间点抽取一帧并缩放到目标尺寸。
func (p *Processor) runFfmpeg(ctx context.Context, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black",
		thumbnailWidth, thumbnailHeight, thumbnailWidth, thumbnailHeight)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-ss", frameTimestamp,
		"-vframes", "1",
		"-vf", scale,
		"-q:v", thumbnailQuality,
		"-y",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg 执行超时 (%s)", ffmpegTimeout)
		}
		tail := string(output)
		if len(tail) > 500 {
			tail = tail[len(tail)-500:]
		}
		return fmt.Errorf("ffmpeg 执行失败: %w, 输出: %s", err, tail)
	}
	return nil
}
