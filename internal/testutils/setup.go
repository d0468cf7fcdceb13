// Package testutils 提供测试用的数据库初始化工具。
package testutils

import (
	"fmt"
	"sync/atomic"
	"testing"

	"echo-link-go/pkg/database"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testDBSeq int64

// SetupDB 为每个测试创建独立的内存 SQLite 数据库并完成表迁移。
// TranslateError 打开后，唯一索引冲突会被翻译成 gorm.ErrDuplicatedKey，
// 与生产环境的 MySQL 行为一致。
func SetupDB(t *testing.T) *gorm.DB {
	t.Helper()

	seq := atomic.AddInt64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:echolink_test_%d?mode=memory&cache=shared", seq)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := database.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
