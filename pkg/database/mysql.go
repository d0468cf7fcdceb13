package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"echo-link-go/internal/model"
	"echo-link-go/pkg/log"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		// 将驱动层的唯一键冲突错误翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	log.Info("MySQL database connected successfully")
}

// AutoMigrate 同步所有业务表结构。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Account{},
		&model.UploadIdentity{},
		&model.DiscordLinkRequest{},
		&model.User{},
		&model.MagicLink{},
		&model.UploadToken{},
		&model.File{},
		&model.DiscordUploadSession{},
	)
}
