// Package database 负责关系型数据库连接、迁移以及 Redis 客户端初始化。
package database

import (
	"fmt"
	"strings"
	"time"

	"seorocket/internal/model"
	"seorocket/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

// DB 全局 GORM 实例。未配置 DSN 时保持 nil，核心服务据此走"未配置"分支。
var DB *gorm.DB

// Open 按驱动名打开数据库连接，支持 mysql / postgres / sqlite。
// gorm 的 SQL 日志通过 zapgorm2 写入 pkg/log 的 zap logger。
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "mysql":
		dialector = mysql.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormLogger := zapgorm2.New(log.GetLogger())
	gormLogger.LogLevel = logger.Warn
	gormLogger.SlowThreshold = 500 * time.Millisecond
	gormLogger.IgnoreRecordNotFoundError = true

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)           // 最大空闲连接数
	sqlDB.SetMaxOpenConns(100)          // 最大打开连接数
	sqlDB.SetConnMaxLifetime(time.Hour) // 连接最大存活时间
	return db, nil
}

// Init 初始化全局 DB。dsn 为空时只打警告，不退出进程：
// 此时所有读操作返回空集合，写操作返回失败。
func Init(driver, dsn string) {
	if strings.TrimSpace(dsn) == "" {
		log.Warn("database dsn not configured, catalog will serve empty results")
		return
	}
	db, err := Open(driver, dsn)
	if err != nil {
		log.Fatal("Failed to connect to database", err)
	}
	DB = db
	log.Infof("Connected to %s", driver)
}

// RunMigrate 自动迁移所有表结构。
func RunMigrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	log.Info("Running migrations...")
	if err := db.AutoMigrate(
		&model.User{},
		&model.Tag{},
		&model.Product{},
		&model.ProductTag{},
		&model.BlogPost{},
	); err != nil {
		log.Errorf("Failed to run migrations: %v", err)
		return err
	}
	log.Info("Migrations completed successfully")
	return nil
}
