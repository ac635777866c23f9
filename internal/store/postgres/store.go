// Package postgres 打开生产环境使用的 PostgreSQL 连接。
package postgres

import (
	"fmt"
	"strings"
	"time"

	"optwatch/internal/store/gormstore"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
}

func (o Options) DSN() string {
	ssl := strings.TrimSpace(o.SSLMode)
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		o.Host, o.Port, o.Database, o.User, o.Password, ssl)
}

func Open(opts Options) (*gorm.DB, error) {
	if strings.TrimSpace(opts.Host) == "" || strings.TrimSpace(opts.Database) == "" {
		return nil, fmt.Errorf("postgres host and database are required")
	}
	db, err := gorm.Open(postgres.Open(opts.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = 5
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func NewPostgresStore(opts Options) (*gormstore.GormStore, error) {
	db, err := Open(opts)
	if err != nil {
		return nil, err
	}
	return gormstore.New(db)
}
