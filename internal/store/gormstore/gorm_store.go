package gormstore

import (
	"fmt"

	"optwatch/internal/store"
	storemodel "optwatch/internal/store/model"

	"gorm.io/gorm"
)

type watchModel = storemodel.WatchModel
type contractLogModel = storemodel.ContractLogModel

// GormStore implements watch and ledger storage on top of any gorm dialect.
type GormStore struct {
	db *gorm.DB
}

var _ store.Store = (*GormStore)(nil)

// New 在已打开的连接上执行迁移并返回存储实例。
func New(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("gorm store: migrate failed: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}


// migrate 建表；表已存在时只补齐缺失列，不改动既有列类型。
func migrate(db *gorm.DB) error {
	mg := db.Migrator()
	for _, mdl := range []any{&watchModel{}, &contractLogModel{}} {
		if !mg.HasTable(mdl) {
			if err := mg.CreateTable(mdl); err != nil {
				return err
			}
			continue
		}
		if err := addMissingColumns(db, mdl); err != nil {
			return err
		}
	}
	return nil
}

func addMissingColumns(db *gorm.DB, mdl any) error {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(mdl); err != nil {
		return err
	}
	mg := db.Migrator()
	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" || mg.HasColumn(mdl, field.DBName) {
			continue
		}
		if err := mg.AddColumn(mdl, field.Name); err != nil {
			return fmt.Errorf("add column %s.%s: %w", stmt.Schema.Table, field.DBName, err)
		}
	}
	return nil
}
