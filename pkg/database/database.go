package database

import (
	"fmt"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models 参与自动迁移的全部模型，顺序即建表顺序
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Course{},
		&model.Chapter{},
		&model.Video{},
		&model.Document{},
		&model.Agent{},
		&model.Enrollment{},
		&model.ContentCompletion{},
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.QuizAttempt{},
	}
}

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	logLevel := logger.Warn
	if mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")
	return db, nil
}

// Migrate 建表并补齐缺失字段
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	log.Println("Database migration completed")
	return nil
}

// NeedsMigration 任一模型对应的表不存在时返回 true
func NeedsMigration(db *gorm.DB) bool {
	for _, m := range Models() {
		if !db.Migrator().HasTable(m) {
			return true
		}
	}
	return false
}
