package database

import (
	"exam_tutor_backend/internal/config"
	"exam_tutor_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.Charset,
		cfg.Database.ParseTime,
	)

	logMode := logger.Warn
	if cfg.Server.Mode == "debug" {
		logMode = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	// release 模式下仅在显式传入 -migrate 时执行迁移
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		err = db.AutoMigrate(
			&model.User{},
			&model.Exam{},
			&model.ExamSection{},
			&model.Question{},
			&model.AnswerOption{},
			&model.ExamImage{},
			&model.UserAnswer{},
			&model.ChatMessage{},
		)
		if err != nil {
			return nil, err
		}
		log.Println("Database migration completed")
	}

	return db, nil
}
