// 手动导入种子数据脚本
//
// 主程序也支持 -seed 参数在启动时导入。
// 此脚本只连接数据库，不启动 HTTP 服务，适合部署前初始化。
//
// 用法: go run scripts/seed.go [scripts/seed.yaml]

package main

import (
	"context"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/service"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/logger"
	"log"
	"os"
)

func main() {
	path := "scripts/seed.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	auth := service.NewAuthService(repository.NewUserRepository(db), cfg)
	// 种子数据只引用已有的文件地址，不需要上传
	courses := service.NewCourseService(repository.NewCourseRepository(db), repository.NewEnrollmentRepository(db), nil)
	quizzes := service.NewQuizService(repository.NewQuizRepository(db), repository.NewQuizAttemptRepository(db), service.NewAIService(cfg.AI))

	report, err := service.NewSeedService(auth, courses, quizzes).SeedFile(context.Background(), path)
	if err != nil {
		log.Fatalf("导入失败: %v", err)
	}
	log.Printf("完成！新增用户 %d，课程 %d，测验 %d", report.Users, report.Courses, report.Quizzes)
}
