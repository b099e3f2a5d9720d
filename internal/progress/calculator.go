package progress

import (
	"math"

	"learnhub_backend/internal/model"

	"github.com/samber/lo"
)

// Summary 课程进度汇总。特殊文档不计入总数和完成数，智能体没有完成状态
type Summary struct {
	TotalVideos        int `json:"totalVideos"`
	CompletedVideos    int `json:"completedVideos"`
	TotalDocuments     int `json:"totalDocuments"`
	CompletedDocuments int `json:"completedDocuments"`
	TotalAgents        int `json:"totalAgents"`
	TotalContent       int `json:"totalContent"`
	CompletedContent   int `json:"completedContent"`
	Percentage         int `json:"percentage"`
}

// Calculate 只统计属于这些章节的 ID，集合中多余的 ID 会被忽略
func Calculate(chapters []model.Chapter, done Completion) Summary {
	var s Summary
	for _, ch := range chapters {
		s.TotalVideos += len(ch.Videos)
		s.CompletedVideos += lo.CountBy(ch.Videos, func(v model.Video) bool {
			return done.VideoDone(v.ID)
		})

		regular := regularDocuments(ch)
		s.TotalDocuments += len(regular)
		s.CompletedDocuments += lo.CountBy(regular, func(d model.Document) bool {
			return done.DocumentDone(d.ID)
		})

		s.TotalAgents += len(ch.Agents)
	}

	s.TotalContent = s.TotalVideos + s.TotalDocuments
	s.CompletedContent = s.CompletedVideos + s.CompletedDocuments
	s.Percentage = Percentage(s.CompletedContent, s.TotalContent)
	return s
}

// Percentage 四舍五入到整数，total 为 0 时返回 0
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

func regularDocuments(ch model.Chapter) []model.Document {
	return lo.Filter(ch.Documents, func(d model.Document, _ int) bool {
		return !d.IsSpecial
	})
}
