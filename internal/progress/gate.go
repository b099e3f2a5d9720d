package progress

import (
	"learnhub_backend/internal/model"

	"github.com/samber/lo"
)

// IsChapterComplete 章节内所有视频与非特殊文档都已完成；没有这类内容时视为完成
func IsChapterComplete(ch model.Chapter, done Completion) bool {
	videosDone := lo.EveryBy(ch.Videos, func(v model.Video) bool {
		return done.VideoDone(v.ID)
	})
	documentsDone := lo.EveryBy(regularDocuments(ch), func(d model.Document) bool {
		return done.DocumentDone(d.ID)
	})
	return videosDone && documentsDone
}

type SpecialDocument struct {
	model.Document
	ChapterTitle string `json:"chapterTitle"`
	ChapterIndex int    `json:"chapterIndex"`
	IsUnlocked   bool   `json:"isUnlocked"`
}

type DocumentStatus struct {
	model.Document
	ChapterTitle string `json:"chapterTitle"`
	ChapterIndex int    `json:"chapterIndex"`
	IsCompleted  bool   `json:"isCompleted"`
}

// SpecialDocuments ChapterIndex 从 1 开始
func SpecialDocuments(chapters []model.Chapter, done Completion) []SpecialDocument {
	result := make([]SpecialDocument, 0)
	for i, ch := range chapters {
		unlocked := IsChapterComplete(ch, done)
		for _, d := range ch.Documents {
			if !d.IsSpecial {
				continue
			}
			result = append(result, SpecialDocument{
				Document:     d,
				ChapterTitle: ch.Title,
				ChapterIndex: i + 1,
				IsUnlocked:   unlocked,
			})
		}
	}
	return result
}

func AllDocuments(chapters []model.Chapter, done Completion) []DocumentStatus {
	result := make([]DocumentStatus, 0)
	for i, ch := range chapters {
		for _, d := range ch.Documents {
			result = append(result, DocumentStatus{
				Document:     d,
				ChapterTitle: ch.Title,
				ChapterIndex: i + 1,
				IsCompleted:  done.DocumentDone(d.ID),
			})
		}
	}
	return result
}

// CourseItemIDs 课程中所有可跟踪的视频与文档 ID（含特殊文档）
func CourseItemIDs(chapters []model.Chapter) (videoIDs, documentIDs map[string]struct{}) {
	videoIDs = make(map[string]struct{})
	documentIDs = make(map[string]struct{})
	for _, ch := range chapters {
		for _, v := range ch.Videos {
			videoIDs[v.ID] = struct{}{}
		}
		for _, d := range ch.Documents {
			documentIDs[d.ID] = struct{}{}
		}
	}
	return videoIDs, documentIDs
}
