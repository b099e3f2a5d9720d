package progress

import (
	"cmp"
	"fmt"
	"slices"

	"learnhub_backend/internal/model"
)

// 章节内容的展示顺序：智能体、文档、视频，同类按原始顺序
var kindPriority = map[model.ContentKind]int{
	model.KindAgent:    0,
	model.KindDocument: 1,
	model.KindVideo:    2,
}

// ContentItem 章节内容列表中的一项，Video/Document/Agent 只有一个非空
type ContentItem struct {
	Kind         model.ContentKind `json:"type"`
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Index        int               `json:"index"`
	SortKey      string            `json:"sortOrder"`
	ChapterIndex int               `json:"chapterIndex"`
	IsCompleted  bool              `json:"isCompleted"`

	Video    *model.Video    `json:"video,omitempty"`
	Document *model.Document `json:"document,omitempty"`
	Agent    *model.Agent    `json:"agent,omitempty"`
}

func sortKey(kind model.ContentKind, index int) string {
	return fmt.Sprintf("%s-%d", kind, index)
}

// ContentItems 把章节的视频、文档、智能体合并为一个有序列表
func ContentItems(chapterIndex int, ch model.Chapter) []ContentItem {
	items := make([]ContentItem, 0, len(ch.Videos)+len(ch.Documents)+len(ch.Agents))

	for i := range ch.Videos {
		v := &ch.Videos[i]
		items = append(items, ContentItem{
			Kind:         model.KindVideo,
			ID:           v.ID,
			Title:        v.Title,
			Description:  v.Description,
			Index:        i,
			SortKey:      sortKey(model.KindVideo, i),
			ChapterIndex: chapterIndex,
			Video:        v,
		})
	}

	for i := range ch.Documents {
		d := &ch.Documents[i]
		items = append(items, ContentItem{
			Kind:         model.KindDocument,
			ID:           d.ID,
			Title:        d.Title,
			Description:  d.Description,
			Index:        i,
			SortKey:      sortKey(model.KindDocument, i),
			ChapterIndex: chapterIndex,
			Document:     d,
		})
	}

	for i := range ch.Agents {
		a := &ch.Agents[i]
		items = append(items, ContentItem{
			Kind:         model.KindAgent,
			ID:           a.ID,
			Title:        a.Title,
			Description:  a.Description,
			Index:        i,
			SortKey:      sortKey(model.KindAgent, i),
			ChapterIndex: chapterIndex,
			Agent:        a,
		})
	}

	slices.SortStableFunc(items, func(a, b ContentItem) int {
		if c := cmp.Compare(kindPriority[a.Kind], kindPriority[b.Kind]); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return items
}

// MarkCompleted 根据完成集合填充 IsCompleted
func MarkCompleted(items []ContentItem, done Completion) []ContentItem {
	for i := range items {
		switch items[i].Kind {
		case model.KindVideo:
			items[i].IsCompleted = done.VideoDone(items[i].ID)
		case model.KindDocument:
			items[i].IsCompleted = done.DocumentDone(items[i].ID)
		}
	}
	return items
}
