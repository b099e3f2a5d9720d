// Package progress 计算课程进度、聚合章节内容并判断特殊文档的解锁状态。
// 包内全部是纯函数，不做任何 I/O。
package progress

import "github.com/samber/lo"

// Completion 某用户在一门课程里已完成的视频与文档 ID 集合
type Completion struct {
	Videos    map[string]struct{}
	Documents map[string]struct{}
}

func NewCompletion(videoIDs, documentIDs []string) Completion {
	return Completion{
		Videos:    toSet(videoIDs),
		Documents: toSet(documentIDs),
	}
}

func toSet(ids []string) map[string]struct{} {
	return lo.SliceToMap(ids, func(id string) (string, struct{}) {
		return id, struct{}{}
	})
}

func (c Completion) VideoDone(id string) bool {
	_, ok := c.Videos[id]
	return ok
}

func (c Completion) DocumentDone(id string) bool {
	_, ok := c.Documents[id]
	return ok
}
