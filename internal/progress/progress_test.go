package progress

import (
	"fmt"
	"testing"

	"learnhub_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func video(id string) model.Video {
	v := model.Video{Title: "video " + id}
	v.ID = id
	return v
}

func document(id string, special bool) model.Document {
	d := model.Document{Title: "doc " + id, IsSpecial: special}
	d.ID = id
	return d
}

func agent(id string) model.Agent {
	a := model.Agent{Title: "agent " + id, ReplicaID: "r-" + id}
	a.ID = id
	return a
}

func chapter(id string, videos []model.Video, docs []model.Document, agents []model.Agent) model.Chapter {
	ch := model.Chapter{Title: "chapter " + id, Videos: videos, Documents: docs, Agents: agents}
	ch.ID = id
	return ch
}

func TestCalculateEmptyCourse(t *testing.T) {
	s := Calculate(nil, NewCompletion(nil, nil))
	assert.Equal(t, 0, s.TotalContent)
	assert.Equal(t, 0, s.Percentage)

	s = Calculate([]model.Chapter{chapter("c1", nil, nil, []model.Agent{agent("a1")})}, NewCompletion([]string{"x"}, nil))
	assert.Equal(t, 0, s.TotalContent)
	assert.Equal(t, 0, s.Percentage)
	assert.Equal(t, 1, s.TotalAgents)
}

func TestCalculateBoundsAndRounding(t *testing.T) {
	for v := 0; v <= 4; v++ {
		for d := 0; d <= 4; d++ {
			if v+d == 0 {
				continue
			}
			var videos []model.Video
			var videoIDs []string
			for i := 0; i < v; i++ {
				id := fmt.Sprintf("v%d", i)
				videos = append(videos, video(id))
				videoIDs = append(videoIDs, id)
			}
			var docs []model.Document
			var docIDs []string
			for i := 0; i < d; i++ {
				id := fmt.Sprintf("d%d", i)
				docs = append(docs, document(id, false))
				docIDs = append(docIDs, id)
			}
			chapters := []model.Chapter{chapter("c", videos, docs, nil)}
			total := v + d

			none := Calculate(chapters, NewCompletion(nil, nil))
			assert.Equal(t, total, none.TotalContent)
			assert.Equal(t, 0, none.Percentage)

			all := Calculate(chapters, NewCompletion(videoIDs, docIDs))
			assert.Equal(t, total, all.CompletedContent)
			assert.Equal(t, 100, all.Percentage)

			if v > 0 {
				partial := Calculate(chapters, NewCompletion(videoIDs[:1], nil))
				assert.Equal(t, 1, partial.CompletedContent)
				assert.Equal(t, Percentage(1, total), partial.Percentage)
			}
		}
	}
}

func TestPercentageRounds(t *testing.T) {
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 50, Percentage(1, 2))
	assert.Equal(t, 13, Percentage(1, 8))
	assert.Equal(t, 0, Percentage(3, 0))
}

func TestCalculateExcludesSpecialDocuments(t *testing.T) {
	chapters := []model.Chapter{
		chapter("c1", []model.Video{video("v1")}, []model.Document{document("d1", false), document("s1", true)}, nil),
	}

	s := Calculate(chapters, NewCompletion([]string{"v1"}, []string{"s1"}))
	assert.Equal(t, 2, s.TotalContent)
	assert.Equal(t, 1, s.CompletedContent)
	assert.Equal(t, 1, s.TotalDocuments)
	assert.Equal(t, 0, s.CompletedDocuments)
	assert.Equal(t, 50, s.Percentage)
}

func TestCalculateIgnoresForeignIDs(t *testing.T) {
	chapters := []model.Chapter{chapter("c1", []model.Video{video("v1")}, nil, nil)}
	s := Calculate(chapters, NewCompletion([]string{"v1", "other-course-video"}, []string{"stale-doc"}))
	assert.Equal(t, 1, s.CompletedContent)
	assert.Equal(t, 100, s.Percentage)
}

func TestIsChapterComplete(t *testing.T) {
	ch := chapter("c1",
		[]model.Video{video("v1"), video("v2")},
		[]model.Document{document("d1", false), document("s1", true)},
		nil,
	)

	assert.False(t, IsChapterComplete(ch, NewCompletion(nil, nil)))
	assert.False(t, IsChapterComplete(ch, NewCompletion([]string{"v1", "v2"}, nil)))
	assert.False(t, IsChapterComplete(ch, NewCompletion([]string{"v1"}, []string{"d1"})))
	assert.True(t, IsChapterComplete(ch, NewCompletion([]string{"v1", "v2"}, []string{"d1"})))
	assert.True(t, IsChapterComplete(ch, NewCompletion([]string{"v1", "v2", "x"}, []string{"d1", "y"})))

	empty := chapter("c2", nil, []model.Document{document("s2", true)}, []model.Agent{agent("a1")})
	assert.True(t, IsChapterComplete(empty, NewCompletion(nil, nil)))
}

func TestContentItemsOrder(t *testing.T) {
	ch := chapter("c1",
		[]model.Video{video("v1")},
		[]model.Document{document("d1", false)},
		[]model.Agent{agent("a1")},
	)

	items := ContentItems(0, ch)
	require.Len(t, items, 3)
	assert.Equal(t, model.KindAgent, items[0].Kind)
	assert.Equal(t, model.KindDocument, items[1].Kind)
	assert.Equal(t, model.KindVideo, items[2].Kind)
	assert.Equal(t, "agent-0", items[0].SortKey)
	assert.Equal(t, "video-0", items[2].SortKey)
}

func TestContentItemsKeepsInsertionOrderWithinKind(t *testing.T) {
	var videos []model.Video
	for i := 0; i < 12; i++ {
		videos = append(videos, video(fmt.Sprintf("v%02d", i)))
	}
	ch := chapter("c1", videos, []model.Document{document("d1", false), document("d2", true)}, []model.Agent{agent("a1"), agent("a2")})

	items := ContentItems(3, ch)
	require.Len(t, items, 16)

	var order []string
	for _, it := range items {
		order = append(order, it.ID)
		assert.Equal(t, 3, it.ChapterIndex)
	}
	assert.Equal(t, []string{"a1", "a2", "d1", "d2"}, order[:4])
	// 按数字顺序，而不是 "video-10" < "video-2" 的字符串顺序
	assert.Equal(t, "v02", order[6])
	assert.Equal(t, "v10", order[14])
	assert.Equal(t, "v11", order[15])
}

func TestMarkCompleted(t *testing.T) {
	ch := chapter("c1", []model.Video{video("v1")}, []model.Document{document("d1", false)}, []model.Agent{agent("a1")})
	items := MarkCompleted(ContentItems(0, ch), NewCompletion([]string{"v1"}, nil))

	completed := map[string]bool{}
	for _, it := range items {
		completed[it.ID] = it.IsCompleted
	}
	assert.Equal(t, map[string]bool{"a1": false, "d1": false, "v1": true}, completed)
}

func TestSpecialDocumentUnlockScenario(t *testing.T) {
	chapters := []model.Chapter{
		chapter("c1", []model.Video{video("v1"), video("v2")}, nil, nil),
		chapter("c2", nil, []model.Document{document("s1", true), document("d1", false)}, nil),
	}

	locked := SpecialDocuments(chapters, NewCompletion([]string{"v1", "v2"}, nil))
	require.Len(t, locked, 1)
	assert.False(t, locked[0].IsUnlocked)

	done := NewCompletion([]string{"v1", "v2"}, []string{"d1"})
	special := SpecialDocuments(chapters, done)
	require.Len(t, special, 1)
	assert.Equal(t, "s1", special[0].ID)
	assert.Equal(t, 2, special[0].ChapterIndex)
	assert.Equal(t, "chapter c2", special[0].ChapterTitle)
	assert.True(t, special[0].IsUnlocked)

	assert.True(t, IsChapterComplete(chapters[0], done))
	assert.Equal(t, 100, Calculate(chapters, done).Percentage)
}

func TestAllDocuments(t *testing.T) {
	chapters := []model.Chapter{
		chapter("c1", nil, []model.Document{document("d1", false)}, nil),
		chapter("c2", nil, []model.Document{document("s1", true), document("d2", false)}, nil),
	}
	docs := AllDocuments(chapters, NewCompletion(nil, []string{"d2"}))
	require.Len(t, docs, 3)
	assert.Equal(t, 1, docs[0].ChapterIndex)
	assert.False(t, docs[0].IsCompleted)
	assert.Equal(t, "d2", docs[2].ID)
	assert.True(t, docs[2].IsCompleted)
}

func TestCourseItemIDs(t *testing.T) {
	chapters := []model.Chapter{
		chapter("c1", []model.Video{video("v1")}, []model.Document{document("s1", true)}, []model.Agent{agent("a1")}),
	}
	videos, docs := CourseItemIDs(chapters)
	assert.Contains(t, videos, "v1")
	assert.Contains(t, docs, "s1")
	assert.NotContains(t, videos, "a1")
}
