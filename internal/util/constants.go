package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 对象存储的三个逻辑桶
const (
	BucketCourseImages    = "course-images"
	BucketCourseMaterials = "course-materials"
	BucketCourseVideos    = "course-videos"
)

var Buckets = []string{BucketCourseImages, BucketCourseMaterials, BucketCourseVideos}

func IsKnownBucket(name string) bool {
	for _, b := range Buckets {
		if b == name {
			return true
		}
	}
	return false
}

// 桶允许的 MIME 前缀
var AllowedMimePrefixes = []string{"image/", "video/", "application/", "text/"}

const (
	MimeVideo       = "video/"
	MimeOctetStream = "application/octet-stream"
)

var AllowedVideoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".wmv", ".flv", ".webm"}

// 未配置时前端模板里的占位值
const TavusAPIKeyPlaceholder = "your-tavus-api-key"
