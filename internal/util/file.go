package util

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// DetectMimeType 读取最多 512 字节嗅探内容类型，已读内容需要调用方自行拼回
func DetectMimeType(reader io.Reader) (string, error) {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}
	return http.DetectContentType(buffer[:n]), nil
}

// ResolveMimeType 优先使用客户端声明的类型，缺失或为通用二进制时按扩展名推断
func ResolveMimeType(declared, filename string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != MimeOctetStream {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	if declared != "" {
		return declared
	}
	return MimeOctetStream
}

// MimeAllowed 前缀匹配，如 "image/" 允许 "image/png"
func MimeAllowed(mimeType string, allowed []string) bool {
	for _, prefix := range allowed {
		if strings.HasPrefix(mimeType, prefix) || mimeType == prefix {
			return true
		}
	}
	return false
}

// FileExtension 最后一个点之后的部分，没有扩展名时返回 "bin"
func FileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "bin"
	}
	return strings.ToLower(filename[idx+1:])
}

// ObjectName 生成 <scope>/<毫秒时间戳>.<ext>
func ObjectName(scope, filename string, now time.Time) string {
	scope = strings.Trim(scope, "/")
	return fmt.Sprintf("%s/%d.%s", scope, now.UnixMilli(), FileExtension(filename))
}

func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeVideo) || mimeType == "application/x-mpegURL"
}

func IsVideoExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range AllowedVideoExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
