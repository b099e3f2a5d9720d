package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"
	"mime/multipart"

	"github.com/gin-gonic/gin"
)

// currentUserID 未登录时已写入 401 响应
func currentUserID(ctx *gin.Context) (uint, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return 0, false
	}
	return claims.UserID, true
}

// openFormFile 打开表单文件，调用方负责 Close
func openFormFile(fh *multipart.FileHeader) (service.FileInput, multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return service.FileInput{}, nil, err
	}
	return service.FileInput{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
	}, f, nil
}
