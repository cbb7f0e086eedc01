package handler

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/ashwinyue/rag-chat/internal/service"
	"github.com/ashwinyue/rag-chat/internal/service/document"
	"github.com/gin-gonic/gin"
)

// FileHandler 文档处理器
type FileHandler struct {
	svc *service.Services
}

// NewFileHandler 创建文档处理器
func NewFileHandler(svc *service.Services) *FileHandler {
	return &FileHandler{svc: svc}
}

// ListFiles 列出文档
// @Summary      列出文档
// @Tags         文档管理
// @Produce      json
// @Success      200  {array}   model.Document
// @Router       /api/files [get]
func (h *FileHandler) ListFiles(c *gin.Context) {
	docs, err := h.svc.Documents.List(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, docs)
}

// GetStats 文档数量与总大小
// GET /api/files/stats
func (h *FileHandler) GetStats(c *gin.Context) {
	stats, err := h.svc.Documents.StorageStats(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, stats)
}

// GetFile 获取文档元数据
// GET /api/files/:id
func (h *FileHandler) GetFile(c *gin.Context) {
	doc, err := h.svc.Documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, doc)
}

// UploadFiles 批量上传文档
// @Summary      批量上传文档
// @Description  逐个解析、存储并索引，单个文件失败记录在 failed 中
// @Tags         文档管理
// @Accept       multipart/form-data
// @Produce      json
// @Param        files  formData  file  true  "文件，可多个"
// @Success      200    {object}  document.BatchResult
// @Failure      400    {object}  ErrorResponse
// @Router       /api/files [post]
func (h *FileHandler) UploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "No files uploaded.")
		return
	}

	headers := form.File["files"]
	uploads := make([]document.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := h.readUpload(fh)
		if err != nil {
			Error(c, err)
			return
		}
		uploads = append(uploads, up)
	}

	result, err := h.svc.Documents.BatchUpload(c.Request.Context(), uploads)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, result)
}

// ReplaceFile 替换文档内容，doc_id 不变
// PUT /api/files/:id
func (h *FileHandler) ReplaceFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "Missing filename.")
		return
	}

	up, err := h.readUpload(fh)
	if err != nil {
		Error(c, err)
		return
	}

	doc, err := h.svc.Documents.Replace(c.Request.Context(), c.Param("id"), up)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, doc)
}

// DeleteFile 删除文档
// DELETE /api/files/:id
func (h *FileHandler) DeleteFile(c *gin.Context) {
	if err := h.svc.Documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	Message(c, "Document deleted.")
}

// readUpload 读取上传内容，最多多读 1 字节以便识别超限文件
func (h *FileHandler) readUpload(fh *multipart.FileHeader) (document.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return document.Upload{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.svc.Config.Upload.MaxBytes()+1))
	if err != nil {
		return document.Upload{}, fmt.Errorf("failed to read upload: %w", err)
	}

	return document.Upload{Filename: fh.Filename, Content: content}, nil
}
