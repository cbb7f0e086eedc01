package model

import "time"

// Document 已上传文档的元数据
type Document struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	OriginalName string    `json:"original_name" gorm:"size:512;not null"`
	StoredName   string    `json:"stored_name" gorm:"size:512;not null;uniqueIndex"`
	FileType     string    `json:"file_type" gorm:"size:16;not null"` // pdf, docx, txt, md, html
	SizeBytes    int64     `json:"size_bytes" gorm:"not null"`
	ChunkCount   int       `json:"chunk_count" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}
