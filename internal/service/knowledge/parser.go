// Package knowledge 文档解析与分块
// 直接使用 eino-ext 的 parser / splitter 组件
package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/html"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// SupportedExtensions 允许上传的文件扩展名
var SupportedExtensions = []string{".pdf", ".docx", ".txt", ".md", ".html", ".htm"}

// AllowedTypesLabel 错误提示中展示的类型列表
const AllowedTypesLabel = "PDF, DOCX, TXT, MD, HTML"

// Extractor 从原始字节中提取纯文本
type Extractor interface {
	Supported(ext string) bool
	Extract(ctx context.Context, ext string, content []byte) (string, error)
}

// DocumentParser 按扩展名分发到对应的 eino 解析器
type DocumentParser struct {
	parsers map[string]einoparser.Parser
}

// NewDocumentParser 创建解析器集合
func NewDocumentParser(ctx context.Context) (*DocumentParser, error) {
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf parser: %w", err)
	}

	docxParser, err := docx.NewDocxParser(ctx, &docx.Config{
		ToSections:      false,
		IncludeComments: false,
		IncludeHeaders:  false,
		IncludeFooters:  false,
		IncludeTables:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create docx parser: %w", err)
	}

	bodySelector := "body"
	htmlParser, err := html.NewParser(ctx, &html.Config{Selector: &bodySelector})
	if err != nil {
		return nil, fmt.Errorf("failed to create html parser: %w", err)
	}

	text := &textParser{}

	return &DocumentParser{
		parsers: map[string]einoparser.Parser{
			".pdf":  pdfParser,
			".docx": docxParser,
			".html": htmlParser,
			".htm":  htmlParser,
			".txt":  text,
			".md":   text,
		},
	}, nil
}

// Supported 扩展名是否可解析
func (p *DocumentParser) Supported(ext string) bool {
	_, ok := p.parsers[strings.ToLower(ext)]
	return ok
}

// Extract 提取文本，多页/多段内容以空行拼接
func (p *DocumentParser) Extract(ctx context.Context, ext string, content []byte) (text string, err error) {
	parser, ok := p.parsers[strings.ToLower(ext)]
	if !ok {
		return "", types.Errorf(types.ErrParse, "unsupported file type '%s'", ext)
	}

	// 第三方解析器在损坏文件上可能 panic
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = types.Errorf(types.ErrParse, "%v", r)
		}
	}()

	docs, err := parser.Parse(ctx, bytes.NewReader(content))
	if err != nil {
		return "", types.Errorf(types.ErrParse, "%v", err)
	}

	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		if c := strings.TrimSpace(d.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// textParser 纯文本解析器，非法 UTF-8 字节直接丢弃
type textParser struct{}

func (p *textParser) Parse(_ context.Context, reader io.Reader, _ ...einoparser.Option) ([]*schema.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	text := strings.ToValidUTF8(string(content), "")
	if text == "" {
		return []*schema.Document{}, nil
	}

	return []*schema.Document{{
		Content:  text,
		MetaData: make(map[string]any),
	}}, nil
}
