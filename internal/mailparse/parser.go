// Package mailparse 将 IMAP 抓取到的原始邮件字节流解析为规范的邮件记录。
//
// 解析是纯函数：同一字节流 + 同一账户总是产出同一 MessageID，
// 这是索引层幂等覆盖写的前提。
package mailparse

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	// 注册字符集解码器（windows-1252、iso-8859-*、gbk 等）
	_ "github.com/emersion/go-message/charset"

	"onebox/backend/internal/domain"
)

// Parse 解析一封原始邮件。
//
// 返回的 Message 不含 Label（分类由管道的下一阶段赋值）。
// 字节流不是合法的邮件结构时返回 domain.ErrParse 类错误；
// 单封解析失败不应中断同批次的其他邮件，这由调用方保证。
func Parse(raw []byte, account, folder string) (*domain.Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.ParseError(err)
	}

	header := mr.Header

	subject, err := header.Subject()
	if err != nil || subject == "" {
		subject = "(No Subject)"
	}

	from := addressText(header, "From")
	to := addressText(header, "To")

	date, err := header.Date()
	if err != nil || date.IsZero() {
		date = time.Now().UTC()
	}

	msgIDHeader, _ := header.MessageID()

	var textBody, htmlBody strings.Builder
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 某个部分损坏时保留已解出的内容
			break
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		body, _ := io.ReadAll(p.Body)
		contentType, _, _ := h.ContentType()
		switch contentType {
		case "text/plain":
			textBody.Write(body)
		case "text/html":
			htmlBody.Write(body)
		}
	}

	return &domain.Message{
		MessageID: domain.DeriveMessageID(account, msgIDHeader, from, subject, date),
		Subject:   subject,
		From:      from,
		To:        to,
		Date:      date,
		Text:      textBody.String(),
		HTML:      htmlBody.String(),
		Account:   account,
		Folder:    folder,
	}, nil
}

// addressText 提取地址头的可读形式，解析失败时退回原始头内容。
func addressText(h mail.Header, key string) string {
	list, err := h.AddressList(key)
	if err != nil || len(list) == 0 {
		return strings.TrimSpace(h.Get(key))
	}

	parts := make([]string, 0, len(list))
	for _, addr := range list {
		parts = append(parts, addr.String())
	}
	return strings.Join(parts, ", ")
}
