package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"onebox/backend/internal/domain"
	"onebox/backend/internal/storage"
)

// EmailHandler 邮件查询接口。
//
// 查询面只是索引内容的只读映射：索引失败的邮件在这里不可见，
// 直到之后某次重新抓取成功入索引为止。
type EmailHandler struct {
	store storage.Store
	log   *zap.Logger
}

// NewEmailHandler 创建邮件查询处理器。
func NewEmailHandler(store storage.Store, log *zap.Logger) *EmailHandler {
	return &EmailHandler{store: store, log: log}
}

// List 处理 GET /emails?account=&folder=
//
// 返回匹配过滤条件的邮件，按日期倒序，单页上限 100。
func (h *EmailHandler) List(c *gin.Context) {
	query := domain.SearchQuery{
		Account: c.Query("account"),
		Folder:  c.Query("folder"),
	}

	messages, err := h.store.Search(c.Request.Context(), query)
	if err != nil {
		h.log.Error("failed to fetch emails", zap.Error(err))
		InternalError(c, "failed to fetch emails")
		return
	}

	Success(c, messages)
}

// Search 处理 GET /emails/search?q=&account=&folder=
//
// 与 List 同构，额外带全文关键词。
func (h *EmailHandler) Search(c *gin.Context) {
	query := domain.SearchQuery{
		Query:   c.Query("q"),
		Account: c.Query("account"),
		Folder:  c.Query("folder"),
	}

	messages, err := h.store.Search(c.Request.Context(), query)
	if err != nil {
		h.log.Error("failed to search emails", zap.Error(err))
		InternalError(c, "failed to search emails")
		return
	}

	Success(c, messages)
}
