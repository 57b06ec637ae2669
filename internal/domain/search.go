package domain

// MaxSearchResults 查询结果的单页上限。
const MaxSearchResults = 100

// SearchQuery 表示对邮件索引的一次查询。
//
// Query 为空时仅按精确条件过滤；Account/Folder 为空或 "All" 时不过滤。
// 结果始终按日期倒序，至多 MaxSearchResults 条。
type SearchQuery struct {
	Query   string // 全文关键词（匹配主题、正文、发件人、标签、账户）
	Account string // 账户精确过滤
	Folder  string // 文件夹精确过滤
}

// FilterAll 表示"不过滤"的特殊取值，与前端下拉框的 All 选项对应。
const FilterAll = "All"

// AccountFilter 返回生效的账户过滤值，空串表示不过滤。
func (q SearchQuery) AccountFilter() string {
	if q.Account == FilterAll {
		return ""
	}
	return q.Account
}

// FolderFilter 返回生效的文件夹过滤值，空串表示不过滤。
func (q SearchQuery) FolderFilter() string {
	if q.Folder == FilterAll {
		return ""
	}
	return q.Folder
}
