package domain

import "fmt"

// Account 表示一个已配置的 IMAP 邮箱账户。
//
// 账户在启动时从配置加载，进程生命周期内不可变。
// 每个账户对应一条独立的采集会话（Account Session）。
type Account struct {
	ID       string `json:"id"`       // 账户标识（通常为邮箱地址）
	Host     string `json:"host"`     // IMAP 服务器地址
	Port     int    `json:"port"`     // IMAP 端口，TLS 通常为 993
	Username string `json:"username"` // 登录用户名
	Password string `json:"password"` // 登录密码
	UseTLS   bool   `json:"use_tls"`  // 是否使用 TLS 连接
}

// Addr 返回 host:port 形式的连接地址。
func (a Account) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Validate 校验账户配置的完整性。
func (a Account) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("account id is required")
	}
	if a.Host == "" {
		return fmt.Errorf("account %s: host is required", a.ID)
	}
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("account %s: invalid port %d", a.ID, a.Port)
	}
	if a.Username == "" || a.Password == "" {
		return fmt.Errorf("account %s: username and password are required", a.ID)
	}
	return nil
}
