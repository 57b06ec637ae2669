// Package elastic 提供邮件索引的 Elasticsearch 实现。
//
// 文档 ID 即 MessageID，索引请求天然是幂等覆盖写；
// 查询用 bool 查询组合 multi_match 全文匹配与 term 精确过滤，
// 结果按日期倒序，单页上限 100。
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
)

const (
	// clientProbeTimeout 启动期连通性探测超时。
	clientProbeTimeout = 5 * time.Second
	// dateFormat 文档日期的序列化格式，ES 按 date 类型识别。
	dateFormat = time.RFC3339
)

// Store Elasticsearch 邮件索引。
type Store struct {
	es    *elasticsearch.Client
	index string
	log   *zap.Logger
}

// NewStore 创建 Elasticsearch 索引存储并验证连通性。
func NewStore(cfg config.ElasticConfig, log *zap.Logger) (*Store, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	store := &Store{
		es:    es,
		index: cfg.Index,
		log:   log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), clientProbeTimeout)
	defer cancel()
	if err := store.Healthy(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch unreachable: %w", err)
	}

	log.Info("connected to elasticsearch",
		zap.Strings("addresses", cfg.Addresses),
		zap.String("index", cfg.Index),
	)

	return store, nil
}

// document 索引文档结构，与查询接口返回的 Message 字段一致。
type document struct {
	MessageID string `json:"messageId"`
	Subject   string `json:"subject"`
	From      string `json:"from"`
	To        string `json:"to"`
	Date      string `json:"date"`
	Text      string `json:"text"`
	HTML      string `json:"html"`
	Account   string `json:"account"`
	Folder    string `json:"folder"`
	Label     string `json:"label"`
}

// toMessage 将索引文档还原为领域模型。
func (d document) toMessage() domain.Message {
	date, err := time.Parse(dateFormat, d.Date)
	if err != nil {
		date = time.Time{}
	}
	label, _ := domain.ParseLabel(d.Label)
	return domain.Message{
		MessageID: d.MessageID,
		Subject:   d.Subject,
		From:      d.From,
		To:        d.To,
		Date:      date,
		Text:      d.Text,
		HTML:      d.HTML,
		Account:   d.Account,
		Folder:    d.Folder,
		Label:     label,
	}
}

// Upsert 以 MessageID 为文档 ID 写入，重复写入覆盖旧文档。
func (s *Store) Upsert(ctx context.Context, msg *domain.Message) error {
	body, err := json.Marshal(document{
		MessageID: msg.MessageID,
		Subject:   msg.Subject,
		From:      msg.From,
		To:        msg.To,
		Date:      msg.Date.UTC().Format(dateFormat),
		Text:      msg.Text,
		HTML:      msg.HTML,
		Account:   msg.Account,
		Folder:    msg.Folder,
		Label:     msg.Label.String(),
	})
	if err != nil {
		return domain.IndexError(msg.MessageID, err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: msg.MessageID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, s.es)
	if err != nil {
		return domain.IndexError(msg.MessageID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return domain.IndexError(msg.MessageID, fmt.Errorf("index response %s: %s", res.Status(), detail))
	}

	return nil
}

// Search 执行 bool 查询并按日期倒序返回。
func (s *Store) Search(ctx context.Context, query domain.SearchQuery) ([]domain.Message, error) {
	body, err := json.Marshal(buildSearchBody(query))
	if err != nil {
		return nil, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return nil, fmt.Errorf("search response %s: %s", res.Status(), detail)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	messages := make([]domain.Message, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		messages = append(messages, hit.Source.toMessage())
	}

	return messages, nil
}

// Healthy 探测集群可达性。
func (s *Store) Healthy(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping returned %s", res.Status())
	}
	return nil
}

// buildSearchBody 构建查询体。
//
// 全文关键词走 multi_match（主题、正文、发件人、标签、账户），
// 账户/文件夹走 keyword term 过滤。
func buildSearchBody(query domain.SearchQuery) map[string]interface{} {
	must := make([]interface{}, 0, 1)
	if query.Query != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query.Query,
				"fields": []string{"subject", "text", "from", "label", "account"},
			},
		})
	}

	filter := make([]interface{}, 0, 2)
	if account := query.AccountFilter(); account != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"account.keyword": account},
		})
	}
	if folder := query.FolderFilter(); folder != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"folder.keyword": folder},
		})
	}

	return map[string]interface{}{
		"size": domain.MaxSearchResults,
		"sort": []interface{}{
			map[string]interface{}{"date": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
	}
}
