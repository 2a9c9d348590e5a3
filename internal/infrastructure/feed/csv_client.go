package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
	"github.com/sanosuguru/go-seat-lease/internal/pkg/logger"
)

var (
	ErrMissingColumns = errors.New("CSVに Sector/Row/Number 列がありません")
)

type field int

const (
	fieldSector field = iota
	fieldRow
	fieldNumber
	fieldPrice
	fieldState
)

// スプレッドシート公開CSVの見出し（旧フォーマットのスペイン語見出しを含む）
var headerFields = map[string]field{
	"sector":  fieldSector,
	"row":     fieldRow,
	"fila":    fieldRow,
	"number":  fieldNumber,
	"seat":    fieldNumber,
	"asiento": fieldNumber,
	"price":   fieldPrice,
	"precio":  fieldPrice,
	"state":   fieldState,
	"estado":  fieldState,
}

// CSVClient は公開CSVから座席在庫を取得するクライアント
type CSVClient struct {
	httpClient *resty.Client
	url        string
}

// NewCSVClient は CSVClient を作成する
func NewCSVClient(url string, timeout time.Duration) *CSVClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "text/csv")

	return &CSVClient{httpClient: client, url: url}
}

// Fetch はCSVを取得して在庫データに変換する
func (c *CSVClient) Fetch(ctx context.Context) ([]seat.InventoryItem, error) {
	log := logger.ForOperation("fetch_inventory_feed", zap.String("url", c.url))

	resp, err := c.httpClient.R().SetContext(ctx).Get(c.url)
	if err != nil {
		log.Error("在庫フィードの取得に失敗", zap.Error(err))
		return nil, fmt.Errorf("在庫フィードの取得に失敗: %w", err)
	}
	if resp.IsError() {
		log.Error("在庫フィードがエラーを返しました", zap.Int("status_code", resp.StatusCode()))
		return nil, fmt.Errorf("在庫フィードがエラーを返しました: %s", resp.Status())
	}

	items, err := ParseCSV(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, err
	}
	log.Info("在庫フィードを取得しました", zap.Int("count", len(items)))
	return items, nil
}

// ParseCSV はヘッダー付きCSVを在庫データに変換する。
// 値の検証は行わず、数値に変換できない列は0になる。
func ParseCSV(r io.Reader) ([]seat.InventoryItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingColumns
	}
	if err != nil {
		return nil, fmt.Errorf("CSVヘッダーの読み込みに失敗: %w", err)
	}

	index := map[field]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if f, ok := headerFields[h]; ok {
			if _, dup := index[f]; !dup {
				index[f] = i
			}
		}
	}
	for _, required := range []field{fieldSector, fieldRow, fieldNumber} {
		if _, ok := index[required]; !ok {
			return nil, ErrMissingColumns
		}
	}

	var items []seat.InventoryItem
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV %d行目の読み込みに失敗: %w", line, err)
		}
		get := func(f field) string {
			i, ok := index[f]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if get(fieldSector) == "" && get(fieldRow) == "" && get(fieldNumber) == "" {
			continue
		}
		items = append(items, seat.InventoryItem{
			Sector: get(fieldSector),
			Row:    atoi(get(fieldRow)),
			Number: atoi(get(fieldNumber)),
			Price:  parsePrice(get(fieldPrice)),
			State:  get(fieldState),
		})
	}
	return items, nil
}

func atoi(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func parsePrice(v string) float64 {
	v = strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
