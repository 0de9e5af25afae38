package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"gm-dashboard/internal/domain"
	"gm-dashboard/internal/infra/metrics"
)

const (
	tokenURL        = "https://oauth2.googleapis.com/token"
	defaultSheet    = "Sheet1"
	defaultColumns  = "A:Z"
	requestTimeout  = 30 * time.Second
	titleOnlyFields = "sheets(properties(title))"
)

// Credentials описывает сервисный аккаунт Google.
type Credentials struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

// Client реализует domain.SpreadsheetSource поверх Google Sheets API.
type Client struct {
	svc    *sheetsapi.Service
	logger zerolog.Logger
}

var _ domain.SpreadsheetSource = (*Client)(nil)

// New создаёт клиент с доступом только на чтение.
func New(ctx context.Context, creds Credentials, logger zerolog.Logger, opts ...option.ClientOption) (*Client, error) {
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, fmt.Errorf("google sheets: %w", domain.ErrSourceNotConfigured)
	}
	conf := &jwt.Config{
		Email:      creds.ClientEmail,
		PrivateKey: []byte(creds.PrivateKey),
		Scopes:     []string{sheetsapi.SpreadsheetsReadonlyScope},
		TokenURL:   tokenURL,
	}
	httpClient := conf.Client(ctx)
	httpClient.Timeout = requestTimeout
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	if creds.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(creds.ProjectID))
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google sheets: создание клиента: %w", err)
	}
	return NewWithService(svc, logger), nil
}

// NewWithService оборачивает готовый сервис Sheets.
func NewWithService(svc *sheetsapi.Service, logger zerolog.Logger) *Client {
	return &Client{svc: svc, logger: logger.With().Str("component", "sheets").Logger()}
}

// Values возвращает ячейки диапазона строками. Пустой диапазон означает
// колонки A:Z первого листа.
func (c *Client) Values(ctx context.Context, sheetID, sheetRange string) ([][]string, error) {
	rng, err := c.resolveRange(ctx, sheetID, sheetRange)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.svc.Spreadsheets.Values.Get(sheetID, rng).Context(ctx).Do()
	metrics.ObserveNetworkRequest("sheets", "values.get", sheetID, start, err)
	if err != nil {
		return nil, fmt.Errorf("values.get %s: %w", rng, err)
	}
	c.logger.Debug().Str("range", rng).Int("rows", len(resp.Values)).Msg("таблица прочитана")
	return toStrings(resp.Values), nil
}

func (c *Client) resolveRange(ctx context.Context, sheetID, sheetRange string) (string, error) {
	if rng := strings.TrimSpace(sheetRange); rng != "" {
		return rng, nil
	}
	start := time.Now()
	spreadsheet, err := c.svc.Spreadsheets.Get(sheetID).Fields(titleOnlyFields).Context(ctx).Do()
	metrics.ObserveNetworkRequest("sheets", "spreadsheets.get", sheetID, start, err)
	if err != nil {
		return "", fmt.Errorf("spreadsheets.get: %w", err)
	}
	title := defaultSheet
	if len(spreadsheet.Sheets) > 0 && spreadsheet.Sheets[0].Properties != nil && spreadsheet.Sheets[0].Properties.Title != "" {
		title = spreadsheet.Sheets[0].Properties.Title
	}
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), defaultColumns), nil
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			switch v := cell.(type) {
			case nil:
				cells = append(cells, "")
			case string:
				cells = append(cells, v)
			default:
				cells = append(cells, fmt.Sprint(v))
			}
		}
		out = append(out, cells)
	}
	return out
}
