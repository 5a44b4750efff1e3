package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lingua-tutor/internal/config"
	"lingua-tutor/internal/premium"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultBaseURL    = "https://api.yookassa.ru/v3"
	testPaymentPrefix = "test_payment_"
)

// YukassaClient представляет клиент для работы с ЮKassa API
type YukassaClient struct {
	shopID     string
	secretKey  string
	baseURL    string
	returnURL  string
	testMode   bool
	httpClient *http.Client
	logger     *zap.Logger
}

// PaymentRequest представляет запрос на создание платежа
type PaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Amount представляет сумму платежа
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Confirmation представляет способ подтверждения платежа
type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// PaymentResponse представляет ответ от ЮKassa
type PaymentResponse struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	CreatedAt    string            `json:"created_at"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewYukassaClient создает новый клиент ЮKassa
func NewYukassaClient(cfg config.YooKassaConfig, logger *zap.Logger) *YukassaClient {
	return &YukassaClient{
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
		baseURL:   defaultBaseURL,
		returnURL: cfg.ReturnURL,
		testMode:  cfg.TestMode,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// CreatePayment создает новый платеж в ЮKassa. Каждый вызов получает свой ключ идемпотентности.
func (c *YukassaClient) CreatePayment(ctx context.Context, params premium.PaymentParams) (string, string, error) {
	if c.testMode {
		testPaymentID := testPaymentPrefix + uuid.NewString()
		testURL := fmt.Sprintf("https://yoomoney.ru/checkout/payments/v2/contract?orderId=%s", testPaymentID)
		c.logger.Info("создан тестовый платеж",
			zap.String("payment_id", testPaymentID),
			zap.Float64("amount", params.Amount),
			zap.Int64("user_id", params.UserID))
		return testPaymentID, testURL, nil
	}

	paymentReq := PaymentRequest{
		Amount: Amount{
			Value:    fmt.Sprintf("%.2f", params.Amount),
			Currency: params.Currency,
		},
		Confirmation: Confirmation{
			Type:      "redirect",
			ReturnURL: c.returnURL,
		},
		Capture:     true,
		Description: params.Description,
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(params.UserID, 10),
			"plan_id": strconv.Itoa(params.PlanID),
		},
	}

	reqBody, err := json.Marshal(paymentReq)
	if err != nil {
		return "", "", fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(reqBody))
	if err != nil {
		return "", "", fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(c.shopID, c.secretKey)

	var paymentResp PaymentResponse
	if err := c.do(req, &paymentResp); err != nil {
		return "", "", err
	}

	c.logger.Info("платеж создан в ЮKassa",
		zap.String("payment_id", paymentResp.ID),
		zap.String("amount", paymentResp.Amount.Value),
		zap.String("currency", paymentResp.Amount.Currency))

	return paymentResp.ID, paymentResp.Confirmation.ConfirmationURL, nil
}

// CheckPaymentStatus проверяет статус платежа
func (c *YukassaClient) CheckPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if c.testMode && strings.HasPrefix(paymentID, testPaymentPrefix) {
		return premium.YukassaStatusSucceeded, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return "", fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)

	var paymentResp PaymentResponse
	if err := c.do(req, &paymentResp); err != nil {
		return "", err
	}

	c.logger.Info("статус платежа получен",
		zap.String("payment_id", paymentID),
		zap.String("status", paymentResp.Status))

	return paymentResp.Status, nil
}

func (c *YukassaClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("неожиданный статус ответа ЮKassa %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка парсинга ответа: %w", err)
	}
	return nil
}
