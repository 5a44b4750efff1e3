package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"lingua-tutor/internal/premium"
	"lingua-tutor/internal/store"
	"lingua-tutor/pkg/models"

	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// PaymentProcessor применяет статус платежа
type PaymentProcessor interface {
	ProcessPaymentCallback(ctx context.Context, paymentID, status string) (*models.Payment, bool, error)
}

// Notifier сообщает ученику об активации премиума
type Notifier interface {
	NotifyPremiumActivated(ctx context.Context, payment *models.Payment) error
}

// YooKassaWebhookHandler обрабатывает webhook'и от ЮKassa
type YooKassaWebhookHandler struct {
	processor PaymentProcessor
	notifier  Notifier
	secretKey string
	logger    *zap.Logger
}

// NewYooKassaWebhookHandler создает новый обработчик webhook'ов. notifier может быть nil.
func NewYooKassaWebhookHandler(processor PaymentProcessor, notifier Notifier, secretKey string, logger *zap.Logger) *YooKassaWebhookHandler {
	return &YooKassaWebhookHandler{
		processor: processor,
		notifier:  notifier,
		secretKey: secretKey,
		logger:    logger,
	}
}

// PaymentWebhook представляет webhook от ЮKassa
type PaymentWebhook struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"amount"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// HandleWebhook обрабатывает входящий webhook от ЮKassa
func (h *YooKassaWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.logger.Error("ошибка чтения тела запроса", zap.Error(err))
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !h.verifySignature(r.Header.Get("X-YooKassa-Signature"), body) {
		h.logger.Warn("неверная подпись webhook'а", zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var webhook PaymentWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		h.logger.Error("ошибка парсинга webhook'а", zap.Error(err))
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	h.logger.Info("получен webhook от ЮKassa",
		zap.String("event", webhook.Event),
		zap.String("payment_id", webhook.Object.ID),
		zap.String("status", webhook.Object.Status))

	var status string
	switch webhook.Event {
	case "payment.succeeded":
		status = premium.YukassaStatusSucceeded
	case "payment.canceled":
		status = premium.YukassaStatusCanceled
	default:
		h.logger.Info("неизвестное событие webhook'а", zap.String("event", webhook.Event))
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	payment, activated, err := h.processor.ProcessPaymentCallback(ctx, webhook.Object.ID, status)
	if errors.Is(err, store.ErrNotFound) {
		// платеж создан не этим сервисом, повтор уведомления ничего не изменит
		h.logger.Warn("уведомление по неизвестному платежу",
			zap.String("payment_id", webhook.Object.ID))
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		h.logger.Error("ошибка обработки платежа",
			zap.String("payment_id", webhook.Object.ID),
			zap.Error(err))
		// ЮKassa повторит уведомление
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if activated && h.notifier != nil {
		if err := h.notifier.NotifyPremiumActivated(ctx, payment); err != nil {
			h.logger.Warn("не удалось уведомить ученика об активации премиума",
				zap.Int64("user_id", payment.UserID),
				zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// verifySignature проверяет HMAC-SHA256 подпись тела. Без секрета проверка отключена.
func (h *YooKassaWebhookHandler) verifySignature(signature string, body []byte) bool {
	if h.secretKey == "" {
		return true
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
