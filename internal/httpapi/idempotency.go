package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour

	maxRequestBodyBytes = 1 << 20
)

// orderHandler — бизнес-обработчик, возвращающий готовый ответ в байтах.
// Такая форма позволяет слою идемпотентности сохранить ответ и реплеить
// его на повтор того же ключа без повторного выполнения.
type orderHandler func(r *http.Request, body []byte) (int, []byte)

// withIdempotency оборачивает обработчик поддержкой заголовка Idempotency-Key.
// Без заголовка (или без репозитория) запрос обрабатывается напрямую.
// Повтор с тем же ключом и телом возвращает сохранённый ответ; тот же ключ
// с другим телом — конфликт.
func (a *API) withIdempotency(handler orderHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
		if a.idem == nil || key == "" {
			status, resp := handler(r, body)
			writeRaw(w, status, resp)
			return
		}

		reqHash := buildRequestHash(r.Method, r.URL.Path, body)
		record, err := a.idem.CreateProcessing(key, reqHash, time.Now().UTC().Add(idempotencyTTL))
		if err != nil {
			a.replayIdempotency(w, key, record, err)
			return
		}

		status, resp := handler(r, body)
		if status >= http.StatusOK && status < http.StatusBadRequest {
			if markErr := a.idem.MarkDone(key, resp, status); markErr != nil {
				a.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
			}
		} else {
			if markErr := a.idem.MarkFailed(key, resp, status); markErr != nil {
				a.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
			}
		}

		writeRaw(w, status, resp)
	}
}

func (a *API) replayIdempotency(w http.ResponseWriter, key string, record domain.IdempotencyRecord, createErr error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		writeError(w, http.StatusConflict, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if record.HTTPStatus == 0 || len(record.ResponseBody) == 0 {
				writeError(w, http.StatusInternalServerError, "idempotency cache is empty")
				return
			}
			writeRaw(w, record.HTTPStatus, record.ResponseBody)
		case domain.IdempotencyStatusProcessing:
			writeError(w, http.StatusConflict, "request with the same idempotency key is already processing")
		default:
			writeError(w, http.StatusInternalServerError, "unknown idempotency record status")
		}
	default:
		a.logger.WithError(createErr).WithField("idempotency_key", key).Warn("failed to create idempotency record")
		writeError(w, http.StatusInternalServerError, "failed to initialize idempotency request")
	}
}

func buildRequestHash(method, path string, body []byte) string {
	payload := make([]byte, 0, len(method)+len(path)+len(body)+2)
	payload = append(payload, method...)
	payload = append(payload, ':')
	payload = append(payload, path...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
