// Пакет httpapi реализует JSON API сервиса: CRUD каталога, создание
// заказов и служебные ручки. Слой тонкий: разбор запроса, вызов сервиса,
// маппинг доменных ошибок на HTTP-статусы.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
	"github.com/vladislavdragonenkov/vinyl/internal/health"
	"github.com/vladislavdragonenkov/vinyl/internal/service/catalog"
	"github.com/vladislavdragonenkov/vinyl/internal/service/order"
)

const defaultListOrdersLimit = 100

// API агрегирует зависимости HTTP-слоя.
type API struct {
	catalog catalog.Service
	orders  order.Coordinator
	idem    domain.IdempotencyRepository
	health  *health.Handler
	logger  *log.Entry
}

// NewAPI конструирует API. Репозиторий идемпотентности и health-handler
// опциональны: без них соответствующие механизмы просто не включаются.
func NewAPI(
	catalogSvc catalog.Service,
	orders order.Coordinator,
	idem domain.IdempotencyRepository,
	healthHandler *health.Handler,
	logger *log.Entry,
) *API {
	if logger == nil {
		logger = log.New().WithField("component", "http-api")
	}
	return &API{
		catalog: catalogSvc,
		orders:  orders,
		idem:    idem,
		health:  healthHandler,
		logger:  logger,
	}
}

// Routes собирает маршруты API поверх стандартного ServeMux.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/records", a.handleCreateRecord)
	mux.HandleFunc("GET /api/records", a.handleListRecords)
	mux.HandleFunc("GET /api/records/{id}", a.handleGetRecord)
	mux.HandleFunc("PUT /api/records/{id}", a.handleUpdateRecord)
	mux.HandleFunc("DELETE /api/records/{id}", a.handleDeleteRecord)
	mux.HandleFunc("POST /api/records/{id}/tracklist", a.handleEnrichTracklist)

	mux.HandleFunc("POST /api/orders", a.withIdempotency(a.createOrder))
	mux.HandleFunc("GET /api/orders", a.handleListOrders)
	mux.HandleFunc("GET /api/orders/{id}", a.handleGetOrder)

	if a.health != nil {
		mux.Handle("GET /healthz", a.health)
		mux.HandleFunc("GET /livez", health.LivenessHandler)
		mux.HandleFunc("GET /readyz", a.health.ReadinessHandler)
	}

	return requestLogging(a.logger, mux)
}

type trackPayload struct {
	Position    int32  `json:"position"`
	Title       string `json:"title"`
	DurationSec int32  `json:"duration_sec,omitempty"`
}

type recordPayload struct {
	ID          string         `json:"id"`
	Artist      string         `json:"artist"`
	Album       string         `json:"album"`
	PriceMinor  int64          `json:"price_minor"`
	Qty         int32          `json:"qty"`
	Format      string         `json:"format,omitempty"`
	Category    string         `json:"category,omitempty"`
	ExternalRef string         `json:"external_ref,omitempty"`
	Tracklist   []trackPayload `json:"tracklist,omitempty"`
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type recordListPayload struct {
	Records []recordPayload `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type orderPayload struct {
	ID         string    `json:"id"`
	RecordID   string    `json:"record_id"`
	Qty        int32     `json:"qty"`
	PriceMinor int64     `json:"price_minor"`
	CreatedAt  time.Time `json:"created_at"`
}

type errorPayload struct {
	Error string `json:"error"`
}

type createRecordRequest struct {
	ID          string         `json:"id"`
	Artist      string         `json:"artist"`
	Album       string         `json:"album"`
	PriceMinor  int64          `json:"price_minor"`
	Qty         int32          `json:"qty"`
	Format      string         `json:"format"`
	Category    string         `json:"category"`
	ExternalRef string         `json:"external_ref"`
	Tracklist   []trackPayload `json:"tracklist"`
}

type updateRecordRequest struct {
	Artist      string         `json:"artist"`
	Album       string         `json:"album"`
	PriceMinor  int64          `json:"price_minor"`
	Format      string         `json:"format"`
	Category    string         `json:"category"`
	ExternalRef string         `json:"external_ref"`
	Tracklist   []trackPayload `json:"tracklist"`
	Version     int64          `json:"version"`
}

type createOrderRequest struct {
	RecordID string `json:"record_id"`
	Qty      int32  `json:"qty"`
}

func (a *API) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record := domain.Record{
		ID:          req.ID,
		Artist:      req.Artist,
		Album:       req.Album,
		PriceMinor:  req.PriceMinor,
		Qty:         req.Qty,
		Format:      req.Format,
		Category:    req.Category,
		ExternalRef: req.ExternalRef,
		Tracklist:   toDomainTracks(req.Tracklist),
	}

	created, err := a.catalog.CreateRecord(r.Context(), record)
	if err != nil {
		a.writeDomainError(w, r, err, "create record failed")
		return
	}

	writeJSON(w, http.StatusCreated, toRecordPayload(created))
}

func (a *API) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := a.catalog.GetRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeDomainError(w, r, err, "get record failed")
		return
	}
	writeJSON(w, http.StatusOK, toRecordPayload(record))
}

func (a *API) handleListRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.RecordFilter{
		Artist:   query.Get("artist"),
		Album:    query.Get("album"),
		Format:   query.Get("format"),
		Category: query.Get("category"),
		Query:    query.Get("q"),
		Limit:    queryInt(query.Get("limit")),
		Offset:   queryInt(query.Get("offset")),
	}

	result, err := a.catalog.ListRecords(r.Context(), filter)
	if err != nil {
		a.writeDomainError(w, r, err, "list records failed")
		return
	}

	payload := recordListPayload{
		Records: make([]recordPayload, 0, len(result.Records)),
		Total:   result.Total,
		Limit:   result.Limit,
		Offset:  result.Offset,
	}
	for _, record := range result.Records {
		payload.Records = append(payload.Records, toRecordPayload(record))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (a *API) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req updateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record := domain.Record{
		ID:          r.PathValue("id"),
		Artist:      req.Artist,
		Album:       req.Album,
		PriceMinor:  req.PriceMinor,
		Format:      req.Format,
		Category:    req.Category,
		ExternalRef: req.ExternalRef,
		Tracklist:   toDomainTracks(req.Tracklist),
		Version:     req.Version,
	}

	updated, err := a.catalog.UpdateRecord(r.Context(), record)
	if err != nil {
		a.writeDomainError(w, r, err, "update record failed")
		return
	}
	writeJSON(w, http.StatusOK, toRecordPayload(updated))
}

func (a *API) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := a.catalog.DeleteRecord(r.Context(), r.PathValue("id")); err != nil {
		a.writeDomainError(w, r, err, "delete record failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleEnrichTracklist(w http.ResponseWriter, r *http.Request) {
	record, err := a.catalog.EnrichTracklist(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeDomainError(w, r, err, "enrich tracklist failed")
		return
	}
	writeJSON(w, http.StatusOK, toRecordPayload(record))
}

// createOrder выполняет бизнес-часть POST /api/orders и возвращает готовый
// ответ в байтах, чтобы слой идемпотентности мог его сохранить и реплеить.
func (a *API) createOrder(r *http.Request, body []byte) (int, []byte) {
	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return http.StatusBadRequest, mustMarshal(errorPayload{Error: "invalid request body"})
	}

	created, err := a.orders.Create(r.Context(), req.RecordID, req.Qty)
	if err != nil {
		status := httpStatusFor(err)
		if status >= http.StatusInternalServerError {
			a.logger.WithError(err).WithField("record_id", req.RecordID).Error("create order failed")
			return status, mustMarshal(errorPayload{Error: "failed to create order"})
		}
		return status, mustMarshal(errorPayload{Error: err.Error()})
	}

	return http.StatusCreated, mustMarshal(toOrderPayload(created))
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	found, err := a.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeDomainError(w, r, err, "get order failed")
		return
	}
	writeJSON(w, http.StatusOK, toOrderPayload(found))
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	recordID := r.URL.Query().Get("record_id")
	if recordID == "" {
		writeError(w, http.StatusBadRequest, "record_id query parameter is required")
		return
	}
	limit := queryInt(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultListOrdersLimit
	}

	list, err := a.orders.ListByRecord(r.Context(), recordID, limit)
	if err != nil {
		a.writeDomainError(w, r, err, "list orders failed")
		return
	}

	payload := make([]orderPayload, 0, len(list))
	for _, o := range list {
		payload = append(payload, toOrderPayload(o))
	}
	writeJSON(w, http.StatusOK, payload)
}

// httpStatusFor переводит доменную ошибку в HTTP-статус.
func httpStatusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsInsufficientStock(err),
		domain.IsVersionConflict(err),
		errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTracklistUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrArtistRequired),
		errors.Is(err, domain.ErrAlbumRequired),
		errors.Is(err, domain.ErrPriceNegative),
		errors.Is(err, domain.ErrQtyNegative),
		errors.Is(err, domain.ErrRecordIDRequired),
		errors.Is(err, domain.ErrOrderQtyInvalid),
		errors.Is(err, domain.ErrTrackPositionInvalid),
		errors.Is(err, domain.ErrTrackTitleRequired),
		errors.Is(err, domain.ErrExternalRefMissing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	status := httpStatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.WithError(err).WithField("path", r.URL.Path).Error(logMsg)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Error: message})
}

func mustMarshal(payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return data
}

func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

func toDomainTracks(tracks []trackPayload) []domain.Track {
	if len(tracks) == 0 {
		return nil
	}
	result := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		result = append(result, domain.Track{
			Position:    t.Position,
			Title:       t.Title,
			DurationSec: t.DurationSec,
		})
	}
	return result
}

func toRecordPayload(record domain.Record) recordPayload {
	tracks := make([]trackPayload, 0, len(record.Tracklist))
	for _, t := range record.Tracklist {
		tracks = append(tracks, trackPayload{
			Position:    t.Position,
			Title:       t.Title,
			DurationSec: t.DurationSec,
		})
	}
	return recordPayload{
		ID:          record.ID,
		Artist:      record.Artist,
		Album:       record.Album,
		PriceMinor:  record.PriceMinor,
		Qty:         record.Qty,
		Format:      record.Format,
		Category:    record.Category,
		ExternalRef: record.ExternalRef,
		Tracklist:   tracks,
		Version:     record.Version,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func toOrderPayload(o domain.Order) orderPayload {
	return orderPayload{
		ID:         o.ID,
		RecordID:   o.RecordID,
		Qty:        o.Qty,
		PriceMinor: o.PriceMinor,
		CreatedAt:  o.CreatedAt,
	}
}
