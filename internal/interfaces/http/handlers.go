package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"plantmeter-cloud/internal/calendar"
	curve "plantmeter-cloud/internal/curve/domain"
	fleet "plantmeter-cloud/internal/fleet/domain"
	"plantmeter-cloud/internal/ingest"
	"plantmeter-cloud/internal/production"
	prodinterfaces "plantmeter-cloud/internal/production/interfaces"
	"plantmeter-cloud/internal/rawsource"
)

type dailyCurvePayload struct {
	Date     string    `json:"date"`
	ValuesWh []float64 `json:"values_wh"`
	TotalWh  float64   `json:"total_wh"`
}

func curvePayloads(curves []production.DailyCurve) []dailyCurvePayload {
	result := make([]dailyCurvePayload, 0, len(curves))
	for _, c := range curves {
		result = append(result, dailyCurvePayload{
			Date:     c.Date.String(),
			ValuesWh: c.ValuesWh,
			TotalWh:  c.TotalWh(),
		})
	}
	return result
}

// ProductionHandler serves aggregated hourly production curves.
type ProductionHandler struct {
	service *production.Service
}

// NewProductionHandler constructs a ProductionHandler.
func NewProductionHandler(service *production.Service) *ProductionHandler {
	return &ProductionHandler{service: service}
}

// ServeHTTP handles GET /api/v1/production.
func (h *ProductionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	aggregatorID := r.URL.Query().Get("aggregator")
	if aggregatorID == "" {
		http.Error(w, "aggregator is required", http.StatusBadRequest)
		return
	}
	first, last, err := parseDateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	curves, err := h.service.ProductionWh(r.Context(), aggregatorID, first, last)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(curvePayloads(curves))
}

type updateRequest struct {
	AggregatorID string `json:"aggregator,omitempty"`
	PlantID      string `json:"plant,omitempty"`
	MeterID      string `json:"meter,omitempty"`
	First        string `json:"first"`
	Last         string `json:"last"`
}

type updateResultPayload struct {
	MeterID    string   `json:"meter"`
	Upserted   int      `json:"upserted"`
	Malformed  int      `json:"malformed"`
	Unresolved []string `json:"unresolved,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func updateResultPayloads(results []ingest.Result) []updateResultPayload {
	payloads := make([]updateResultPayload, 0, len(results))
	for _, result := range results {
		payload := updateResultPayload{
			MeterID:   result.MeterID,
			Upserted:  result.Upserted,
			Malformed: result.Malformed,
		}
		for _, moment := range result.Unresolved {
			payload.Unresolved = append(payload.Unresolved,
				fmt.Sprintf("%s %02d:00 dst=%t", moment.Date, moment.Hour, moment.DST))
		}
		if result.Err != nil {
			payload.Error = result.Err.Error()
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

// UpdateProductionHandler triggers re-ingestion for a meter, a plant, or
// a whole aggregator.
type UpdateProductionHandler struct {
	service  *ingest.Service
	provider fleet.Provider
}

// NewUpdateProductionHandler constructs an UpdateProductionHandler.
func NewUpdateProductionHandler(service *ingest.Service, provider fleet.Provider) *UpdateProductionHandler {
	return &UpdateProductionHandler{service: service, provider: provider}
}

// ServeHTTP handles POST /api/v1/production/update.
func (h *UpdateProductionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil || h.provider == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	first, err := parseDate("first", req.First)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	last, err := parseDate("last", req.Last)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var results []ingest.Result
	switch {
	case req.MeterID != "":
		if req.PlantID == "" {
			http.Error(w, "plant is required with meter", http.StatusBadRequest)
			return
		}
		meter, err := findMeter(r, h.provider, req.PlantID, req.MeterID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		results = []ingest.Result{h.service.UpdateMeter(r.Context(), meter, first, last)}
	case req.PlantID != "":
		results, err = h.service.UpdatePlant(r.Context(), req.PlantID, first, last)
	case req.AggregatorID != "":
		results, err = h.service.UpdateAggregator(r.Context(), req.AggregatorID, first, last)
	default:
		http.Error(w, "one of meter, plant, aggregator is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(updateResultPayloads(results))
}

func findMeter(r *http.Request, provider fleet.Provider, plantID, meterID string) (fleet.Meter, error) {
	meters, err := provider.ListMeters(r.Context(), plantID)
	if err != nil {
		return fleet.Meter{}, err
	}
	for _, meter := range meters {
		if meter.ID == meterID {
			return meter, nil
		}
	}
	return fleet.Meter{}, fmt.Errorf("%w: %q in plant %q", fleet.ErrMeterNotFound, meterID, plantID)
}

type measurementRangePayload struct {
	AggregatorID         string  `json:"aggregator"`
	FirstMeasurementDate *string `json:"first_measurement_date"`
	LastMeasurementDate  *string `json:"last_measurement_date"`
	FirstActiveDate      *string `json:"first_active_date"`
}

// MeasurementRangeHandler serves measurement coverage queries.
type MeasurementRangeHandler struct {
	service *production.Service
}

// NewMeasurementRangeHandler constructs a MeasurementRangeHandler.
func NewMeasurementRangeHandler(service *production.Service) *MeasurementRangeHandler {
	return &MeasurementRangeHandler{service: service}
}

// ServeHTTP handles GET /api/v1/production/measurement-range. Dates are
// null when the aggregator has no measurements or no active plants.
func (h *MeasurementRangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	aggregatorID := r.URL.Query().Get("aggregator")
	if aggregatorID == "" {
		http.Error(w, "aggregator is required", http.StatusBadRequest)
		return
	}

	payload := measurementRangePayload{AggregatorID: aggregatorID}
	first, err := h.service.FirstMeasurementDate(r.Context(), aggregatorID)
	if err != nil && !errors.Is(err, curve.ErrNoData) {
		writeDomainError(w, err)
		return
	}
	if err == nil {
		payload.FirstMeasurementDate = datePtr(first)
	}
	last, err := h.service.LastMeasurementDate(r.Context(), aggregatorID)
	if err != nil && !errors.Is(err, curve.ErrNoData) {
		writeDomainError(w, err)
		return
	}
	if err == nil {
		payload.LastMeasurementDate = datePtr(last)
	}
	active, err := h.service.FirstActiveDate(r.Context(), aggregatorID)
	if err != nil && !errors.Is(err, curve.ErrNoData) {
		writeDomainError(w, err)
		return
	}
	if err == nil {
		payload.FirstActiveDate = datePtr(active)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// SharesHandler serves the ownership share total of an aggregator.
type SharesHandler struct {
	service *production.Service
}

// NewSharesHandler constructs a SharesHandler.
func NewSharesHandler(service *production.Service) *SharesHandler {
	return &SharesHandler{service: service}
}

// ServeHTTP handles GET /api/v1/shares.
func (h *SharesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	aggregatorID := r.URL.Query().Get("aggregator")
	if aggregatorID == "" {
		http.Error(w, "aggregator is required", http.StatusBadRequest)
		return
	}

	total, err := h.service.TotalShares(r.Context(), aggregatorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"aggregator":   aggregatorID,
		"total_shares": total,
	})
}

// ExportProductionHandler serves XLSX and PDF production reports.
type ExportProductionHandler struct {
	service *production.Service
	format  string
}

// NewExportProductionXLSXHandler constructs the XLSX export handler.
func NewExportProductionXLSXHandler(service *production.Service) *ExportProductionHandler {
	return &ExportProductionHandler{service: service, format: "xlsx"}
}

// NewExportProductionPDFHandler constructs the PDF export handler.
func NewExportProductionPDFHandler(service *production.Service) *ExportProductionHandler {
	return &ExportProductionHandler{service: service, format: "pdf"}
}

// ServeHTTP handles GET /api/v1/exports/production.{xlsx,pdf}.
func (h *ExportProductionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	aggregatorID := r.URL.Query().Get("aggregator")
	if aggregatorID == "" {
		http.Error(w, "aggregator is required", http.StatusBadRequest)
		return
	}
	first, last, err := parseDateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	curves, err := h.service.ProductionWh(r.Context(), aggregatorID, first, last)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	report := prodinterfaces.ProductionReport{
		AggregatorID: aggregatorID,
		First:        first,
		Last:         last,
		Curves:       curves,
	}

	var body []byte
	var contentType, filename string
	switch h.format {
	case "pdf":
		body, err = prodinterfaces.BuildProductionPDF(report)
		contentType = "application/pdf"
		filename = "production.pdf"
	default:
		body, err = prodinterfaces.BuildProductionXLSX(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "production.xlsx"
	}
	if err != nil {
		http.Error(w, "build report error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(body)
}

func parseDateRange(r *http.Request) (calendar.Date, calendar.Date, error) {
	first, err := parseDate("first", r.URL.Query().Get("first"))
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	last, err := parseDate("last", r.URL.Query().Get("last"))
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	if last.Before(first) {
		return calendar.Date{}, calendar.Date{}, errors.New("last must not precede first")
	}
	return first, last, nil
}

func parseDate(key, value string) (calendar.Date, error) {
	if value == "" {
		return calendar.Date{}, errors.New(key + " is required")
	}
	parsed, err := calendar.ParseDate(value)
	if err != nil {
		return calendar.Date{}, errors.New(key + " must be YYYY-MM-DD")
	}
	return parsed, nil
}

func datePtr(d calendar.Date) *string {
	value := d.String()
	return &value
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fleet.ErrAggregatorNotFound),
		errors.Is(err, fleet.ErrMeterNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, production.ErrInvalidRange),
		errors.Is(err, calendar.ErrInvalidDate),
		errors.Is(err, calendar.ErrInvalidLocalMoment),
		errors.Is(err, fleet.ErrEmptyID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, curve.ErrStorageUnavailable),
		errors.Is(err, rawsource.ErrSourceUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
