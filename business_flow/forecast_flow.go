package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/wmjones/demand-planning-api/app/dto"
	"github.com/wmjones/demand-planning-api/config"
	"github.com/wmjones/demand-planning-api/models"
	"github.com/wmjones/demand-planning-api/repository"
	"github.com/wmjones/demand-planning-api/utils"
	"github.com/xuri/excelize/v2"
)

// Export formats accepted by the export endpoint
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)

var (
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecast_query_duration_seconds",
			Help:    "Duration of forecast query engine actions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_cache_hits_total",
			Help: "Total number of forecast cache hits",
		},
		[]string{"key"},
	)

	cacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_cache_misses_total",
			Help: "Total number of forecast cache misses",
		},
		[]string{"key"},
	)
)

// ExportResult is a rendered forecast export ready to be streamed to the client
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ForecastFlow serves forecast queries with active adjustments applied
type ForecastFlow interface {
	GetForecastData(ctx context.Context, filter models.ForecastFilter, metadata *ClientMetadata) (*dto.ForecastDataResponse, error)
	GetDashboardForecast(ctx context.Context, filter models.ForecastFilter, metadata *ClientMetadata) (*dto.DashboardForecastResponse, error)
	GetForecastSummary(ctx context.Context, states []string, metadata *ClientMetadata) (*dto.ForecastSummaryResponse, error)
	GetForecastByDate(ctx context.Context, filter models.ForecastFilter, metadata *ClientMetadata) (*dto.ForecastByDateResponse, error)
	GetDistinctValues(ctx context.Context, dimension string, metadata *ClientMetadata) (*dto.DistinctValuesResponse, error)
	ExecuteReadOnlyQuery(ctx context.Context, query string, metadata *ClientMetadata) (*dto.RawQueryResponse, error)
	RefreshSummary(ctx context.Context, metadata *ClientMetadata) (*dto.RefreshSummaryResponse, error)
	ExportForecast(ctx context.Context, filter models.ForecastFilter, format string, metadata *ClientMetadata) (*ExportResult, error)
}

// ForecastFlowImpl implements the forecast business flow
type ForecastFlowImpl struct {
	forecastRepo   repository.ForecastRepository
	adjustmentRepo repository.AdjustmentRepository
	cache          *redis.Client
	config         *config.ProductionConfig
}

// NewForecastFlow creates a new forecast flow. The cache client may be nil
// when caching is disabled.
func NewForecastFlow(
	forecastRepo repository.ForecastRepository,
	adjustmentRepo repository.AdjustmentRepository,
	cache *redis.Client,
	cfg *config.ProductionConfig,
) ForecastFlow {
	return &ForecastFlowImpl{
		forecastRepo:   forecastRepo,
		adjustmentRepo: adjustmentRepo,
		cache:          cache,
		config:         cfg,
	}
}

// matchingAdjustments keeps the candidates whose stored scope matches the
// query context. Window checks happen later per business date.
func matchingAdjustments(candidates []*models.Adjustment, query models.FilterContext) []*models.Adjustment {
	var matches []*models.Adjustment
	for _, adj := range candidates {
		if !utils.IsTrue(adj.IsActive) {
			continue
		}
		if adj.Scope().MatchesScope(query) {
			matches = append(matches, adj)
		}
	}
	return matches
}

// applyOverlay composes the percentages of the adjustments whose window
// contains the business date. The percentages add up first and the combined
// multiplier is applied to the baseline exactly once.
func applyOverlay(baseline float64, businessDate string, matches []*models.Adjustment) (adjusted, totalPercent float64, count int) {
	for _, adj := range matches {
		if !adj.Scope().WindowContains(businessDate) {
			continue
		}
		totalPercent += adj.AdjustmentValue
		count++
	}
	if count == 0 {
		return baseline, 0, 0
	}
	return baseline * (1 + totalPercent/100), totalPercent, count
}

func (f *ForecastFlowImpl) validateFilter(filter models.ForecastFilter) error {
	if filter.StartDate != nil && filter.EndDate != nil && *filter.StartDate > *filter.EndDate {
		return NewBusinessError("INVALID_DATE_RANGE", "start date cannot be after end date", ErrStartDateAfterEndDate)
	}
	return nil
}

// GetForecastData returns the adjusted forecast for the filtered selection.
// Selections that restrict a location dimension get per-location detail rows;
// item-only selections get one aggregated row per business date.
func (f *ForecastFlowImpl) GetForecastData(ctx context.Context, filter models.ForecastFilter, metadata *ClientMetadata) (*dto.ForecastDataResponse, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues(dto.ActionGetForecastData))
	defer timer.ObserveDuration()

	if err := f.validateFilter(filter); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = f.config.Query.DefaultRowLimit
	}
	if filter.Limit > f.config.Query.MaxRowLimit {
		filter.Limit = f.config.Query.MaxRowLimit
	}

	candidates, err := f.adjustmentRepo.ActiveCandidates(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("ADJUSTMENT_LOOKUP_FAILED", "failed to load adjustments", err)
	}
	matches := matchingAdjustments(candidates, filter.ScopeContext())

	if filter.IsItemAggregate() {
		points, err := f.aggregatePoints(ctx, filter, matches)
		if err != nil {
			return nil, err
		}
		return &dto.ForecastDataResponse{
			Message: "Forecast data retrieved successfully",
			Mode:    dto.ModeItemAggregate,
			Count:   len(points),
			Points:  points,
		}, nil
	}

	points, err := f.detailPoints(ctx, filter, matches)
	if err != nil {
		return nil, err
	}
	return &dto.ForecastDataResponse{
		Message: "Forecast data retrieved successfully",
		Mode:    dto.ModeLocationDetail,
		Count:   len(points),
		Points:  points,
	}, nil
}

func (f *ForecastFlowImpl) detailPoints(ctx context.Context, filter models.ForecastFilter, matches []*models.Adjustment) ([]dto.ForecastDataPoint, error) {
	rows, err := f.forecastRepo.ByFilter(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("FORECAST_LOOKUP_FAILED", "failed to load forecast data", err)
	}

	points := make([]dto.ForecastDataPoint, 0, len(rows))
	for _, row := range rows {
		date := row.BusinessDateString()
		adjusted, totalPercent, count := applyOverlay(row.Y50, date, matches)

		var dcID *string
		if row.DCID != nil {
			dcID = utils.ToPtr(strconv.FormatInt(*row.DCID, 10))
		}

		points = append(points, dto.ForecastDataPoint{
			RestaurantID:           row.RestaurantID,
			InventoryItemID:        row.InventoryItemID,
			BusinessDate:           date,
			DMAID:                  row.DMAID,
			DCID:                   dcID,
			State:                  row.State,
			Y05:                    row.Y05,
			Y50:                    row.Y50,
			Y95:                    row.Y95,
			OriginalY50:            row.Y50,
			AdjustedY50:            adjusted,
			TotalAdjustmentPercent: totalPercent,
			AdjustmentCount:        count,
		})
	}

	return points, nil
}

func (f *ForecastFlowImpl) aggregatePoints(ctx context.Context, filter models.ForecastFilter, matches []*models.Adjustment) ([]dto.ForecastDataPoint, error) {
	aggregates, err := f.forecastRepo.AggregateByDate(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("FORECAST_LOOKUP_FAILED", "failed to aggregate forecast data", err)
	}

	var itemID int64
	if filter.InventoryItemID != nil {
		itemID = *filter.InventoryItemID
	}

	points := make([]dto.ForecastDataPoint, 0, len(aggregates))
	for _, agg := range aggregates {
		date := agg.BusinessDate.Format(models.BusinessDateLayout)
		adjusted, totalPercent, count := applyOverlay(agg.TotalY50, date, matches)

		points = append(points, dto.ForecastDataPoint{
			RestaurantID:           models.AggregateRestaurantSentinel,
			InventoryItemID:        itemID,
			BusinessDate:           date,
			State:                  collapsedDimension(agg.States, filter.States, models.AggregateStateSentinel),
			DMAID:                  collapsedDimension(agg.DMAIDs, filter.DMAIDs, models.AggregateDMASentinel),
			DCID:                   collapsedDCs(agg.DCIDs, filter.DCIDs),
			Y05:                    agg.TotalY05,
			Y50:                    agg.TotalY50,
			Y95:                    agg.TotalY95,
			OriginalY50:            agg.TotalY50,
			AdjustedY50:            adjusted,
			TotalAdjustmentPercent: totalPercent,
			AdjustmentCount:        count,
		})
	}

	return points, nil
}

// collapsedDimension reports a collapsed location dimension. Unrestricted
// dimensions get the sentinel; restricted ones keep the aggregated values.
func collapsedDimension(aggregated *string, selected []string, sentinel string) *string {
	if len(selected) == 0 {
		return utils.ToPtr(sentinel)
	}
	return aggregated
}

func collapsedDCs(aggregated *string, selected []int64) *string {
	if len(selected) == 0 {
		return utils.ToPtr(models.AggregateDCSentinel)
	}
	return aggregated
}

// GetDashboardForecast returns grouped totals plus a one-row summary for the
// dashboard. At least one state must be selected.
func (f *ForecastFlowImpl) GetDashboardForecast(ctx context.Context, filter models.ForecastFilter, metadata *ClientMetadata) (*dto.DashboardForecastResponse, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues(dto.ActionGetDashboardForecast))
	defer timer.ObserveDuration()

	if len(filter.States) == 0 {
		return nil, NewBusinessError("STATES_REQUIRED", "at least one state must be selected", ErrStatesRequired)
	}
	if err := f.validateFilter(filter); err != nil {
		return nil, err
	}

	var (
		wg         sync.WaitGroup
		rows       []*repository.DashboardRow
		summary    *repository.DashboardSummary
		rowsErr    error
		summaryErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		rows, rowsErr = f.forecastRepo.DashboardRows(ctx, filter)
	}()
	go func() {
		defer wg.Done()
		summary, summaryErr = f.forecastRepo.DashboardSummary(ctx, filter)
	}()
	wg.Wait()

	if rowsErr != nil {
		return nil, NewBusinessError("FORECAST_LOOKUP_FAILED", "failed to load dashboard rows", rowsErr)
	}
	if summaryErr != nil {
		return nil, NewBusinessError("FORECAST_LOOKUP_FAILED", "failed to load dashboard summary", summaryErr)
	}

	data := make([]dto.DashboardPoint, 0, len(rows))
	for _, row := range rows {
		data = append(data, dto.DashboardPoint{
			BusinessDate: row.BusinessDate.Format(models.BusinessDateLayout),
			State:        row.State,
			DMAID:        row.DMAID,
			DCID:         row.DCID,
			TotalY50:     row.TotalY50,
		})
	}

	return &dto.DashboardForecastResponse{
		Message: "Dashboard forecast retrieved successfully",
		Data:    data,
		Summary: dto.DashboardSummary{
			RecordCount: summary.RecordCount,
			AvgY50:      summary.AvgY50,
			MinY50:      summary.MinY50,
			MaxY50:      summary.MaxY50,
		},
	}, nil
}

// GetForecastSummary serves per-state rollups from the materialized view,
// cached in redis keyed by the selected states.
func (f *ForecastFlowImpl) GetForecastSummary(ctx context.Context, states []string, metadata *ClientMetadata) (*dto.ForecastSummaryResponse, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues(dto.ActionGetForecastSummary))
	defer timer.ObserveDuration()

	cacheKey := redisKey(f.config.Cache, utils.ForecastSummaryCacheKey+":"+cacheFingerprint(states))

	if items, ok := f.cachedSummary(ctx, cacheKey); ok {
		cacheHitsTotal.WithLabelValues(utils.ForecastSummaryCacheKey).Inc()
		return &dto.ForecastSummaryResponse{
			Message: "Forecast summary retrieved successfully",
			Items:   items,
			Cached:  true,
		}, nil
	}
	cacheMissesTotal.WithLabelValues(utils.ForecastSummaryCacheKey).Inc()

	summaries, err := f.forecastRepo.SummaryByState(ctx, states)
	if err != nil {
		return nil, NewBusinessError("FORECAST_LOOKUP_FAILED", "failed to load forecast summary", err)
	}

	items := make([]dto.StateSummary, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, dto.StateSummary{
			State:       s.State,
			RecordCount: s.RecordCount,
			AvgY50:      s.AvgY50,
			MinY50:      s.MinY50,
			MaxY50:      s.MaxY50,
		})
	}

	f.storeInCache(ctx, cacheKey, items)

	return &dto.ForecastSummaryResponse{
		Message: "Forecast summary retrieved successfully",
		Items:   items,
		Cached:  false,
	}, nil
}

func (f *ForecastFlowImpl) cachedSummary(ctx context.Context, key string) ([]dto.StateSummary, bool) {
	if f.cache == nil || !f.config.Cache.Enabled {
		return nil, false
	}
	bs, err := f.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var items []dto.StateSummary
	if err := json.Unmarshal(bs, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (f *ForecastFlowImpl) storeInCache(ctx context.Context, key string, payload any) {
	if f.cache == nil || !f.config.Cache.Enabled {
		return
	}
	bs, err := json.Marshal(payload)
	if err != nil {
		return
	}
	// Cache writes are best effort
	f.cache.Set(ctx, key, bs, f.config.Cache.DefaultTTL)
}

// GetForecastByDate returns the per-date average of the baseline median,
// cached in redis keyed by the filter fingerprint.
func (f *ForecastFlowImpl) GetForecastByDate(ctx context.Context, filter models.ForecastFilter, metadata *ClientMetadata) (*dto.ForecastByDateResponse, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues(dto.ActionGetForecastByDate))
	defer timer.ObserveDuration()

	if err := f.validateFilter(filter); err != nil {
		return nil, err
	}

	cacheKey := redisKey(f.config.Cache, utils.ForecastSeriesCacheKey+":"+cacheFingerprint(filter))

	if items, ok := f.cachedSeries(ctx, cacheKey); ok {
		cacheHitsTotal.WithLabelValues(utils.ForecastSeriesCacheKey).Inc()
		return &dto.ForecastByDateResponse{
			Message: "Forecast series retrieved successfully",
			Items:   items,
			Cached:  true,
		}, nil
	}
	cacheMissesTotal.WithLabelValues(utils.ForecastSeriesCacheKey).Inc()

	averages, err := f.forecastRepo.AveragesByDate(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("FORECAST_LOOKUP_FAILED", "failed to load forecast series", err)
	}

	items := make([]dto.DateAverage, 0, len(averages))
	for _, avg := range averages {
		items = append(items, dto.DateAverage{
			BusinessDate: avg.BusinessDate.Format(models.BusinessDateLayout),
			AvgY50:       avg.AvgY50,
		})
	}

	f.storeInCache(ctx, cacheKey, items)

	return &dto.ForecastByDateResponse{
		Message: "Forecast series retrieved successfully",
		Items:   items,
		Cached:  false,
	}, nil
}

func (f *ForecastFlowImpl) cachedSeries(ctx context.Context, key string) ([]dto.DateAverage, bool) {
	if f.cache == nil || !f.config.Cache.Enabled {
		return nil, false
	}
	bs, err := f.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var items []dto.DateAverage
	if err := json.Unmarshal(bs, &items); err != nil {
		return nil, false
	}
	return items, true
}

// GetDistinctValues lists the distinct values of a whitelisted dimension
func (f *ForecastFlowImpl) GetDistinctValues(ctx context.Context, dimension string, metadata *ClientMetadata) (*dto.DistinctValuesResponse, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues(dto.ActionDistinctPrefix + dimension))
	defer timer.ObserveDuration()

	values, err := f.forecastRepo.DistinctValues(ctx, dimension)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownDimension) {
			return nil, NewBusinessErrorf("UNKNOWN_DIMENSION", "unknown dimension %q", ErrUnknownDimension, dimension)
		}
		return nil, NewBusinessError("FORECAST_LOOKUP_FAILED", "failed to load distinct values", err)
	}

	if values == nil {
		values = []string{}
	}

	return &dto.DistinctValuesResponse{
		Message:   "Distinct values retrieved successfully",
		Dimension: dimension,
		Values:    values,
	}, nil
}

// ExecuteReadOnlyQuery runs an arbitrary read-only statement. Anything that
// does not start with SELECT or WITH is rejected before touching the
// database, and the statement runs under a server-side timeout.
func (f *ForecastFlowImpl) ExecuteReadOnlyQuery(ctx context.Context, query string, metadata *ClientMetadata) (*dto.RawQueryResponse, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues(dto.ActionExecuteQuery))
	defer timer.ObserveDuration()

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, NewBusinessError("QUERY_REQUIRED", "query text is required", ErrQueryTextRequired)
	}

	lowered := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return nil, NewBusinessError("QUERY_NOT_READ_ONLY", "only SELECT and WITH statements are allowed", ErrQueryNotReadOnly)
	}

	result, err := f.forecastRepo.ExecuteReadOnly(ctx, trimmed, f.config.Query.RawStatementTimeout)
	if err != nil {
		return nil, NewBusinessError("QUERY_EXECUTION_FAILED", "query execution failed", err)
	}

	rows := result.Rows
	if rows == nil {
		rows = [][]string{}
	}

	return &dto.RawQueryResponse{
		Message: "Query executed successfully",
		Columns: result.Columns,
		Rows:    rows,
	}, nil
}

// RefreshSummary refreshes the forecast_summary materialized view
func (f *ForecastFlowImpl) RefreshSummary(ctx context.Context, metadata *ClientMetadata) (*dto.RefreshSummaryResponse, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues(dto.ActionRefreshSummary))
	defer timer.ObserveDuration()

	if err := f.forecastRepo.RefreshSummary(ctx); err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "failed to refresh forecast summary", err)
	}

	return &dto.RefreshSummaryResponse{
		Message: "Forecast summary refreshed successfully",
	}, nil
}

// ExportForecast renders the adjusted forecast as a CSV or Excel download
func (f *ForecastFlowImpl) ExportForecast(ctx context.Context, filter models.ForecastFilter, format string, metadata *ClientMetadata) (*ExportResult, error) {
	if format != ExportFormatCSV && format != ExportFormatXLSX {
		return nil, NewBusinessErrorf("INVALID_EXPORT_FORMAT", "unsupported export format %q", ErrInvalidExportFormat, format)
	}

	if filter.Limit <= 0 || filter.Limit > f.config.Query.ExportRowLimit {
		filter.Limit = f.config.Query.ExportRowLimit
	}

	data, err := f.GetForecastData(ctx, filter, metadata)
	if err != nil {
		return nil, err
	}

	stamp := utils.UTCNow().Format("20060102_150405")

	if format == ExportFormatCSV {
		content, err := renderCSV(data.Points)
		if err != nil {
			return nil, NewBusinessError("EXPORT_FAILED", "failed to render CSV export", err)
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("forecast_%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	}

	content, err := renderExcel(data.Points)
	if err != nil {
		return nil, NewBusinessError("EXPORT_FAILED", "failed to render Excel export", err)
	}
	return &ExportResult{
		FileName:    fmt.Sprintf("forecast_%s.xlsx", stamp),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     content,
	}, nil
}

var exportHeader = []string{
	"business_date", "restaurant_id", "inventory_item_id", "state", "dma_id", "dc_id",
	"y_05", "y_50", "y_95", "adjusted_y50", "total_adjustment_percent", "adjustment_count",
}

func exportRecord(p dto.ForecastDataPoint) []string {
	return []string{
		p.BusinessDate,
		strconv.FormatInt(p.RestaurantID, 10),
		strconv.FormatInt(p.InventoryItemID, 10),
		derefString(p.State),
		derefString(p.DMAID),
		derefString(p.DCID),
		formatOptionalFloat(p.Y05),
		strconv.FormatFloat(p.Y50, 'f', -1, 64),
		formatOptionalFloat(p.Y95),
		strconv.FormatFloat(p.AdjustedY50, 'f', -1, 64),
		strconv.FormatFloat(p.TotalAdjustmentPercent, 'f', -1, 64),
		strconv.Itoa(p.AdjustmentCount),
	}
}

func renderCSV(points []dto.ForecastDataPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, p := range points {
		if err := w.Write(exportRecord(p)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func renderExcel(points []dto.ForecastDataPoint) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Forecast"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for ri, p := range points {
		cell, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return nil, err
		}
		record := exportRecord(p)
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatOptionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
