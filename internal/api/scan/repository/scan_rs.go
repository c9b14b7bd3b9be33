package scanRepository

import (
	"FaceScan/internal/api/scan"
	"FaceScan/internal/entity"
	contextPkg "FaceScan/pkg/context"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type FaceScanDB struct {
	ID                   sql.NullString  `db:"id"`
	UserID               sql.NullString  `db:"user_id"`
	ScanDate             time.Time       `db:"scan_date"`
	ImageURL             sql.NullString  `db:"image_url"`
	FrameCount           sql.NullInt64   `db:"frame_count"`
	WaterRetention       sql.NullFloat64 `db:"water_retention"`
	InflammationIndex    sql.NullFloat64 `db:"inflammation_index"`
	LymphCongestionScore sql.NullFloat64 `db:"lymph_congestion_score"`
	FacialFatLayer       sql.NullFloat64 `db:"facial_fat_layer"`
	DefinitionScore      sql.NullFloat64 `db:"definition_score"`
	PotentialCeiling     sql.NullFloat64 `db:"potential_ceiling"`
	LowSpread            sql.NullBool    `db:"low_spread"`
	UsedFallback         sql.NullBool    `db:"used_fallback"`
	CreatedAt            time.Time       `db:"created_at"`
}

func (r *scanRepository) CreateScan(c context.Context, faceScan entity.FaceScan) error {
	requestID := contextPkg.GetRequestID(c)

	createdAt := faceScan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	argsKV := map[string]interface{}{
		"id":                     faceScan.ID,
		"user_id":                faceScan.UserID,
		"scan_date":              faceScan.ScanDate,
		"image_url":              sql.NullString{String: faceScan.ImageURL, Valid: faceScan.ImageURL != ""},
		"frame_count":            faceScan.FrameCount,
		"water_retention":        faceScan.Metrics.WaterRetention,
		"inflammation_index":     faceScan.Metrics.InflammationIndex,
		"lymph_congestion_score": faceScan.Metrics.LymphCongestionScore,
		"facial_fat_layer":       faceScan.Metrics.FacialFatLayer,
		"definition_score":       faceScan.Metrics.DefinitionScore,
		"potential_ceiling":      faceScan.Metrics.PotentialCeiling,
		"low_spread":             faceScan.LowSpread,
		"used_fallback":          faceScan.UsedFallback,
		"created_at":             createdAt,
	}

	query, args, err := sqlx.Named(queryCreateScan, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateScan")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    faceScan.ID,
			"error":      err.Error(),
		}).Error("Database error when creating face scan")
		return err
	}

	return nil
}

func (r *scanRepository) GetScanByID(c context.Context, id string) (entity.FaceScan, error) {
	requestID := contextPkg.GetRequestID(c)
	var row FaceScanDB

	query, args, err := sqlx.Named(queryGetScanByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetScanByID named query preparation err")
		return entity.FaceScan{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"scan_id":    id,
			}).Warn("GetScanByID no rows found")
			return entity.FaceScan{}, scan.ErrScanNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetScanByID execution err")
		return entity.FaceScan{}, err
	}

	return r.makeFaceScan(row), nil
}

func (r *scanRepository) GetScansByPeriod(c context.Context, userID string, period string) ([]entity.FaceScan, error) {
	requestID := contextPkg.GetRequestID(c)
	var rows []FaceScanDB

	var baseQuery string
	switch period {
	case scan.PeriodWeek:
		baseQuery = queryGetCurrentWeekScans
	case scan.PeriodMonth:
		baseQuery = queryGetCurrentMonthScans
	case scan.PeriodAll, "":
		baseQuery = queryGetAllScans
	default:
		return nil, scan.ErrInvalidPeriod
	}

	query, args, err := sqlx.Named(baseQuery, map[string]interface{}{"user_id": userID})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetScansByPeriod named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"period":     period,
			"error":      err.Error(),
		}).Error("GetScansByPeriod execution err")
		return nil, err
	}

	result := make([]entity.FaceScan, 0, len(rows))
	for _, row := range rows {
		result = append(result, r.makeFaceScan(row))
	}

	return result, nil
}

func (r *scanRepository) DeleteScan(c context.Context, id string) error {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryDeleteScan, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteScan named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	res, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteScan execution err")
		return err
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return scan.ErrScanNotFound
	}

	return nil
}

func (r *scanRepository) makeFaceScan(row FaceScanDB) entity.FaceScan {
	return entity.FaceScan{
		ID:         row.ID.String,
		UserID:     row.UserID.String,
		ScanDate:   row.ScanDate,
		ImageURL:   row.ImageURL.String,
		FrameCount: int(row.FrameCount.Int64),
		Metrics: entity.MetricSet{
			WaterRetention:       row.WaterRetention.Float64,
			InflammationIndex:    row.InflammationIndex.Float64,
			LymphCongestionScore: row.LymphCongestionScore.Float64,
			FacialFatLayer:       row.FacialFatLayer.Float64,
			DefinitionScore:      row.DefinitionScore.Float64,
			PotentialCeiling:     row.PotentialCeiling.Float64,
		},
		LowSpread:    row.LowSpread.Bool,
		UsedFallback: row.UsedFallback.Bool,
		CreatedAt:    row.CreatedAt,
	}
}
