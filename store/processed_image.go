package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TIANLI0/ShipKit/model"
	"github.com/google/uuid"
)

// 处理状态
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// ProcessedImage processed_images 表中的一行
type ProcessedImage struct {
	ID                uuid.UUID      `json:"id"`
	MD5               string         `json:"md5"`
	Filename          string         `json:"filename"`
	InputSizeBytes    int            `json:"input_size_bytes"`
	OutputSizeBytes   int            `json:"output_size_bytes"`
	InputWidth        int            `json:"input_width"`
	InputHeight       int            `json:"input_height"`
	OutputWidth       int            `json:"output_width"`
	OutputHeight      int            `json:"output_height"`
	ProcessingTimeMs  float64        `json:"processing_time_ms"`
	ActualWeightG     *float64       `json:"actual_weight_g"`
	VolumetricWeightG *float64       `json:"volumetric_weight_g"`
	BillableWeightG   *float64       `json:"billable_weight_g"`
	ShippingCost      *int           `json:"shipping_cost"`
	Status            string         `json:"status"`
	ErrorMessage      *string        `json:"error_message,omitempty"`
	OptimizerVersion  string         `json:"optimizer_version"`
	StageMetrics      map[string]any `json:"stage_metrics"`
	CreatedAt         time.Time      `json:"created_at"`
}

// NewProcessedImage 由流程指标构造记录，metrics 可能只填充了一部分
func NewProcessedImage(md5, filename string, metrics *model.PipelineMetrics, runErr error) ProcessedImage {
	rec := ProcessedImage{
		ID:       uuid.New(),
		MD5:      md5,
		Filename: filename,
		Status:   StatusSuccess,
	}

	if metrics != nil {
		rec.InputSizeBytes = metrics.InputSizeBytes
		rec.OutputSizeBytes = metrics.OutputSizeBytes
		rec.InputWidth = metrics.InputDimensions.Width
		rec.InputHeight = metrics.InputDimensions.Height
		rec.OutputWidth = metrics.OutputDimensions.Width
		rec.OutputHeight = metrics.OutputDimensions.Height
		rec.ProcessingTimeMs = metrics.ProcessingTimeMs
		rec.OptimizerVersion = metrics.OptimizerVersion
		rec.StageMetrics = metrics.StageMetrics
		if metrics.Cost != nil {
			rec.ActualWeightG = metrics.Cost.ActualWeightG
			rec.VolumetricWeightG = &metrics.Cost.VolumetricWeightG
			rec.BillableWeightG = &metrics.Cost.BillableWeightG
			rec.ShippingCost = &metrics.Cost.ShippingCost
		}
		if metrics.Skipped() {
			rec.Status = StatusSkipped
		}
	}

	if runErr != nil {
		rec.Status = StatusFailed
		msg := runErr.Error()
		rec.ErrorMessage = &msg
	}
	return rec
}

// ProcessedImageStore 优化记录的持久化
type ProcessedImageStore struct {
	db *sql.DB
}

func NewProcessedImageStore(db *sql.DB) *ProcessedImageStore {
	return &ProcessedImageStore{db: db}
}

// Record 写入一条记录
func (s *ProcessedImageStore) Record(ctx context.Context, rec ProcessedImage) error {
	stageMetrics := rec.StageMetrics
	if stageMetrics == nil {
		stageMetrics = map[string]any{}
	}
	stageJSON, err := json.Marshal(stageMetrics)
	if err != nil {
		return fmt.Errorf("marshal stage metrics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processed_images (
			id, md5, filename,
			input_size_bytes, output_size_bytes,
			input_width, input_height, output_width, output_height,
			processing_time_ms,
			actual_weight_g, volumetric_weight_g, billable_weight_g, shipping_cost,
			status, error_message, optimizer_version, stage_metrics
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		rec.ID, rec.MD5, rec.Filename,
		rec.InputSizeBytes, rec.OutputSizeBytes,
		rec.InputWidth, rec.InputHeight, rec.OutputWidth, rec.OutputHeight,
		rec.ProcessingTimeMs,
		rec.ActualWeightG, rec.VolumetricWeightG, rec.BillableWeightG, rec.ShippingCost,
		rec.Status, rec.ErrorMessage, rec.OptimizerVersion, string(stageJSON),
	)
	if err != nil {
		return fmt.Errorf("insert processed image: %w", err)
	}
	return nil
}

const selectProcessedImage = `
	SELECT id, md5, filename,
		input_size_bytes, output_size_bytes,
		input_width, input_height, output_width, output_height,
		processing_time_ms,
		actual_weight_g, volumetric_weight_g, billable_weight_g, shipping_cost,
		status, error_message, optimizer_version, stage_metrics, created_at
	FROM processed_images`

// FindByID 按 ID 查询，不存在时返回 nil
func (s *ProcessedImageStore) FindByID(ctx context.Context, id uuid.UUID) (*ProcessedImage, error) {
	row := s.db.QueryRowContext(ctx, selectProcessedImage+` WHERE id = $1`, id)

	rec, err := scanProcessedImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query processed image: %w", err)
	}
	return rec, nil
}

// List 按创建时间倒序分页
func (s *ProcessedImageStore) List(ctx context.Context, skip, limit int) ([]ProcessedImage, error) {
	rows, err := s.db.QueryContext(ctx,
		selectProcessedImage+` ORDER BY created_at DESC, id OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list processed images: %w", err)
	}
	defer rows.Close()

	records := []ProcessedImage{}
	for rows.Next() {
		rec, err := scanProcessedImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processed image: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list processed images: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcessedImage(row rowScanner) (*ProcessedImage, error) {
	var (
		rec       ProcessedImage
		stageJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.MD5, &rec.Filename,
		&rec.InputSizeBytes, &rec.OutputSizeBytes,
		&rec.InputWidth, &rec.InputHeight, &rec.OutputWidth, &rec.OutputHeight,
		&rec.ProcessingTimeMs,
		&rec.ActualWeightG, &rec.VolumetricWeightG, &rec.BillableWeightG, &rec.ShippingCost,
		&rec.Status, &rec.ErrorMessage, &rec.OptimizerVersion, &stageJSON, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stageJSON, &rec.StageMetrics); err != nil {
		return nil, fmt.Errorf("unmarshal stage metrics: %w", err)
	}
	return &rec, nil
}
