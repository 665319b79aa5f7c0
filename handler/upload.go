package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/TIANLI0/ShipKit/model"
	"github.com/TIANLI0/ShipKit/service"
	"github.com/TIANLI0/ShipKit/store"
	"github.com/TIANLI0/ShipKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const outputContentType = "image/jpeg"

// Recorder 持久化每次优化的结果
type Recorder interface {
	Record(ctx context.Context, rec store.ProcessedImage) error
}

// NopRecorder 未配置数据库时使用
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, store.ProcessedImage) error { return nil }

type OptimizeHandler struct {
	cfg       *config.Config
	cache     service.ResultCache
	optimizer *service.Optimizer
	limiter   *service.ProcessLimiter
	recorder  Recorder
}

func NewOptimizeHandler(cfg *config.Config, cache service.ResultCache, optimizer *service.Optimizer, limiter *service.ProcessLimiter, recorder Recorder) *OptimizeHandler {
	if cache == nil {
		cache = service.NopCache{}
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &OptimizeHandler{
		cfg:       cfg,
		cache:     cache,
		optimizer: optimizer,
		limiter:   limiter,
		recorder:  recorder,
	}
}

// Optimize 处理图片上传并执行优化流程
func (h *OptimizeHandler) Optimize(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return
	}

	data, ok := readUpload(c, file, h.cfg.Upload)
	if !ok {
		return
	}

	actualWeight, err := parseOptionalFloat(c.PostForm("actual_weight_g"))
	if err != nil {
		badRequest(c, "actual_weight_g 参数无效", err)
		return
	}
	dims, err := parseDimensions(c.PostForm("dimensions_cm"))
	if err != nil {
		badRequest(c, "dimensions_cm 参数无效", err)
		return
	}
	if err := service.ValidateShippingInput(actualWeight, dims); err != nil {
		badRequest(c, "重量或尺寸参数无效", err)
		return
	}

	md5 := utils.BytesMD5(data)
	utils.Logger.Info("file uploaded",
		zap.String("filename", file.Filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size))

	// 检查缓存（带参数区分）
	ctx := c.Request.Context()
	cacheKey := optimizeCacheKey(md5, actualWeight, dims)
	cached, err := h.cache.Get(ctx, cacheKey)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil {
		utils.Logger.Info("cache hit", zap.String("cache_key", cacheKey))
		c.JSON(http.StatusOK, model.OptimizeResponse{
			Success: true,
			Message: "处理成功（来自缓存）",
			Data:    cached,
		})
		return
	}

	release, err := h.limiter.Acquire(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Success: false,
			Message: "处理队列已满，请稍后重试",
			Error:   err.Error(),
		})
		return
	}
	out, metrics, err := h.optimizer.Optimize(data, service.OptimizeOptions{
		Filename:      file.Filename,
		ActualWeightG: actualWeight,
		DimensionsCm:  dims,
	})
	release()

	if err != nil {
		h.handleOptimizeError(c, md5, file.Filename, err)
		return
	}
	rec := store.NewProcessedImage(md5, file.Filename, metrics, nil)
	recorded := h.record(ctx, rec)

	result := &model.OptimizeResult{
		MD5:         md5,
		Filename:    file.Filename,
		ContentType: outputContentType,
		Image:       out,
		Metrics:     metrics,
		Timestamp:   time.Now().Unix(),
	}
	if metrics.Skipped() {
		result.ContentType = file.Header.Get("Content-Type")
	}
	if recorded {
		result.RecordID = rec.ID.String()
	}

	// 保存到缓存
	if err := h.cache.Set(ctx, cacheKey, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, model.OptimizeResponse{
		Success: true,
		Message: "处理成功",
		Data:    result,
	})
}

// GetByMD5 根据MD5获取缓存的优化结果
func (h *OptimizeHandler) GetByMD5(c *gin.Context) {
	md5 := c.Param("md5")
	if md5 == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "MD5参数缺失",
		})
		return
	}

	result, err := h.cache.Get(c.Request.Context(), md5)
	if err != nil {
		utils.Logger.Error("failed to get optimize result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}

	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该图片的优化结果",
		})
		return
	}

	c.JSON(http.StatusOK, model.OptimizeResponse{
		Success: true,
		Message: "查询成功",
		Data:    result,
	})
}

func (h *OptimizeHandler) handleOptimizeError(c *gin.Context, md5, filename string, err error) {
	switch {
	case errors.Is(err, service.ErrDecode):
		h.record(c.Request.Context(), store.NewProcessedImage(md5, filename, nil, err))
		badRequest(c, "无法解析图片", err)
		return
	case errors.Is(err, service.ErrInvalidShippingInput):
		badRequest(c, "重量或尺寸参数无效", err)
		return
	}

	var metrics *model.PipelineMetrics
	if pe, ok := service.IsPipelineError(err); ok {
		metrics = pe.Metrics
	}
	h.record(c.Request.Context(), store.NewProcessedImage(md5, filename, metrics, err))

	utils.Logger.Error("failed to optimize image", zap.String("md5", md5), zap.Error(err))
	c.JSON(http.StatusInternalServerError, model.ErrorResponse{
		Success: false,
		Message: "图片处理失败",
		Error:   err.Error(),
	})
}

// record 记录失败只写日志；返回记录是否已持久化
func (h *OptimizeHandler) record(ctx context.Context, rec store.ProcessedImage) bool {
	if _, nop := h.recorder.(NopRecorder); nop {
		return false
	}
	if err := h.recorder.Record(ctx, rec); err != nil {
		utils.Logger.Warn("failed to record processed image",
			zap.String("md5", rec.MD5),
			zap.Error(err))
		return false
	}
	return true
}

// readUpload 校验大小与类型后读取上传内容
func readUpload(c *gin.Context, file *multipart.FileHeader, upload config.UploadConfig) ([]byte, bool) {
	// 验证文件大小
	if file.Size > upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", upload.MaxSize/(1024*1024)),
		})
		return nil, false
	}

	// 验证文件类型
	if !isAllowedType(upload.AllowedTypes, file.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG/WebP",
		})
		return nil, false
	}

	f, err := file.Open()
	if err != nil {
		utils.Logger.Error("failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		utils.Logger.Error("failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return nil, false
	}
	return data, true
}

func isAllowedType(allowed []string, contentType string) bool {
	for _, t := range allowed {
		if strings.EqualFold(contentType, t) {
			return true
		}
	}
	return false
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

func parseOptionalFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseDimensions 支持 "L,W,D" 与 JSON 数组两种写法
func parseDimensions(raw string) (*service.Dimensions, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var values []float64
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, err
		}
	} else {
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
	}

	if len(values) != 3 {
		return nil, fmt.Errorf("expected 3 values (length, width, depth), got %d", len(values))
	}
	return &service.Dimensions{LengthCm: values[0], WidthCm: values[1], DepthCm: values[2]}, nil
}

// optimizeCacheKey 重量与尺寸影响运费字段，需要区分缓存
func optimizeCacheKey(md5 string, actualWeight *float64, dims *service.Dimensions) string {
	key := md5
	if actualWeight != nil {
		key += ":w=" + strconv.FormatFloat(*actualWeight, 'f', -1, 64)
	}
	if dims != nil {
		key += fmt.Sprintf(":d=%gx%gx%g", dims.LengthCm, dims.WidthCm, dims.DepthCm)
	}
	return key
}
