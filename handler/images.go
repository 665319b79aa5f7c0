package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/TIANLI0/ShipKit/model"
	"github.com/TIANLI0/ShipKit/store"
	"github.com/TIANLI0/ShipKit/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ImageReader 查询已记录的优化结果
type ImageReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*store.ProcessedImage, error)
	List(ctx context.Context, skip, limit int) ([]store.ProcessedImage, error)
}

type ImageHandler struct {
	reader ImageReader
}

// NewImageHandler reader 为 nil 表示未配置数据库
func NewImageHandler(reader ImageReader) *ImageHandler {
	return &ImageHandler{reader: reader}
}

// GetByID 返回单条处理记录
func (h *ImageHandler) GetByID(c *gin.Context) {
	if !h.available(c) {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "记录ID无效", err)
		return
	}

	rec, err := h.reader.FindByID(c.Request.Context(), id)
	if err != nil {
		utils.Logger.Error("failed to get processed image", zap.String("id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该处理记录",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "查询成功",
		"data":    rec,
	})
}

// History 按时间倒序分页返回处理记录
func (h *ImageHandler) History(c *gin.Context) {
	if !h.available(c) {
		return
	}

	skip, err := queryInt(c, "skip", 0)
	if err != nil || skip < 0 {
		badRequest(c, "skip 参数无效", orInvalid(err))
		return
	}
	limit, err := queryInt(c, "limit", defaultHistoryLimit)
	if err != nil || limit <= 0 || limit > maxHistoryLimit {
		badRequest(c, "limit 参数无效", orInvalid(err))
		return
	}

	records, err := h.reader.List(c.Request.Context(), skip, limit)
	if err != nil {
		utils.Logger.Error("failed to list processed images", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "查询成功",
		"data":    records,
		"skip":    skip,
		"limit":   limit,
	})
}

func (h *ImageHandler) available(c *gin.Context) bool {
	if h.reader != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
		Success: false,
		Message: "未配置数据库，处理记录不可用",
	})
	return false
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

var errOutOfRange = errors.New("value out of range")

func orInvalid(err error) error {
	if err != nil {
		return err
	}
	return errOutOfRange
}
