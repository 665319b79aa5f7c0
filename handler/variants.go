package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/TIANLI0/ShipKit/model"
	"github.com/TIANLI0/ShipKit/service"
	"github.com/TIANLI0/ShipKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// SSE 事件名
const (
	eventStatus   = "status"
	eventVariant  = "variant"
	eventError    = "error"
	eventComplete = "complete"
)

type sseEvent struct {
	name    string
	payload any
}

type VariantHandler struct {
	cfg     *config.Config
	encoder *service.Encoder
}

func NewVariantHandler(cfg *config.Config) *VariantHandler {
	return &VariantHandler{
		cfg: cfg,
		encoder: service.NewEncoder(
			cfg.Optimizer.MinQuality,
			cfg.Optimizer.MaxQuality,
			cfg.Optimizer.FallbackQuality,
		),
	}
}

// Generate 切分网格并以 SSE 推送每个变体
func (h *VariantHandler) Generate(c *gin.Context) {
	file, err := c.FormFile("grid")
	if err != nil {
		badRequest(c, "请上传网格图片", err)
		return
	}

	layout, err := service.LayoutByName(c.DefaultPostForm("layout", h.cfg.Variants.DefaultLayout))
	if err != nil {
		badRequest(c, "不支持的网格布局", err)
		return
	}

	opts := service.VariantOptionsFromConfig(&h.cfg.Variants)
	window, err := parseWindow(c, opts.Window)
	if err != nil {
		badRequest(c, "min_kb/max_kb 参数无效", err)
		return
	}
	opts.Window = window

	data, ok := readUpload(c, file, h.cfg.Upload)
	if !ok {
		return
	}
	if h.cfg.Variants.SeedMode == "content" {
		opts.Seed = utils.ContentSeed(data)
	}

	runID := utils.NewRunID()
	logger := utils.Logger.With(zap.String("run_id", runID))
	generator := service.NewVariantGenerator(opts, h.encoder, logger)

	tiles, err := generator.SplitGrid(data, layout)
	if err != nil {
		badRequest(c, "无法解析网格图片", err)
		return
	}

	specs := service.Specs(layout)
	events := make(chan sseEvent, len(specs)+2)

	go h.run(c.Request.Context(), generator, tiles, specs, runID, events, logger)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(ev.name, ev.payload)
		return true
	})
}

// run 用 errgroup 并发生成变体；请求结束后不再调度新的变体。
// events 的容量足以容纳全部事件，发送不会阻塞。
func (h *VariantHandler) run(ctx context.Context, generator *service.VariantGenerator, tiles []gocv.Mat, specs []service.VariantSpec, runID string, events chan<- sseEvent, logger *zap.Logger) {
	defer close(events)
	defer func() {
		for _, t := range tiles {
			t.Close()
		}
	}()

	total := len(specs)
	events <- sseEvent{eventStatus, model.StatusEvent{
		Stage:    "generating",
		Progress: 0,
		Message:  fmt.Sprintf("generating %d variants", total),
		RunID:    runID,
	}}

	var completed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, h.cfg.Variants.MaxConcurrent))

	for _, spec := range specs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			v, err := generator.GenerateVariant(tiles[spec.TileIndex], spec)
			if err != nil {
				failed.Add(1)
				logger.Warn("variant failed",
					zap.Int("index", spec.GlobalIndex),
					zap.String("variant_type", spec.VariantType),
					zap.Error(err))
				events <- sseEvent{eventError, model.VariantErrorEvent{
					Message:     err.Error(),
					Recoverable: true,
					Index:       spec.GlobalIndex,
				}}
				return nil
			}

			done := int(completed.Add(1))
			events <- sseEvent{eventVariant, model.VariantEvent{
				VariantInfo: v.VariantInfo,
				SizeBytes:   len(v.Data),
				Quality:     v.Quality,
				Image:       base64.StdEncoding.EncodeToString(v.Data),
				Completed:   done,
				Total:       total,
			}}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		logger.Info("variant generation cancelled",
			zap.Int64("completed", completed.Load()),
			zap.Int("total", total))
	}

	events <- sseEvent{eventComplete, model.CompleteEvent{
		Total:      total,
		Successful: int(completed.Load()),
		Failed:     int(failed.Load()),
	}}
}

func parseWindow(c *gin.Context, def service.ByteWindow) (service.ByteWindow, error) {
	win := def
	if raw := c.PostForm("min_kb"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return win, err
		}
		win.Min = v * 1024
	}
	if raw := c.PostForm("max_kb"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return win, err
		}
		win.Max = v * 1024
	}
	if win.Min < 0 || win.Max <= 0 || win.Min > win.Max {
		return win, fmt.Errorf("invalid window %d-%d KB", win.Min/1024, win.Max/1024)
	}
	return win, nil
}
