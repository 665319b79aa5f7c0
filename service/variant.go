package service

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/TIANLI0/ShipKit/model"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// 每个分块生成的变体数
const VariantsPerTile = 5

// 变体类型
const (
	VariantStandard     = "standard"
	VariantHeroCompact  = "hero_compact"
	VariantToneMinimal  = "tone_minimal"
	VariantDynamicAngle = "dynamic_angle"
	VariantPromoSticker = "promo_sticker"
)

// 色调
const (
	ToneWarm = "warm"
	ToneCool = "cool"
)

var variantTypes = [VariantsPerTile]string{
	VariantStandard,
	VariantHeroCompact,
	VariantToneMinimal,
	VariantDynamicAngle,
	VariantPromoSticker,
}

var variantLabels = map[string]string{
	VariantStandard:     "Standard Frame",
	VariantHeroCompact:  "Hero Compact",
	VariantDynamicAngle: "Dynamic Angle",
	VariantPromoSticker: "Promo Sticker",
}

// GridLayout 网格排列
type GridLayout struct {
	Name      string
	Cols      int
	Rows      int
	Width     int
	Height    int
	TileNames []string
}

var (
	Grid2x2 = GridLayout{
		Name: "2x2", Cols: 2, Rows: 2, Width: 1024, Height: 1024,
		TileNames: []string{
			"Hero White Front",
			"Three-Quarter Angle",
			"Lifestyle Scene",
			"Dark Luxury",
		},
	}
	Grid2x3 = GridLayout{
		Name: "2x3", Cols: 2, Rows: 3, Width: 1024, Height: 1536,
		TileNames: []string{
			"Hero White",
			"Styled Neutral Context",
			"Dramatic Light & Detail",
			"Secondary Clean Angle",
			"Dark Luxury Editorial",
			"Floating / Lightness Shot",
		},
	}
)

// LayoutByName 按名称查找布局
func LayoutByName(name string) (GridLayout, error) {
	switch name {
	case Grid2x2.Name:
		return Grid2x2, nil
	case Grid2x3.Name:
		return Grid2x3, nil
	default:
		return GridLayout{}, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
}

func (l GridLayout) TileCount() int {
	return l.Cols * l.Rows
}

// TileName 超出命名范围时返回 "Tile N"
func (l GridLayout) TileName(index int) string {
	if index >= 0 && index < len(l.TileNames) {
		return l.TileNames[index]
	}
	return fmt.Sprintf("Tile %d", index+1)
}

// tileRect 第 index 个分块在网格中的位置，按行优先
func (l GridLayout) tileRect(index int) image.Rectangle {
	tileW := l.Width / l.Cols
	tileH := l.Height / l.Rows
	col := index % l.Cols
	row := index / l.Cols
	return image.Rect(col*tileW, row*tileH, (col+1)*tileW, (row+1)*tileH)
}

// VariantSpec 一个待生成的变体
type VariantSpec struct {
	model.VariantInfo
}

// Specs 按 global_index 顺序列出布局的全部变体
func Specs(layout GridLayout) []VariantSpec {
	specs := make([]VariantSpec, 0, layout.TileCount()*VariantsPerTile)
	for tile := 0; tile < layout.TileCount(); tile++ {
		for v, kind := range variantTypes {
			info := model.VariantInfo{
				TileIndex:    tile,
				VariantIndex: v,
				GlobalIndex:  tile*VariantsPerTile + v,
				VariantType:  kind,
				TileName:     layout.TileName(tile),
				VariantLabel: variantLabels[kind],
			}
			if kind == VariantToneMinimal {
				info.Tone, info.VariantLabel = ToneWarm, "Warm Minimal"
				if tile%2 == 1 {
					info.Tone, info.VariantLabel = ToneCool, "Cool Minimal"
				}
			}
			specs = append(specs, VariantSpec{VariantInfo: info})
		}
	}
	return specs
}

// VariantOptions 变体生成参数
type VariantOptions struct {
	OutputSize    int
	Window        ByteWindow
	ZoomOutFactor float64
	RotationDeg   float64
	Contrast      float64
	Saturation    float64
	Warmth        int
	// Seed 为 0 时每次调用随机取种子
	Seed int64
}

// VariantOptionsFromConfig 由配置构造默认参数
func VariantOptionsFromConfig(cfg *config.VariantsConfig) VariantOptions {
	return VariantOptions{
		OutputSize:    cfg.OutputSize,
		Window:        ByteWindow{Min: cfg.MinKB * 1024, Max: cfg.MaxKB * 1024},
		ZoomOutFactor: cfg.ZoomOutFactor,
		RotationDeg:   cfg.RotationDeg,
		Contrast:      cfg.Contrast,
		Saturation:    cfg.Saturation,
		Warmth:        cfg.Warmth,
	}
}

type transformFunc func(tile gocv.Mat, spec VariantSpec) (gocv.Mat, error)

// VariantGenerator 对网格的每个分块生成五个互相独立的变体
type VariantGenerator struct {
	opts       VariantOptions
	encoder    *Encoder
	logger     *zap.Logger
	transforms map[string]transformFunc
}

func NewVariantGenerator(opts VariantOptions, encoder *Encoder, logger *zap.Logger) *VariantGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if encoder == nil {
		encoder = NewEncoder(20, 95, 75)
	}
	g := &VariantGenerator{
		opts:    opts,
		encoder: encoder,
		logger:  logger,
	}
	g.transforms = map[string]transformFunc{
		VariantStandard:     g.standard,
		VariantHeroCompact:  g.heroCompact,
		VariantToneMinimal:  g.toneMinimal,
		VariantDynamicAngle: g.dynamicAngle,
		VariantPromoSticker: g.promoSticker,
	}
	return g
}

// Options 当前参数
func (g *VariantGenerator) Options() VariantOptions {
	return g.opts
}

// SplitGrid 解码网格并切分为分块，尺寸不符时先缩放到布局尺寸
func (g *VariantGenerator) SplitGrid(data []byte, layout GridLayout) ([]gocv.Mat, error) {
	grid, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || grid.Empty() {
		if err == nil {
			grid.Close()
		}
		return nil, ErrDecode
	}
	defer grid.Close()

	if grid.Cols() != layout.Width || grid.Rows() != layout.Height {
		g.logger.Debug("resizing grid to layout size",
			zap.Int("width", grid.Cols()),
			zap.Int("height", grid.Rows()),
			zap.String("layout", layout.Name))
		resized := gocv.NewMat()
		gocv.Resize(grid, &resized, image.Pt(layout.Width, layout.Height), 0, 0, gocv.InterpolationArea)
		grid.Close()
		grid = resized
	}

	tiles := make([]gocv.Mat, 0, layout.TileCount())
	for i := 0; i < layout.TileCount(); i++ {
		roi := grid.Region(layout.tileRect(i))
		tiles = append(tiles, roi.Clone())
		roi.Close()
	}
	return tiles, nil
}

// GenerateVariant 从未修改的分块生成一个变体；变换中的 panic 转为错误
func (g *VariantGenerator) GenerateVariant(tile gocv.Mat, spec VariantSpec) (variant model.Variant, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("variant %d (%s) panicked: %v", spec.GlobalIndex, spec.VariantType, r)
		}
	}()

	transform, ok := g.transforms[spec.VariantType]
	if !ok {
		return model.Variant{}, fmt.Errorf("unknown variant type %q", spec.VariantType)
	}

	out, err := transform(tile, spec)
	if err != nil {
		return model.Variant{}, fmt.Errorf("variant %d (%s): %w", spec.GlobalIndex, spec.VariantType, err)
	}
	defer out.Close()

	if g.opts.OutputSize > 0 && (out.Cols() != g.opts.OutputSize || out.Rows() != g.opts.OutputSize) {
		resized := gocv.NewMat()
		gocv.Resize(out, &resized, image.Pt(g.opts.OutputSize, g.opts.OutputSize), 0, 0, gocv.InterpolationLanczos4)
		out.Close()
		out = resized
	}

	encoded, err := g.encoder.Encode(out, g.opts.Window)
	if err != nil {
		return model.Variant{}, fmt.Errorf("variant %d (%s): %w", spec.GlobalIndex, spec.VariantType, err)
	}

	return model.Variant{
		VariantInfo:  spec.VariantInfo,
		Data:         encoded.Data,
		Quality:      encoded.Quality,
		WithinTarget: encoded.WithinWindow,
		Dimensions:   model.Dimensions{Width: out.Cols(), Height: out.Rows()},
	}, nil
}

// GenerateAll 按 global_index 顺序逐个生成并回调，回调返回 false 时停止。
// 单个变体失败只记录日志并跳过，返回实际尝试的数量。
func (g *VariantGenerator) GenerateAll(data []byte, layout GridLayout, yield func(model.Variant) bool) (int, error) {
	tiles, err := g.SplitGrid(data, layout)
	if err != nil {
		return 0, err
	}
	defer func() {
		for _, t := range tiles {
			t.Close()
		}
	}()

	attempted := 0
	for _, spec := range Specs(layout) {
		attempted++
		v, err := g.GenerateVariant(tiles[spec.TileIndex], spec)
		if err != nil {
			g.logger.Warn("variant skipped",
				zap.Int("index", spec.GlobalIndex),
				zap.String("variant_type", spec.VariantType),
				zap.Error(err))
			continue
		}
		if !yield(v) {
			break
		}
	}
	return attempted, nil
}

func (g *VariantGenerator) standard(tile gocv.Mat, _ VariantSpec) (gocv.Mat, error) {
	return tile.Clone(), nil
}

// heroCompact 缩小后居中放在背景色画布上
func (g *VariantGenerator) heroCompact(tile gocv.Mat, _ VariantSpec) (gocv.Mat, error) {
	width, height := tile.Cols(), tile.Rows()
	newW := max(1, int(float64(width)*g.opts.ZoomOutFactor))
	newH := max(1, int(float64(height)*g.opts.ZoomOutFactor))

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(tile, &small, image.Pt(newW, newH), 0, 0, gocv.InterpolationArea)

	bg := SampleBackground(tile)
	canvas := gocv.NewMatWithSizeFromScalar(scalarFromColor(bg), height, width, tile.Type())

	x0 := (width - newW) / 2
	y0 := (height - newH) / 2
	roi := canvas.Region(image.Rect(x0, y0, x0+newW, y0+newH))
	small.CopyTo(&roi)
	roi.Close()

	return canvas, nil
}

// toneMinimal 对比度、冷暖偏移、饱和度
func (g *VariantGenerator) toneMinimal(tile gocv.Mat, spec VariantSpec) (gocv.Mat, error) {
	src, err := tile.ToImage()
	if err != nil {
		return gocv.Mat{}, err
	}

	redShift := g.opts.Warmth / 2
	blueShift := -g.opts.Warmth / 3
	if spec.Tone == ToneCool {
		redShift, blueShift = -redShift, -blueShift
	}

	img := imaging.AdjustContrast(src, g.opts.Contrast)
	img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampUint8(int(c.R) + redShift),
			G: c.G,
			B: clampUint8(int(c.B) + blueShift),
			A: c.A,
		}
	})
	img = imaging.AdjustSaturation(img, g.opts.Saturation)

	return gocv.ImageToMatRGB(img)
}

// dynamicAngle 绕中心小角度旋转，露出的角用背景色填充
func (g *VariantGenerator) dynamicAngle(tile gocv.Mat, _ VariantSpec) (gocv.Mat, error) {
	width, height := tile.Cols(), tile.Rows()
	bg := SampleBackground(tile)

	rotation := gocv.GetRotationMatrix2D(image.Pt(width/2, height/2), g.opts.RotationDeg, 1.0)
	defer rotation.Close()

	out := gocv.NewMat()
	gocv.WarpAffineWithParams(tile, &out, rotation, image.Pt(width, height),
		gocv.InterpolationCubic, gocv.BorderConstant, bg)
	return out, nil
}

func (g *VariantGenerator) promoSticker(tile gocv.Mat, spec VariantSpec) (gocv.Mat, error) {
	return applyStickers(tile, g.stickerRand(spec.GlobalIndex))
}

// stickerRand 以 (seed, global_index) 为种子的 PCG 随机源
func (g *VariantGenerator) stickerRand(globalIndex int) *rand.Rand {
	seed := uint64(g.opts.Seed)
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, uint64(globalIndex)))
}

func clampUint8(v int) uint8 {
	return uint8(min(255, max(0, v)))
}
