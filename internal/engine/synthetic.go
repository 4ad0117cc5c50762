// Package engine holds the style-transfer engine implementations: a client for
// a remote inference service and a deterministic in-process engine used for
// development and tests.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"time"

	"github.com/rs/zerolog"

	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
)

// Synthetic blends the style image over the content image. It reports a
// decaying loss curve so the rest of the pipeline behaves as with a real
// engine.
type Synthetic struct {
	stepDelay time.Duration
	logger    *infra.Logger
}

// NewSynthetic returns a synthetic engine that pauses stepDelay between
// iterations.
func NewSynthetic(stepDelay time.Duration, logger *infra.Logger) *Synthetic {
	if logger == nil {
		l := infra.Logger(zerolog.Nop())
		logger = &l
	}
	return &Synthetic{stepDelay: stepDelay, logger: logger}
}

func (s *Synthetic) Run(ctx context.Context, in domain.EngineInput, sink domain.ProgressSink) (domain.EngineResult, error) {
	if err := in.Content.CheckDimensions(); err != nil {
		return domain.EngineResult{}, fmt.Errorf("content image: %w", err)
	}
	if err := in.Style.CheckDimensions(); err != nil {
		return domain.EngineResult{}, fmt.Errorf("style image: %w", err)
	}
	content, _, err := image.Decode(bytes.NewReader(in.Content.Data))
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("decode content image: %w", err)
	}
	style, _, err := image.Decode(bytes.NewReader(in.Style.Data))
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("decode style image: %w", err)
	}

	steps := in.Params.NumSteps
	if steps <= 0 {
		steps = domain.DefaultNumSteps
	}
	best := math.Inf(1)
	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return domain.EngineResult{}, err
		}
		if s.stepDelay > 0 {
			time.Sleep(s.stepDelay)
		}
		styleLoss, contentLoss := syntheticLosses(i, steps, in.Params)
		best = math.Min(best, styleLoss+contentLoss)
		sink(domain.ProgressEvent{
			Iteration:   i,
			TotalSteps:  steps,
			StyleLoss:   styleLoss,
			ContentLoss: contentLoss,
		})
	}

	out := blend(content, style, styleRatio(in.Params))
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return domain.EngineResult{}, fmt.Errorf("encode result: %w", err)
	}

	s.logger.Debug().
		Int("steps", steps).
		Int("width", out.Bounds().Dx()).
		Int("height", out.Bounds().Dy()).
		Msg("engine: synthetic run finished")

	return domain.EngineResult{
		Image:    domain.Artifact{Filename: "result.png", MIME: "image/png", Data: buf.Bytes()},
		BestLoss: best,
	}, nil
}

// syntheticLosses follows an exponential decay for style and a slow rise for
// content, scaled by the configured weights.
func syntheticLosses(i, steps int, p domain.TransferParams) (float64, float64) {
	t := float64(i) / float64(steps)
	styleLoss := 1000 * math.Exp(-4*t) * math.Max(p.StyleWeight, 1) / domain.DefaultStyleWeight
	contentLoss := 10 * (1 - math.Exp(-3*t)) * math.Max(p.ContentWeight, 0.01)
	return styleLoss, contentLoss
}

// styleRatio is 0.5 for the default weights and moves towards 1 as the style
// weight dominates.
func styleRatio(p domain.TransferParams) float64 {
	sw := math.Max(p.StyleWeight, 0)
	cw := math.Max(p.ContentWeight, 0) * domain.DefaultStyleWeight
	if sw+cw == 0 {
		return 0.5
	}
	return sw / (sw + cw)
}

// blend samples style at the content's resolution (nearest neighbour) and
// mixes the two with weight ratio.
func blend(content, style image.Image, ratio float64) *image.RGBA {
	cb := content.Bounds()
	sb := style.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, cb.Dx(), cb.Dy()))
	draw.Draw(out, out.Bounds(), content, cb.Min, draw.Src)

	for y := 0; y < cb.Dy(); y++ {
		sy := sb.Min.Y + y*sb.Dy()/max(cb.Dy(), 1)
		for x := 0; x < cb.Dx(); x++ {
			sx := sb.Min.X + x*sb.Dx()/max(cb.Dx(), 1)
			c := out.RGBAAt(x, y)
			sr, sg, sbl, sa := style.At(sx, sy).RGBA()
			out.SetRGBA(x, y, color.RGBA{
				R: mix(c.R, uint8(sr>>8), ratio),
				G: mix(c.G, uint8(sg>>8), ratio),
				B: mix(c.B, uint8(sbl>>8), ratio),
				A: mix(c.A, uint8(sa>>8), ratio),
			})
		}
	}
	return out
}

func mix(a, b uint8, ratio float64) uint8 {
	v := float64(a)*(1-ratio) + float64(b)*ratio
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}
