package models

import (
	"errors"
	"fmt"
)

var ErrInvalidBoundingBox = errors.New("invalid bounding box")

// BoundingBox is an axis-aligned rectangle in image coordinates.
type BoundingBox struct {
	MinX float64 `json:"minX" validate:"gte=0"`
	MaxX float64 `json:"maxX" validate:"gte=0"`
	MinY float64 `json:"minY" validate:"gte=0"`
	MaxY float64 `json:"maxY" validate:"gte=0"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (b BoundingBox) Validate() error {
	if b.MinX > b.MaxX || b.MinY > b.MaxY {
		return fmt.Errorf("%w: min must not exceed max (%v)", ErrInvalidBoundingBox, b)
	}

	return nil
}

// Merge returns the coordinate-wise min/max union of b and other.
func (b BoundingBox) Merge(other BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: min(b.MinX, other.MinX),
		MaxX: max(b.MaxX, other.MaxX),
		MinY: min(b.MinY, other.MinY),
		MaxY: max(b.MaxY, other.MaxY),
	}
}

func (b BoundingBox) Width() float64  { return b.MaxX - b.MinX }
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }
func (b BoundingBox) Area() float64   { return b.Width() * b.Height() }

func (b BoundingBox) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: b.MidY()}
}

func (b BoundingBox) MidY() float64 {
	return (b.MinY + b.MaxY) / 2
}

// UnionAll folds boxes into a single envelope. It returns false for an empty input.
func UnionAll(boxes ...BoundingBox) (BoundingBox, bool) {
	if len(boxes) == 0 {
		return BoundingBox{}, false
	}

	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Merge(b)
	}

	return out, true
}
