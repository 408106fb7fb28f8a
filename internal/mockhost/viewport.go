package mockhost

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
)

// Viewport render at full size before max_size scaling.
const (
	viewportWidth  = 1920
	viewportHeight = 1080
)

func (s *Scene) getViewportScreenshot(params map[string]any) (any, error) {
	var p struct {
		MaxSize  int    `mapstructure:"max_size"`
		Filepath string `mapstructure:"filepath"`
		Format   string `mapstructure:"format"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Filepath == "" {
		return nil, errors.New("No filepath provided")
	}
	if p.Format != "" && p.Format != "png" {
		return nil, fmt.Errorf("Unsupported format: %s", p.Format)
	}
	if p.MaxSize <= 0 {
		p.MaxSize = 800
	}

	width, height := viewportWidth, viewportHeight
	if width > p.MaxSize {
		height = height * p.MaxSize / width
		width = p.MaxSize
	}

	f, err := os.Create(p.Filepath)
	if err != nil {
		return nil, fmt.Errorf("cannot write screenshot: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, s.renderViewport(width, height)); err != nil {
		return nil, fmt.Errorf("cannot encode screenshot: %v", err)
	}

	return map[string]any{
		"success":  true,
		"width":    width,
		"height":   height,
		"filepath": p.Filepath,
	}, nil
}

// renderViewport draws a stand-in viewport: the default grey gradient
// with one colored marker per object, placed from its X and Z location
// so moved objects show up in a different spot.
func (s *Scene) renderViewport(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		shade := uint8(60 - 14*y/height)
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{shade, shade, shade + 4, 255})
		}
	}

	for _, obj := range s.Objects {
		if !obj.Visible {
			continue
		}
		var c color.RGBA
		switch obj.Type {
		case "MESH":
			c = color.RGBA{224, 138, 56, 255}
		case "CAMERA":
			c = color.RGBA{90, 120, 220, 255}
		case "LIGHT":
			c = color.RGBA{240, 220, 110, 255}
		default:
			c = color.RGBA{200, 200, 200, 255}
		}
		cx := width/2 + int(obj.Location[0]*float64(width)/20)
		cy := height/2 - int(obj.Location[2]*float64(height)/20)
		r := height / 40
		if r < 2 {
			r = 2
		}
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				if x >= 0 && x < width && y >= 0 && y < height {
					img.Set(x, y, c)
				}
			}
		}
	}
	return img
}
