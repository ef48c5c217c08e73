package transfer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/colornames"
)

// ParseColor accepts "#RGB", "#RRGGBB" or a CSS color name and returns
// RGB channels in [0, 1].
func ParseColor(s string) (mgl32.Vec3, error) {
	x := strings.TrimSpace(s)
	if strings.HasPrefix(x, "#") {
		return parseHex(x[1:])
	}
	nc, ok := colornames.Map[strings.ToLower(x)]
	if !ok {
		return mgl32.Vec3{}, fmt.Errorf("color %q: name not found", s)
	}
	return rgb8(nc.R, nc.G, nc.B), nil
}

// MustParseColor panics on malformed input. For literals only.
func MustParseColor(s string) mgl32.Vec3 {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func parseHex(x string) (mgl32.Vec3, error) {
	v, err := strconv.ParseUint(x, 16, 32)
	if err != nil {
		return mgl32.Vec3{}, fmt.Errorf("color #%s: %w", x, err)
	}
	switch len(x) {
	case 3:
		r, g, b := uint8(v>>8&0xF), uint8(v>>4&0xF), uint8(v&0xF)
		return rgb8(r|r<<4, g|g<<4, b|b<<4), nil
	case 6:
		return rgb8(uint8(v>>16), uint8(v>>8), uint8(v)), nil
	}
	return mgl32.Vec3{}, fmt.Errorf("color #%s: expected 3 or 6 hex digits", x)
}

func rgb8(r, g, b uint8) mgl32.Vec3 {
	return mgl32.Vec3{float32(r) / 255, float32(g) / 255, float32(b) / 255}
}

// FormatColor renders c as "#RRGGBB".
func FormatColor(c mgl32.Vec3) string {
	return fmt.Sprintf("#%02X%02X%02X", quantize(c[0]), quantize(c[1]), quantize(c[2]))
}
