package service

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func fill(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

func TestParseHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hex     string
		alpha   uint8
		want    color.NRGBA
		wantErr bool
	}{
		{name: "红色", hex: "ff0000", alpha: 255, want: color.NRGBA{R: 255, A: 255}},
		{name: "大写", hex: "3B82F6", alpha: 128, want: color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 128}},
		{name: "白色", hex: "ffffff", alpha: 0, want: color.NRGBA{R: 255, G: 255, B: 255}},
		{name: "带井号", hex: "#ff0000", wantErr: true},
		{name: "太短", hex: "fff", wantErr: true},
		{name: "空", hex: "", wantErr: true},
		{name: "非十六进制", hex: "gg0000", wantErr: true},
		{name: "符号", hex: "+f0000", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseHex(tt.hex, tt.alpha)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidColor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirection(t *testing.T) {
	t.Parallel()

	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Horizontal, d)

	d, err = ParseDirection("Vertical")
	require.NoError(t, err)
	assert.Equal(t, Vertical, d)
	assert.Equal(t, "vertical", d.String())

	_, err = ParseDirection("diagonal")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestLinearGradient_Endpoints(t *testing.T) {
	t.Parallel()

	start := color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 255}
	end := color.NRGBA{R: 0xec, G: 0x48, B: 0x99, A: 255}

	tests := []struct {
		name string
		dir  Direction
		size image.Point
	}{
		{name: "水平", dir: Horizontal, size: image.Pt(10, 4)},
		{name: "垂直", dir: Vertical, size: image.Pt(4, 10)},
		{name: "水平单列", dir: Horizontal, size: image.Pt(1, 5)},
		{name: "垂直单行", dir: Vertical, size: image.Pt(5, 1)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := LinearGradient{Start: start, End: end, Direction: tt.dir}
			img := g.Render(tt.size)
			require.Equal(t, tt.size, img.Bounds().Size())

			last := tt.size.X - 1
			n := tt.size.X
			if tt.dir == Vertical {
				last = tt.size.Y - 1
				n = tt.size.Y
			}

			at := func(i int) color.NRGBA {
				if tt.dir == Vertical {
					return img.NRGBAAt(0, i)
				}
				return img.NRGBAAt(i, 0)
			}

			assert.Equal(t, start, at(0))
			if n > 1 {
				assert.Equal(t, end, at(last))
			}

			// 垂直于变化轴的方向颜色不变
			if tt.dir == Vertical {
				assert.Equal(t, img.NRGBAAt(0, last), img.NRGBAAt(tt.size.X-1, last))
			} else {
				assert.Equal(t, img.NRGBAAt(last, 0), img.NRGBAAt(last, tt.size.Y-1))
			}
		})
	}
}

func TestLinearGradient_Constant(t *testing.T) {
	t.Parallel()

	c := color.NRGBA{R: 10, G: 200, B: 77, A: 255}
	g := LinearGradient{Start: c, End: c}
	for i := 0; i < 7; i++ {
		assert.Equal(t, c, g.ColorAt(i, 7))
	}
}

func TestLinearGradient_Interior(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end uint8
		i, n       int
		want       uint8
	}{
		{name: "0→90 第7/10", start: 0, end: 90, i: 7, n: 11, want: 63},
		{name: "0→55 第3/11", start: 0, end: 55, i: 3, n: 12, want: 15},
		{name: "1→7 第4/6", start: 1, end: 7, i: 4, n: 7, want: 5},
		{name: "255→0 第1/3", start: 255, end: 0, i: 1, n: 4, want: 170},
		{name: "200→100 中点", start: 200, end: 100, i: 1, n: 3, want: 150},
		{name: "10→11 中点向下取整", start: 10, end: 11, i: 1, n: 3, want: 10},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := LinearGradient{
				Start: color.NRGBA{R: tt.start, G: tt.start, B: tt.start, A: tt.start},
				End:   color.NRGBA{R: tt.end, G: tt.end, B: tt.end, A: tt.end},
			}
			want := color.NRGBA{R: tt.want, G: tt.want, B: tt.want, A: tt.want}
			assert.Equal(t, want, g.ColorAt(tt.i, tt.n))
		})
	}
}

func TestLinearGradient_ExactTruncation(t *testing.T) {
	t.Parallel()

	for _, n := range []int{2, 3, 7, 11, 12, 100, 257, 600} {
		for _, a := range []int{0, 1, 37, 128, 254, 255} {
			for _, b := range []int{0, 3, 90, 200, 255} {
				g := LinearGradient{Start: color.NRGBA{R: uint8(a)}, End: color.NRGBA{R: uint8(b)}}
				for i := 0; i < n; i++ {
					want := uint8((a*(n-1-i) + b*i) / (n - 1))
					if got := g.ColorAt(i, n).R; got != want {
						t.Fatalf("a=%d b=%d i=%d n=%d: got %d, want %d", a, b, i, n, got, want)
					}
				}
			}
		}
	}
}

func TestLinearGradient_Monotonic(t *testing.T) {
	t.Parallel()

	start := color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 255}
	end := color.NRGBA{R: 0xec, G: 0x48, B: 0x99, A: 40}

	channels := func(c color.NRGBA) [4]int {
		return [4]int{int(c.R), int(c.G), int(c.B), int(c.A)}
	}
	s, e := channels(start), channels(end)

	for _, dir := range []Direction{Horizontal, Vertical} {
		dir := dir
		t.Run(dir.String(), func(t *testing.T) {
			t.Parallel()

			const length = 97
			size := image.Pt(length, 3)
			if dir == Vertical {
				size = image.Pt(3, length)
			}
			img := LinearGradient{Start: start, End: end, Direction: dir}.Render(size)

			at := func(i, across int) color.NRGBA {
				if dir == Vertical {
					return img.NRGBAAt(across, i)
				}
				return img.NRGBAAt(i, across)
			}

			for across := 0; across < 3; across++ {
				prev := channels(at(0, across))
				for i := 1; i < length; i++ {
					cur := channels(at(i, across))
					for k := range cur {
						if e[k] >= s[k] {
							require.GreaterOrEqual(t, cur[k], prev[k], "channel %d at %d", k, i)
						} else {
							require.LessOrEqual(t, cur[k], prev[k], "channel %d at %d", k, i)
						}
					}
					prev = cur
				}
				assert.Equal(t, end, at(length-1, across))
			}
		})
	}
}

func TestBackgrounds_RenderSize(t *testing.T) {
	t.Parallel()

	bgImage := encodeTestPNG(t, fill(7, 3, color.NRGBA{B: 255, A: 255}))
	sizes := []image.Point{{1, 1}, {1, 9}, {9, 1}, {32, 17}}
	backgrounds := map[string]Background{
		"纯色":  SolidBackground{Color: color.NRGBA{R: 255, A: 255}},
		"渐变":  GradientBackground{Gradient: LinearGradient{Start: color.NRGBA{A: 255}, End: color.NRGBA{R: 255, A: 255}}},
		"图片":  ImageBackground{Data: bgImage},
		"半透明": WithOpacity(SolidBackground{Color: color.NRGBA{G: 255, A: 255}}, 128),
	}

	for name, bg := range backgrounds {
		for _, size := range sizes {
			img, err := bg.Render(size)
			require.NoError(t, err, name)
			assert.Equal(t, size, img.Bounds().Size(), name)
		}
	}
}

func TestImageBackground_SameSizeKeepsPixels(t *testing.T) {
	t.Parallel()

	src := fill(5, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	img, err := ImageBackground{Data: encodeTestPNG(t, src)}.Render(image.Pt(5, 5))
	require.NoError(t, err)
	assert.Equal(t, src.Pix, img.Pix)
}

func TestImageBackground_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ImageBackground{Data: []byte("nope")}.Render(image.Pt(3, 3))
	assert.Error(t, err)
}

func TestWithOpacity(t *testing.T) {
	t.Parallel()

	solid := SolidBackground{Color: color.NRGBA{R: 255, A: 255}}
	assert.Equal(t, solid, WithOpacity(solid, 255))

	img, err := WithOpacity(solid, 128).Render(image.Pt(2, 2))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 128}, img.NRGBAAt(1, 1))

	img, err = WithOpacity(solid, 0).Render(image.Pt(2, 2))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).A)
}

func TestComposite(t *testing.T) {
	t.Parallel()

	bg := fill(4, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	t.Run("不透明前景原样保留", func(t *testing.T) {
		fg := fill(4, 3, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		out, err := Composite(fg, bg)
		require.NoError(t, err)
		assert.Equal(t, fg.Pix, out.Pix)
	})

	t.Run("透明前景露出背景", func(t *testing.T) {
		fg := fill(4, 3, color.NRGBA{R: 200, G: 100, B: 50, A: 0})
		out, err := Composite(fg, bg)
		require.NoError(t, err)
		assert.Equal(t, bg.Pix, out.Pix)
	})

	t.Run("半透明混合", func(t *testing.T) {
		fg := fill(4, 3, color.NRGBA{R: 255, A: 51})
		out, err := Composite(fg, fill(4, 3, color.NRGBA{B: 255, A: 255}))
		require.NoError(t, err)
		assert.Equal(t, color.NRGBA{R: 51, B: 204, A: 255}, out.NRGBAAt(2, 1))
	})

	t.Run("透明背景", func(t *testing.T) {
		fg := fill(1, 1, color.NRGBA{R: 255, A: 128})
		out, err := Composite(fg, fill(1, 1, color.NRGBA{}))
		require.NoError(t, err)
		assert.Equal(t, color.NRGBA{R: 255, A: 128}, out.NRGBAAt(0, 0))
	})

	t.Run("尺寸不一致", func(t *testing.T) {
		_, err := Composite(fill(2, 2, color.NRGBA{}), bg)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})
}

func TestCheckPixels(t *testing.T) {
	t.Parallel()

	data := encodeTestPNG(t, fill(10, 10, color.NRGBA{A: 255}))

	assert.NoError(t, CheckPixels(data, 0))
	assert.NoError(t, CheckPixels(data, 100))

	err := CheckPixels(data, 99)
	assert.True(t, IsValidation(err))

	err = CheckPixels([]byte("garbage"), 100)
	require.Error(t, err)
	assert.False(t, IsValidation(err))
}

func TestDecodeAndEncode(t *testing.T) {
	t.Parallel()

	src := fill(3, 2, color.NRGBA{R: 9, G: 8, B: 7, A: 100})
	img, err := Decode(encodeTestPNG(t, src), 0)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, img.Pix)

	out, err := EncodePNG(img)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), out[:4])
}

func TestProcessingError(t *testing.T) {
	t.Parallel()

	err := failed(StageComposite, ErrSizeMismatch)
	var pe *ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageComposite, pe.Stage)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, "composite: "+ErrSizeMismatch.Error(), err.Error())

	ve := Invalid("bad %s", "input")
	assert.Same(t, ve, failed(StageDecode, ve))
	assert.Nil(t, failed(StageDecode, nil))
}
