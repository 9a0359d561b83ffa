package render

import (
	"bytes"
	"context"
	"image/jpeg"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"report-composer-go/models"
)

func TestHTMLRendersFields(t *testing.T) {
	page, err := HTML(models.ReportFields{
		Date:     "2026년 10월 19일 3주차",
		Type:     "보충",
		Teacher:  "홍정욱T",
		Name:     "박지우",
		Grade:    "초6",
		Progress: "분수의 나눗셈",
	})
	require.NoError(t, err)

	s := string(page)
	assert.Contains(t, s, `id="report"`)
	assert.Contains(t, s, "담당교사 : 홍정욱T")
	assert.Contains(t, s, "초6 박지우 학습보고서")
	assert.Contains(t, s, "분수의 나눗셈")
	assert.Equal(t, 1, strings.Count(s, `<td class="mark">O</td>`), "only the 보충 box is marked")
}

func TestHTMLEscapesFreeText(t *testing.T) {
	page, err := HTML(models.ReportFields{Name: "a", Notes: `<script>alert(1)</script>`})
	require.NoError(t, err)
	assert.NotContains(t, string(page), "<script>")
	assert.Contains(t, string(page), "&lt;script&gt;")
}

// Needs a local Chrome: REPORT_COMPOSER_CHROME=/usr/bin/chromium go test ./render
func TestRodSurfaceCapturesJPEG(t *testing.T) {
	bin := os.Getenv("REPORT_COMPOSER_CHROME")
	if bin == "" {
		t.Skip("REPORT_COMPOSER_CHROME not set")
	}
	ctx := context.Background()
	s, err := NewRodSurface(ctx, BrowserOptions{
		Bin: bin, Headless: true, Width: 900, Height: 1300, PixelRatio: 1, JPEGQuality: 80,
	}, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	page, err := HTML(models.ReportFields{Name: "김하늘", Grade: "초3"})
	require.NoError(t, err)
	require.NoError(t, s.Show(ctx, page))

	img, err := s.Capture(ctx)
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(img))
	assert.NoError(t, err)
}

func TestRodSurfaceWithoutLogger(t *testing.T) {
	bin := os.Getenv("REPORT_COMPOSER_CHROME")
	if bin == "" {
		t.Skip("REPORT_COMPOSER_CHROME not set")
	}
	var s *RodSurface
	require.NotPanics(t, func() {
		var err error
		s, err = NewRodSurface(context.Background(), BrowserOptions{
			Bin: bin, Headless: true, Width: 900, Height: 1300, PixelRatio: 1, JPEGQuality: 80,
		}, nil)
		require.NoError(t, err)
	})
	assert.NoError(t, s.Close())
}
