package render

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontStyle определяет стиль шрифта
type FontStyle string

const (
	FontStyleDefault FontStyle = ""
	FontStyleBold    FontStyle = "bold"
)

// Константы размеров и отступов
const (
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 150
	dayWidth         = 170
	hourHeight       = 60
	dayPaddingX      = 8
	slotBorderRadius = 6.0
	shadowOffset     = 3.0
	minDays          = 1
	maxDays          = 14
)

// Константы шрифтов
const (
	titleFontSize      = 25.0
	dayFontSize        = 22.0
	hourLabelFontSize  = 16.0
	slotTimeFontSize   = 15.0
	legendItemFontSize = 12.0
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	dayOffColor      = color.NRGBA{200, 200, 200, 255}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{220, 220, 220, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	slotFreeColor    = color.RGBA{133, 193, 85, 220}
	slotSingleColor  = color.RGBA{240, 200, 90, 230} // Свободен только один преподаватель
	slotTextColor    = color.RGBA{20, 24, 28, 230}
	slotShadowColor  = color.RGBA{0, 0, 0, 20}
	legendItemColor  = color.RGBA{70, 74, 78, 220}
	legendTitleColor = color.RGBA{90, 95, 100, 220}
)

// Grid описывает сетку картинки: дни и рабочие часы
type Grid struct {
	From      time.Time // Первый день, время игнорируется
	Days      int
	StartHour int
	EndHour   int // Не включительно
	DaysOff   []time.Weekday
	Now       time.Time // Нулевое значение отключает линию текущего времени
}

func (g Grid) normalized() Grid {
	if g.Days < minDays {
		g.Days = minDays
	}
	if g.Days > maxDays {
		g.Days = maxDays
	}
	if g.StartHour < 0 || g.StartHour > 23 {
		g.StartHour = 0
	}
	if g.EndHour <= g.StartHour || g.EndHour > 24 {
		g.EndHour = 24
	}
	g.From = time.Date(g.From.Year(), g.From.Month(), g.From.Day(), 0, 0, 0, 0, g.From.Location())
	return g
}

func (g Grid) isDayOff(d time.Weekday) bool {
	for _, off := range g.DaysOff {
		if off == d {
			return true
		}
	}
	return false
}

var (
	fontsOnce   sync.Once
	parsedFonts = map[FontStyle]*opentype.Font{}
)

// loadFont ставит шрифт нужного стиля, при ошибке откатывается к basicfont
func loadFont(dc *gg.Context, size float64, style FontStyle) {
	fontsOnce.Do(func() {
		if f, err := opentype.Parse(goregular.TTF); err == nil {
			parsedFonts[FontStyleDefault] = f
		}
		if f, err := opentype.Parse(gobold.TTF); err == nil {
			parsedFonts[FontStyleBold] = f
		}
	})

	f, ok := parsedFonts[style]
	if !ok {
		f, ok = parsedFonts[FontStyleDefault]
	}
	if ok {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// AvailabilityImage рисует свободные слоты по дням в PNG.
// slots сгруппированы по ключу даты "2006-01-02", как их отдаёт расчёт доступности.
func AvailabilityImage(slots map[string][]model.Slot, grid Grid) ([]byte, error) {
	grid = grid.normalized()
	hours := grid.EndHour - grid.StartHour

	width := leftLabelsWidth + grid.Days*dayWidth + legendWidth
	height := headerHeight + hours*hourHeight + 20

	dc := gg.NewContext(width, height)
	dc.SetColor(bgColor)
	dc.Clear()

	drawHeader(dc, grid)
	drawHourLabels(dc, grid)

	date := grid.From
	for i := 0; i < grid.Days; i++ {
		x := float64(leftLabelsWidth + i*dayWidth)
		drawDayBackground(dc, x, hours, i, grid.isDayOff(date.Weekday()))
		drawDayHeader(dc, date, x)
		drawHourLines(dc, x, hours)
		for _, slot := range slots[date.Format("2006-01-02")] {
			drawSlot(dc, slot, x, grid)
		}
		date = date.AddDate(0, 0, 1)
	}

	drawCurrentTimeLine(dc, grid)
	drawLegend(dc, grid)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawHeader рисует заголовок с диапазоном дат
func drawHeader(dc *gg.Context, grid Grid) {
	last := grid.From.AddDate(0, 0, grid.Days-1)
	title := "Свободное время: " + grid.From.Format("02.01") + " - " + last.Format("02.01")

	loadFont(dc, titleFontSize, FontStyleBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, float64(leftLabelsWidth), float64(headerHeight)/4, 0, 0.5)
}

// drawHourLabels рисует колонку с часами слева
func drawHourLabels(dc *gg.Context, grid Grid) {
	loadFont(dc, hourLabelFontSize, FontStyleDefault)
	dc.SetColor(hourLabelColor)
	for h := grid.StartHour; h <= grid.EndHour; h++ {
		y := float64(headerHeight + (h-grid.StartHour)*hourHeight)
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", h), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x float64, hours, dayIndex int, dayOff bool) {
	switch {
	case dayOff:
		dc.SetColor(dayOffColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, headerHeight, dayWidth, float64(hours*hourHeight))
	dc.Fill()
}

// drawDayHeader рисует дату и день недели
func drawDayHeader(dc *gg.Context, date time.Time, x float64) {
	loadFont(dc, dayFontSize, FontStyleBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Format("02.01"), x+dayWidth/2, headerHeight, 0.5, -1)
	dc.DrawStringAnchored(weekdayShort(date.Weekday()), x+dayWidth/2, headerHeight, 0.5, -0.2)
}

func drawHourLines(dc *gg.Context, x float64, hours int) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)
	for i := 0; i <= hours; i++ {
		y := float64(headerHeight + i*hourHeight)
		dc.DrawLine(x, y, x+dayWidth, y)
		dc.Stroke()
	}
}

// drawSlot рисует один свободный слот
func drawSlot(dc *gg.Context, slot model.Slot, x float64, grid Grid) {
	start := hourOf(slot.StartTime)
	end := hourOf(slot.EndTime)
	if slot.EndTime.Day() != slot.StartTime.Day() {
		end = 24
	}
	if end <= float64(grid.StartHour) || start >= float64(grid.EndHour) {
		return
	}

	y := float64(headerHeight) + (start-float64(grid.StartHour))*hourHeight
	h := (end - start) * hourHeight
	w := float64(dayWidth - dayPaddingX*2)

	fill := slotFreeColor
	if len(slot.ResourceIDs) == 1 {
		fill = slotSingleColor
	}

	dc.SetColor(slotShadowColor)
	dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, y+2+shadowOffset, w, h-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x+dayPaddingX, y+2, w, h-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(darkenColor(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x+dayPaddingX, y+2, w, h-4, slotBorderRadius)
	dc.Stroke()

	loadFont(dc, slotTimeFontSize, FontStyleBold)
	dc.SetColor(slotTextColor)
	label := slot.StartTime.Format("15:04") + "-" + slot.EndTime.Format("15:04")
	dc.DrawStringAnchored(label, x+dayPaddingX+8, y+18, 0, 0)
}

func hourOf(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60.0
}

// darkenColor затемняет цвет на указанный множитель
func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

// drawCurrentTimeLine рисует красную линию текущего времени в колонке сегодняшнего дня
func drawCurrentTimeLine(dc *gg.Context, grid Grid) {
	if grid.Now.IsZero() {
		return
	}
	now := grid.Now.In(grid.From.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayIndex := int(today.Sub(grid.From).Hours() / 24)
	if dayIndex < 0 || dayIndex >= grid.Days {
		return
	}
	h := hourOf(now)
	if h < float64(grid.StartHour) || h > float64(grid.EndHour) {
		return
	}

	x := float64(leftLabelsWidth + dayIndex*dayWidth)
	y := float64(headerHeight) + (h-float64(grid.StartHour))*hourHeight
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2.0)
	dc.DrawLine(x, y, x+dayWidth, y)
	dc.Stroke()
}

// drawLegend рисует легенду справа
func drawLegend(dc *gg.Context, grid Grid) {
	x := float64(leftLabelsWidth+grid.Days*dayWidth) + 15
	y := float64(headerHeight) + 10

	loadFont(dc, legendItemFontSize, FontStyleBold)
	dc.SetColor(legendTitleColor)
	dc.DrawStringAnchored("Обозначения", x, y, 0, 0.5)
	y += 18

	items := []struct {
		Label string
		Clr   color.Color
	}{
		{"Несколько", slotFreeColor},
		{"Один", slotSingleColor},
		{"Выходной", dayOffColor},
	}

	const boxW, boxH = 20.0, 14.0
	for _, item := range items {
		dc.SetColor(item.Clr)
		dc.DrawRoundedRectangle(x, y, boxW, boxH, 3)
		dc.Fill()

		loadFont(dc, legendItemFontSize, FontStyleDefault)
		dc.SetColor(legendItemColor)
		dc.DrawStringAnchored(item.Label, x+boxW+8, y+boxH/2+1, 0, 0.2)
		y += boxH + 14
	}
}

func weekdayShort(d time.Weekday) string {
	return [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}[d]
}
