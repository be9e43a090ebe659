package resources

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// barcodeBars are the bar widths of the app glyph, alternating bar and gap.
var barcodeBars = []int{2, 1, 1, 1, 3, 1, 1, 2, 2, 1, 1, 1, 3, 1, 2}

var appIconResources = map[fyne.ThemeVariant]fyne.Resource{
	theme.VariantDark:  fyne.NewStaticResource("wedgego_dark_64.svg", barcodeIcon(64, "#f2f2f2")),
	theme.VariantLight: fyne.NewStaticResource("wedgego_light_64.svg", barcodeIcon(64, "#1f1f1f")),
}

var trayIconResources = map[fyne.ThemeVariant]fyne.Resource{
	theme.VariantDark:  fyne.NewStaticResource("wedgego_dark_32.svg", barcodeIcon(32, "#f2f2f2")),
	theme.VariantLight: fyne.NewStaticResource("wedgego_light_32.svg", barcodeIcon(32, "#1f1f1f")),
}

func AppIconResource(variant fyne.ThemeVariant) fyne.Resource {
	if res, ok := appIconResources[variant]; ok {
		return res
	}

	return appIconResources[theme.VariantDark]
}

func TrayIconResource(variant fyne.ThemeVariant) fyne.Resource {
	if res, ok := trayIconResources[variant]; ok {
		return res
	}

	return trayIconResources[theme.VariantDark]
}

// barcodeIcon renders a square SVG barcode glyph on a transparent background.
func barcodeIcon(size int, color string) []byte {
	total := 0
	for _, w := range barcodeBars {
		total += w
	}
	margin := size / 8
	unit := float64(size-2*margin) / float64(total)
	top, height := margin*2, size-margin*4

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, size, size, size, size)
	x := float64(margin)
	for i, w := range barcodeBars {
		width := unit * float64(w)
		if i%2 == 0 {
			fmt.Fprintf(&b, `<rect x="%.2f" y="%d" width="%.2f" height="%d" fill="%s"/>`, x, top, width, height, color)
		}
		x += width
	}
	b.WriteString(`</svg>`)

	return []byte(b.String())
}
