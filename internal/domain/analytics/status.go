// internal/domain/analytics/status.go
package analytics

import "strings"

// ColorToken names a chart color. The admin UI maps tokens to its theme.
type ColorToken string

const (
	ColorBlue    ColorToken = "blue"
	ColorIndigo  ColorToken = "indigo"
	ColorAmber   ColorToken = "amber"
	ColorTeal    ColorToken = "teal"
	ColorGreen   ColorToken = "green"
	ColorRed     ColorToken = "red"
	ColorDefault ColorToken = "gray"
)

// Hex returns the reference hex value for the token.
func (c ColorToken) Hex() string {
	switch c {
	case ColorBlue:
		return "#3b82f6"
	case ColorIndigo:
		return "#6366f1"
	case ColorAmber:
		return "#f59e0b"
	case ColorTeal:
		return "#14b8a6"
	case ColorGreen:
		return "#22c55e"
	case ColorRed:
		return "#ef4444"
	default:
		return "#9ca3af"
	}
}

// Lead statuses in the order the dashboard declares them.
const (
	StatusNew        = "NEW"
	StatusContacted  = "CONTACTED"
	StatusInProgress = "IN_PROGRESS"
	StatusQualified  = "QUALIFIED"
	StatusConverted  = "CONVERTED"
	StatusLost       = "LOST"
)

// StatusOrder is the canonical lead status order.
var StatusOrder = []string{
	StatusNew,
	StatusContacted,
	StatusInProgress,
	StatusQualified,
	StatusConverted,
	StatusLost,
}

// palette is keyed by display label (underscores already replaced),
// upper-cased.
var palette = map[string]ColorToken{
	"NEW":         ColorBlue,
	"CONTACTED":   ColorIndigo,
	"IN PROGRESS": ColorAmber,
	"QUALIFIED":   ColorTeal,
	"CONVERTED":   ColorGreen,
	"LOST":        ColorRed,
}

// PaletteEntry is one row of the static palette.
type PaletteEntry struct {
	Status string     `json:"status"`
	Color  ColorToken `json:"color"`
	Hex    string     `json:"hex"`
}

// Palette returns the static status palette in canonical order, followed by
// the default token under the status "*".
func Palette() []PaletteEntry {
	out := make([]PaletteEntry, 0, len(StatusOrder)+1)
	for _, s := range StatusOrder {
		c := ColorFor(s)
		out = append(out, PaletteEntry{Status: s, Color: c, Hex: c.Hex()})
	}
	return append(out, PaletteEntry{Status: "*", Color: ColorDefault, Hex: ColorDefault.Hex()})
}

// StatusLabel turns a raw status into its display label ("IN_PROGRESS" →
// "IN PROGRESS"). Case is preserved.
func StatusLabel(status string) string {
	return strings.ReplaceAll(status, "_", " ")
}

// ColorFor looks up a status case-insensitively; unknown statuses get
// ColorDefault.
func ColorFor(status string) ColorToken {
	if c, ok := palette[strings.ToUpper(StatusLabel(status))]; ok {
		return c
	}
	return ColorDefault
}

// AggregateStatuses converts status counts into a chart series, one entry
// per input status, in input order.
func AggregateStatuses(counts []StatusCount) []CategorySeriesEntry {
	out := make([]CategorySeriesEntry, len(counts))
	for i, sc := range counts {
		out[i] = CategorySeriesEntry{
			Label: StatusLabel(sc.Status),
			Count: sc.Count,
			Color: ColorFor(sc.Status),
		}
	}
	return out
}
