package layout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Percent is a share of the container width, rendered as a CSS length.
type Percent float64

func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'f', -1, 64) + "%"
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts both "12.5%" and a bare number.
func (p *Percent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var f float64
		if ferr := json.Unmarshal(b, &f); ferr != nil {
			return fmt.Errorf("layout: invalid percent %s", string(b))
		}
		*p = Percent(f)
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return fmt.Errorf("layout: invalid percent %q: %w", s, err)
	}
	*p = Percent(f)
	return nil
}

// Style is the geometry of one card. Top and Height are in minutes
// (one pixel per minute in a full-day column).
type Style struct {
	DisplayType DisplayType `json:"displayType"`
	Top         int         `json:"top"`
	Height      int         `json:"height"`
	Left        Percent     `json:"left"`
	Width       Percent     `json:"width"`
	ZIndex      int         `json:"zIndex"`
	IsDeck      bool        `json:"isDeck"`

	Cluster int `json:"cluster"`
	Column  int `json:"column"`
	Columns int `json:"columns"`
}

// CSS renders the horizontal geometry plus stacking order as an inline
// style fragment.
func (s Style) CSS() string {
	return fmt.Sprintf("top:%dpx;height:%dpx;left:%s;width:%s;z-index:%d",
		s.Top, s.Height, s.Left, s.Width, s.ZIndex)
}

func styleFor(cluster []item, it item, numColumns int, opts Options) Style {
	st := Style{
		Top:     it.start,
		Height:  max(it.duration(), opts.MinHeightMinutes),
		Column:  it.column,
		Columns: numColumns,
	}

	if opts.ContainerWidthPx/float64(numColumns) < opts.MinCardWidthPx {
		left := float64(it.column) * deckStep(numColumns, opts) / opts.ContainerWidthPx * 100
		st.DisplayType = DisplayDeck
		st.Left = Percent(left)
		st.Width = Percent(100 - left)
		st.ZIndex = baseZIndex + it.column
		st.IsDeck = true
		return st
	}

	span := 1
	if opts.Expand {
		span = expandSpan(cluster, it, numColumns)
	}
	st.DisplayType = DisplayColumns
	st.Left = Percent(float64(it.column) / float64(numColumns) * 100)
	st.Width = Percent(100 * float64(span) / float64(numColumns))
	st.ZIndex = baseZIndex
	return st
}

// deckStep is the pixel offset between fanned cards. It shrinks below
// DeckOffsetPx only when the full offset would leave the top card
// narrower than MinCardWidthPx.
func deckStep(numColumns int, opts Options) float64 {
	if numColumns < 2 {
		return opts.DeckOffsetPx
	}
	room := opts.ContainerWidthPx - opts.MinCardWidthPx
	if room <= 0 {
		return 0
	}
	return min(opts.DeckOffsetPx, room/float64(numColumns-1))
}
