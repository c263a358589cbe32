package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"shiftcal/internal/layout"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/week"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

type pageCard struct {
	ID           string
	Style        template.CSS
	Rider        string
	Label        string
	Type         string
	Status       string
	Deck         bool
	Continuation bool
}

type pageDay struct {
	Date    string
	Weekday string
	Cards   []pageCard
}

type pageData struct {
	Week   week.Week
	Days   []pageDay
	Hours  []pageHour
	Height int
	// ColumnWidth is the day column width in pixels.
	ColumnWidth float64
}

type pageHour struct {
	Label string
	Top   int
}

// handleWeekPage renders the week grid as static HTML. The root element
// carries data-ready="true" so headless captures know rendering is done.
func (s *Server) handleWeekPage(w http.ResponseWriter, r *http.Request) {
	wk, status, err := s.loadWeek(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, "week.html", buildPage(wk, s.layoutOptions().ContainerWidthPx)); err != nil {
		appLog.Error("week page render failed", err)
	}
}

func buildPage(wk week.Week, columnWidth float64) pageData {
	if columnWidth <= 0 {
		columnWidth = layout.DefaultContainerWidthPx
	}
	data := pageData{Week: wk, Height: wk.Height, ColumnWidth: columnWidth}

	for _, d := range wk.Days {
		pd := pageDay{Date: d.Date, Weekday: d.Weekday}
		if len(pd.Weekday) > 3 {
			pd.Weekday = pd.Weekday[:3]
		}
		for _, res := range d.Events {
			sh := res.Payload.Shift
			rider := sh.RiderName
			if rider == "" {
				rider = sh.RiderID
			}
			pd.Cards = append(pd.Cards, pageCard{
				ID:           res.ID,
				Style:        template.CSS(res.Layout.CSS()),
				Rider:        rider,
				Label:        fmt.Sprintf("%s-%s", sh.StartAt.Format("15:04"), sh.EndAt.Format("15:04")),
				Type:         string(sh.Type),
				Status:       string(sh.Status),
				Deck:         res.Layout.IsDeck,
				Continuation: res.Payload.Continuation,
			})
		}
		data.Days = append(data.Days, pd)
	}

	if wk.View == week.ViewPrime {
		for _, h := range []int{12, 13, 14, 15, 19, 20, 21, 22, 23} {
			top, _ := week.PrimeTop(h * 60)
			data.Hours = append(data.Hours, pageHour{Label: hourLabel(h), Top: top})
		}
	} else {
		for h := 0; h < 24; h++ {
			data.Hours = append(data.Hours, pageHour{Label: hourLabel(h), Top: h * 60})
		}
	}
	return data
}

func hourLabel(h int) string {
	return fmt.Sprintf("%02d:00", h)
}
