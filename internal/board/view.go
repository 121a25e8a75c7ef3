package board

import "strconv"

// View is the presentation description of a board for one State.
// It is recomputed on every render and never stored.
type View struct {
	Count    int        `json:"count"`
	Selected int        `json:"selected"`
	Years    []YearView `json:"years"`
}

type YearView struct {
	Year   int         `json:"year"`
	Label  string      `json:"label"`
	Months []MonthView `json:"months"`
}

type MonthView struct {
	Key      string      `json:"key"`
	Label    string      `json:"label"`
	Name     string      `json:"name"`
	Expanded bool        `json:"expanded"`
	Entries  []EntryView `json:"entries"`
}

type EntryView struct {
	Index     int    `json:"index"`
	Anchor    string `json:"anchor"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Date      string `json:"date"`
	DateLabel string `json:"date_label"`
	Selected  bool   `json:"selected"`
}

// View derives the navigator and card list for state s.
func (b *Board) View(s State) View {
	v := View{Count: len(b.entries), Selected: s.Selected}
	for _, y := range b.years {
		yv := YearView{Year: y.Year, Label: strconv.Itoa(y.Year)}
		for _, m := range y.Months {
			mv := MonthView{
				Key:      m.Key.String(),
				Label:    m.Key.Label(),
				Name:     m.Key.Name(),
				Expanded: s.IsExpanded(m.Key),
				Entries:  make([]EntryView, 0, len(m.Entries)),
			}
			for _, ref := range m.Entries {
				mv.Entries = append(mv.Entries, EntryView{
					Index:     ref.Index,
					Anchor:    AnchorID(ref.Index),
					Title:     ref.Entry.Title,
					Content:   ref.Entry.Content,
					Date:      ref.Entry.Date.ISO(),
					DateLabel: ref.Entry.Date.Format("Monday, January 2, 2006"),
					Selected:  ref.Index == s.Selected,
				})
			}
			yv.Months = append(yv.Months, mv)
		}
		v.Years = append(v.Years, yv)
	}
	return v
}
