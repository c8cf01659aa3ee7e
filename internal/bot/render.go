package bot

import (
	"fmt"
	"time"

	"routinebot/internal/routine"
	"routinebot/pkg/tgui"
)

var statusMark = map[routine.Status]string{
	routine.StatusPast:     "✅",
	routine.StatusCurrent:  "▶️",
	routine.StatusUpcoming: "▫️",
}

func dayTitle(d routine.Day) tgui.H {
	name := d.Name
	if name == "" {
		name = d.BabyID
	}
	title := tgui.Join(" · ", tgui.B(name), tgui.Esc(d.Date), tgui.Join(" ", tgui.Esc("rule"), tgui.Code(d.RuleID)))
	if d.Overridden {
		title = tgui.Join(" ", title, tgui.I("(edited)"))
	}
	return title
}

func spanText(s routine.Span) string {
	return routine.FormatClock(s.Start) + "–" + routine.FormatClock(s.End)
}

// renderDay lists every phase. When now is non-nil the phases are marked
// past/current/upcoming against it.
func renderDay(d routine.Day, now *time.Time) string {
	var doc tgui.Doc
	doc.Line(dayTitle(d))
	doc.Line()

	var status map[int]routine.Status
	if now != nil {
		status = d.Projection.Classify(*now)
	}
	for _, it := range d.Items {
		span := d.Projection.Spans[it.Order]
		if it.Activity == routine.ActivityYourTime {
			doc.Line(tgui.Esc("      ↳"), tgui.I(it.Label))
			continue
		}
		mark := ""
		if status != nil {
			mark = statusMark[status[it.Order]]
		}
		doc.Line(tgui.Esc(mark), tgui.Code(fmt.Sprintf("#%d", it.Order)), tgui.Esc(spanText(span)), tgui.Esc(it.Label))
	}
	if len(d.Items) > 0 {
		doc.Line()
		doc.Line(tgui.I("Day ends " + d.Projection.EndClock()))
	}
	return doc.String()
}

// renderNow shows the phase in progress and the one after it.
func renderNow(d routine.Day, now time.Time) string {
	var doc tgui.Doc
	doc.Line(dayTitle(d))

	minute := routine.MinuteOfDay(now)
	cur, ok := d.Projection.CurrentMinute(minute)
	if !ok {
		doc.Text("Nothing scheduled right now.")
	}
	pos := minute
	if minute < d.Projection.Anchor && d.Projection.SpansOvernight {
		pos += routine.MinutesPerDay
	}
	var next *routine.Item
	for i := range d.Items {
		it := d.Items[i]
		if it.Activity == routine.ActivityYourTime {
			continue
		}
		s := d.Projection.Spans[it.Order]
		if ok && it.Order == cur {
			doc.Line(tgui.Esc("Now:"), tgui.B(it.Label), tgui.Esc(spanText(s)), tgui.I(fmt.Sprintf("(%d min left)", s.End-pos)))
			continue
		}
		if next == nil && s.Start > pos {
			next = &d.Items[i]
		}
	}
	if next != nil {
		s := d.Projection.Spans[next.Order]
		doc.Line(tgui.Esc("Next:"), tgui.B(next.Label), tgui.Esc("at "+routine.FormatClock(s.Start)), tgui.I(fmt.Sprintf("(in %d min)", s.Start-pos)))
	} else {
		doc.Text("No more phases today.")
	}
	return doc.String()
}

func renderRules() string {
	var doc tgui.Doc
	doc.Line(tgui.B("Rules"))
	for _, r := range routine.Rules() {
		band := fmt.Sprintf("%d+ weeks", r.MinWeeks)
		if r.MaxWeeks != nil {
			band = fmt.Sprintf("%d–%d weeks", r.MinWeeks, *r.MaxWeeks)
		}
		doc.Line(tgui.Code(r.ID), tgui.Esc(band+", "+fmt.Sprintf("%d naps", len(r.NapMinutes))))
	}
	doc.Line()
	doc.Line(tgui.Esc("Pin one with"), tgui.Code("/rule <id>"), tgui.Esc("or go back to age-based with"), tgui.Code("/rule auto"))
	return doc.String()
}

func renderHelp(cmds []Command) string {
	var doc tgui.Doc
	doc.Line(tgui.B("Commands"))
	for _, c := range cmds {
		doc.Line(tgui.Code(c.Usage), tgui.Esc("- "+c.Description))
	}
	doc.Line()
	doc.Text("[baby] may be a baby id or name; it can be left out when the chat has one baby. [date] is YYYY-MM-DD, today, tomorrow or yesterday.")
	return doc.String()
}

func describeEvent(ev routine.ChangeEvent, typ string, name string) string {
	if name == "" {
		name = ev.BabyID
	}
	var doc tgui.Doc
	switch typ {
	case routine.EventAdjusted:
		doc.Line(tgui.Esc("✏️"), tgui.B(name), tgui.Esc(fmt.Sprintf("phase #%d on %s was adjusted.", ev.Order, ev.Date)))
	case routine.EventAnchorChanged:
		doc.Line(tgui.Esc("⏰"), tgui.B(name), tgui.Esc("now wakes at"), tgui.Code(ev.Value), tgui.Esc("("+ev.Date+" regenerated)."))
	case routine.EventReset:
		doc.Line(tgui.Esc("↩️"), tgui.B(name), tgui.Esc(ev.Date+" was reset to the generated routine."))
	case routine.EventRuleChanged:
		rule := ev.Value
		if rule == "" {
			rule = "auto"
		}
		doc.Line(tgui.Esc("📐"), tgui.B(name), tgui.Esc("now follows rule"), tgui.Code(rule))
	default:
		return ""
	}
	return doc.String()
}
