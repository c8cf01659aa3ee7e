package tgui

import (
	"html"
	"strings"
)

// H is HTML that is safe to send with ParseMode "HTML".
// Values of type H are already escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func I(s string) H    { return wrap("i", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }

// Join joins safe parts with sep, skipping blank ones.
func Join(sep string, parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) == "" {
			continue
		}
		ss = append(ss, p.String())
	}
	return H(strings.Join(ss, sep))
}

// Doc accumulates lines of safe HTML.
type Doc struct {
	lines []string
}

// Line appends parts joined by a single space. An empty call adds a blank line.
func (d *Doc) Line(parts ...H) *Doc {
	d.lines = append(d.lines, Join(" ", parts...).String())
	return d
}

// Text appends an escaped plain-text line.
func (d *Doc) Text(s string) *Doc {
	d.lines = append(d.lines, html.EscapeString(s))
	return d
}

func (d *Doc) String() string { return strings.Join(d.lines, "\n") }
