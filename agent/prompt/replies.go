package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"
)

//go:embed template/*.tmpl
var templateFS embed.FS

// Reply names one scheduling prompt template.
type Reply string

const (
	ReplyAskDate          Reply = "ask_date"
	ReplyDateUnclear      Reply = "date_unclear"
	ReplyNoAvailability   Reply = "no_availability"
	ReplyOfferSlots       Reply = "offer_slots"
	ReplyTimeUnclear      Reply = "time_unclear"
	ReplyAskProduct       Reply = "ask_product"
	ReplyConfirmed        Reply = "confirmed"
	ReplySlotTaken        Reply = "slot_taken"
	ReplySlotTakenDayFull Reply = "slot_taken_day_full"
	ReplyCommitFailed     Reply = "commit_failed"
	ReplyAbandoned        Reply = "abandoned"
)

// ReplyData feeds the templates. Slots holds labels only; counts never
// reach customer-facing text.
type ReplyData struct {
	Name    string
	Date    string
	Time    string
	Slots   []string
	Product string
	Staff   string
}

// Replies renders the embedded reply templates. Safe for concurrent use.
type Replies struct {
	tmpl *template.Template
}

func LoadReplies() (*Replies, error) {
	tmpl, err := template.New("replies").
		Option("missingkey=error").
		Funcs(template.FuncMap{"list": HumanList}).
		ParseFS(templateFS, "template/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse reply templates: %w", err)
	}
	return &Replies{tmpl: tmpl}, nil
}

func MustLoadReplies() *Replies {
	r, err := LoadReplies()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Replies) Render(reply Reply, data ReplyData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, string(reply)+".tmpl", data); err != nil {
		return "", fmt.Errorf("render %s: %w", reply, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// HumanList joins items the Portuguese way: "a", "a ou b", "a, b ou c".
func HumanList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " ou " + items[len(items)-1]
	}
}

var weekdaysPT = [...]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

// FormatDate renders a calendar date as "terça-feira, 20/10".
func FormatDate(d time.Time) string {
	return fmt.Sprintf("%s, %02d/%02d", weekdaysPT[d.Weekday()], d.Day(), int(d.Month()))
}
