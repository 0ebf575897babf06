package console

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/loopmarked/dashboard/internal/chat"
)

var (
	headerStyle  = color.New(color.BgBlack, color.FgGreen)
	selfStyle    = color.New(color.FgCyan)
	otherStyle   = color.New(color.FgGreen)
	offerStyle   = color.New(color.FgYellow, color.OpBold)
	pendingStyle = color.New(color.FgGray)
	errorStyle   = color.New(color.FgRed)
)

// printer turns successive views into an append-only transcript: a line
// per new message, plus a line when a message fails or recovers.
type printer struct {
	conversationID string
	seen           map[string]chat.Status
	failed         map[string]bool
}

func newPrinter() *printer {
	p := &printer{}
	p.reset()
	return p
}

func (p *printer) reset() {
	p.conversationID = ""
	p.seen = make(map[string]chat.Status)
	p.failed = make(map[string]bool)
}

func (p *printer) print(out io.Writer, v chat.View) {
	if v.State == chat.StateIdle {
		if p.conversationID != "" {
			fmt.Fprintln(out, headerStyle.Sprint("-- conversation closed --"))
		}
		p.reset()
		return
	}

	if v.ConversationID != p.conversationID {
		p.reset()
		p.conversationID = v.ConversationID
		fmt.Fprintln(out, headerStyle.Sprintf("-- conversation %s --", v.ConversationID))
	}
	if v.State == chat.StateLoading {
		return
	}

	for _, m := range v.Messages {
		key := messageKey(m)
		prev, known := p.seen[key]
		p.seen[key] = m.Status

		switch {
		case !known:
			fmt.Fprintln(out, formatLine(m))
		case prev != chat.StatusFailed && m.Status == chat.StatusFailed:
			p.failed[key] = true
			fmt.Fprintln(out, errorStyle.Sprintf("   not delivered: %s (/retry or /discard)", m.PrimaryText))
		case m.Status == chat.StatusSent && p.failed[key]:
			delete(p.failed, key)
			fmt.Fprintln(out, pendingStyle.Sprintf("   delivered: %s", m.PrimaryText))
		}
	}
}

func messageKey(m chat.DisplayMessage) string {
	if m.ClientRef != "" {
		return m.ClientRef
	}
	return "id:" + strconv.FormatInt(m.ID, 10)
}

func formatLine(m chat.DisplayMessage) string {
	stamp := m.CreatedAt.Local().Format("15:04")
	if m.Status == chat.StatusPending {
		stamp = "--:--"
	}

	who, style := "them", otherStyle
	if m.Alignment == chat.AlignSelf {
		who, style = "you", selfStyle
	}

	body := m.PrimaryText
	switch {
	case m.Variant == chat.VariantOffer:
		body = offerStyle.Sprintf("offer %s", m.PrimaryText)
	case m.Err != nil:
		body += pendingStyle.Sprint(" (unreadable offer)")
	}

	line := fmt.Sprintf("[%s] %s: %s", stamp, style.Sprint(who), body)
	switch m.Status {
	case chat.StatusPending:
		line += pendingStyle.Sprint(" ...")
	case chat.StatusFailed:
		line += errorStyle.Sprint(" (failed)")
	}
	return line
}

// writeSummaries prints the conversation list as a table numbered for /open.
func writeSummaries(out io.Writer, summaries []chat.Summary) {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "no conversations yet, start one with /new <listing> <seller>")
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "With", "Listing", "Last message", "Updated"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for i, s := range summaries {
		table.Append([]string{
			strconv.Itoa(i + 1),
			s.Counterpart.Name,
			s.ListingTitle,
			s.Preview,
			s.Conversation.UpdatedAt.Local().Format("Jan 2 15:04"),
		})
	}
	table.Render()
}
