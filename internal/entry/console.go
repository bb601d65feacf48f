// Package entry is the interactive terminal client: it drives a form
// session against the record store and prints the ledger after every
// change.
package entry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"condivise/internal/core"
	"condivise/internal/form"
	"condivise/internal/gateway"
	"condivise/internal/log"
	"condivise/internal/prefs"
)

// Remote is the record store as seen by the console. *gateway.Client
// satisfies it.
type Remote interface {
	form.Gateway
	List(ctx context.Context) (gateway.Ledger, error)
}

var _ Remote = (*gateway.Client)(nil)

type Console struct {
	in     *bufio.Scanner
	out    io.Writer
	remote Remote
	store  *prefs.Store
	prefs  prefs.Preferences
	ledger gateway.Ledger

	session *form.Session
	logger  *log.Logger
}

type Option func(*Console)

func WithLogger(l *log.Logger) Option {
	return func(c *Console) { c.logger = l }
}

// New loads the preferences and opens a closed form session.
func New(remote Remote, store *prefs.Store, in io.Reader, out io.Writer, opts ...Option) (*Console, error) {
	c := &Console{
		in:     bufio.NewScanner(in),
		out:    out,
		remote: remote,
		store:  store,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	p, err := store.Load()
	if err != nil {
		return nil, err
	}
	c.prefs = p
	c.session = form.NewSession(remote,
		form.WithRefresher(form.RefreshFunc(c.Refresh)),
		form.WithLogger(c.logger))
	return c, nil
}

// Ledger is the view from the last successful refresh.
func (c *Console) Ledger() gateway.Ledger { return c.ledger }

// Refresh re-fetches and prints the ledger.
func (c *Console) Refresh(ctx context.Context) error {
	l, err := c.remote.List(ctx)
	if err != nil {
		return err
	}
	c.ledger = l
	c.printLedger()
	return nil
}

// Run reads commands until quit or end of input.
func (c *Console) Run(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.printf("Could not load expenses: %v\n", c.shown(err))
	}
	c.printHelp()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := c.ask("command", "")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToLower(cmd) {
		case "", "help", "?":
			c.printHelp()
		case "list", "ls":
			if err := c.Refresh(ctx); err != nil {
				c.printf("Could not load expenses: %v\n", c.shown(err))
			}
		case "add", "new":
			err = c.add(ctx)
		case "edit":
			err = c.edit(ctx, arg)
		case "delete", "rm":
			err = c.remove(ctx, arg)
		case "names":
			err = c.names()
		case "quit", "exit", "q":
			return nil
		default:
			c.printf("Unknown command %q\n", cmd)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) add(ctx context.Context) error {
	if err := c.session.OpenCreate(); err != nil {
		c.printf("%v\n", err)
		return nil
	}
	return c.fillAndSubmit(ctx)
}

func (c *Console) edit(ctx context.Context, arg string) error {
	rec, ok := c.find(arg)
	if !ok {
		return nil
	}
	if err := c.session.OpenEdit(rec); err != nil {
		c.printf("%v\n", err)
		return nil
	}
	return c.fillAndSubmit(ctx)
}

func (c *Console) remove(ctx context.Context, arg string) error {
	rec, ok := c.find(arg)
	if !ok {
		return nil
	}
	var readErr error
	deleted, err := c.session.Delete(ctx, rec.ID, form.Confirm{
		Delete: func(_ context.Context, id int64) bool {
			yes, err := c.confirm(fmt.Sprintf("Are you sure you want to delete expense %d?", id), false)
			readErr = err
			return yes
		},
	})
	if readErr != nil {
		return readErr
	}
	switch {
	case err != nil:
		c.printf("Delete failed: %v\n", c.shown(err))
	case deleted:
		c.printf("Expense %d deleted\n", rec.ID)
	}
	return nil
}

func (c *Console) names() error {
	p1, err := c.ask("Name for "+prefs.DefaultPerson1Name, c.prefs.Person1Name)
	if err != nil {
		return err
	}
	p2, err := c.ask("Name for "+prefs.DefaultPerson2Name, c.prefs.Person2Name)
	if err != nil {
		return err
	}
	c.prefs.SetNames(p1, p2)
	if err := c.store.Save(c.prefs); err != nil {
		c.printf("Could not save names: %v\n", err)
	}
	return nil
}

// find resolves an id argument against the last fetched ledger.
func (c *Console) find(arg string) (core.ExpenseRecord, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		c.printf("Give the expense id, e.g. \"edit 3\"\n")
		return core.ExpenseRecord{}, false
	}
	for _, rec := range c.ledger.Records {
		if rec.ID == id {
			return rec, true
		}
	}
	c.printf("No expense with id %d in the list\n", id)
	return core.ExpenseRecord{}, false
}

// fillAndSubmit prompts for every field and submits until the store
// accepts the draft or the user gives up.
func (c *Console) fillAndSubmit(ctx context.Context) error {
	for {
		if err := c.fill(); err != nil {
			_ = c.session.Cancel()
			return err
		}
		var readErr error
		id, err := c.session.Submit(ctx, form.Confirm{
			Imbalance: func(_ context.Context, sum, total core.Money) bool {
				yes, err := c.confirm(form.ImbalancePrompt(sum, total), false)
				readErr = err
				return yes
			},
		})
		if readErr != nil {
			_ = c.session.Cancel()
			return readErr
		}
		if err == nil {
			c.printf("Expense %d saved\n", id)
			return nil
		}

		var missing *form.MissingFieldsError
		switch {
		case errors.As(err, &missing):
			c.printf("Please fill in: %s\n", strings.TrimPrefix(missing.Error(), "missing required fields: "))
		case errors.Is(err, form.ErrImbalanceDeclined):
			c.printf("Adjust the shares and try again\n")
		default:
			c.printf("Could not save: %v\n", c.shown(err))
		}
		again, rerr := c.confirm("Edit again?", true)
		if rerr != nil || !again {
			_ = c.session.Cancel()
			return rerr
		}
	}
}

// fill walks the draft fields. Blank input keeps the shown value.
func (c *Console) fill() error {
	d := c.session.Draft()

	for {
		v, err := c.ask("Date (YYYY-MM-DD)", dateOrBlank(d.Date))
		if err != nil {
			return err
		}
		if v == "" {
			break
		}
		date, err := core.ParseDate(v)
		if err != nil {
			c.printf("%v\n", err)
			continue
		}
		_ = c.session.SetDate(date)
		break
	}

	text := []struct {
		label string
		cur   string
		set   func(string) error
	}{
		{"Description", d.Description, c.session.SetDescription},
		{"Category", d.Category, c.session.SetCategory},
		{"Payment mode", d.PaymentMode, c.session.SetPaymentMode},
	}
	for _, f := range text {
		v, err := c.ask(f.label, f.cur)
		if err != nil {
			return err
		}
		_ = f.set(v)
	}

	if err := c.askPaidBy(d.PaidBy); err != nil {
		return err
	}
	if err := c.askMoney("Total amount", d.Total, c.session.SetTotal); err != nil {
		return err
	}

	equal, err := c.confirm("Split equally?", c.session.SplitLocked())
	if err != nil {
		return err
	}
	_ = c.session.SetEqualSplit(equal)
	if !equal {
		cur := c.session.Draft()
		if err := c.askMoney("Share of "+c.prefs.Label(core.Person1), cur.Share1, c.session.SetShare1); err != nil {
			return err
		}
		if err := c.askMoney("Share of "+c.prefs.Label(core.Person2), cur.Share2, c.session.SetShare2); err != nil {
			return err
		}
	}

	cur := c.session.Draft()
	b := c.session.Balance()
	c.printf("Shares: %s %s, %s %s (remaining %s)\n",
		c.prefs.Label(core.Person1), cur.Share1,
		c.prefs.Label(core.Person2), cur.Share2,
		b.Remaining)
	return nil
}

func (c *Console) askPaidBy(cur core.Participant) error {
	def := ""
	if cur.Valid() {
		def = c.prefs.Label(cur)
	}
	for {
		v, err := c.ask(fmt.Sprintf("Paid by (1 = %s, 2 = %s)",
			c.prefs.Label(core.Person1), c.prefs.Label(core.Person2)), def)
		if err != nil {
			return err
		}
		if v == "" {
			return nil
		}
		if p, ok := c.participant(v); ok {
			_ = c.session.SetPaidBy(p)
			return nil
		}
		c.printf("Answer 1 or 2\n")
	}
}

// participant accepts 1/2, the wire names or the display names.
func (c *Console) participant(v string) (core.Participant, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", strings.ToLower(c.prefs.Label(core.Person1)):
		return core.Person1, true
	case "2", strings.ToLower(c.prefs.Label(core.Person2)):
		return core.Person2, true
	}
	p, err := core.ParseParticipant(v)
	return p, err == nil
}

func (c *Console) askMoney(label string, cur core.Money, set func(core.Money) error) error {
	for {
		v, err := c.ask(label, cur.String())
		if err != nil {
			return err
		}
		m, err := core.ParseAmount(v)
		if err != nil {
			c.printf("%v\n", err)
			continue
		}
		return set(m)
	}
}

// ask prints a prompt and returns the trimmed answer. A blank answer
// returns def.
func (c *Console) ask(label, def string) (string, error) {
	if def != "" {
		c.printf("%s [%s]: ", label, def)
	} else {
		c.printf("%s: ", label)
	}
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	v := strings.TrimSpace(c.in.Text())
	if v == "" {
		return def, nil
	}
	return v, nil
}

func (c *Console) confirm(question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	v, err := c.ask(question+" ("+hint+")", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(v) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return def, nil
	}
}

func (c *Console) printLedger() {
	if len(c.ledger.Records) == 0 {
		c.printf("No expenses yet\n")
		return
	}
	p1, p2 := c.prefs.Label(core.Person1), c.prefs.Label(core.Person2)
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "ID\tDate\tDescription\tCategory\tPayment\tTotal\tPaid by\t%s\t%s\t\n", p1, p2)
	for _, r := range c.ledger.Records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.ID, r.Date, r.Description, r.Category, r.PaymentMode,
			r.Total, c.prefs.Label(r.PaidBy), r.Share1, r.Share2)
	}
	_ = tw.Flush()

	s := c.ledger.Summary
	c.printf("%d expenses, total %s. Paid: %s %s, %s %s. Shares: %s %s, %s %s\n",
		s.Count, s.Total.StringFixed(2),
		p1, s.Person1Spent.StringFixed(2), p2, s.Person2Spent.StringFixed(2),
		p1, s.Person1Total.StringFixed(2), p2, s.Person2Total.StringFixed(2))
}

func (c *Console) printHelp() {
	c.printf("Commands: list, add, edit <id>, delete <id>, names, quit\n")
}

// shown reduces transport failures to the bare connection error; the
// underlying cause only goes to the log.
func (c *Console) shown(err error) error {
	if errors.Is(err, gateway.ErrConnection) {
		c.logger.Warn("store unreachable", "error", err)
		return gateway.ErrConnection
	}
	return err
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func dateOrBlank(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
