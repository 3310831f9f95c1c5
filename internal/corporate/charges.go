package corporate

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"vantage-distress-ui/internal/connectors/companieshouse"
)

// Charge statuses as reported by the registry.
const (
	StatusOutstanding    = "outstanding"
	StatusSatisfied      = "fully-satisfied"
	StatusPartSatisfied  = "part-satisfied"
	StatusSatisfiedShort = "satisfied"
)

// ChargeEntry is a flattened registered charge.
type ChargeEntry struct {
	ChargeCode      string   `json:"charge_code"`
	Classification  string   `json:"classification"`
	Status          string   `json:"status"`
	CreatedOn       string   `json:"created_on,omitempty"`
	DeliveredOn     string   `json:"delivered_on,omitempty"`
	SatisfiedOn     string   `json:"satisfied_on,omitempty"`
	SecuredDetails  string   `json:"secured_details,omitempty"`
	PersonsEntitled []string `json:"persons_entitled"`
}

// TimelineEvent is one dated step in a charge's life.
type TimelineEvent struct {
	Date            string   `json:"date"`
	Event           string   `json:"event"`
	ChargeCode      string   `json:"charge_code"`
	Description     string   `json:"description"`
	PersonsEntitled []string `json:"persons_entitled"`
}

// ChargeSummary counts charges by status.
type ChargeSummary struct {
	Total         int `json:"total"`
	Outstanding   int `json:"outstanding"`
	Satisfied     int `json:"satisfied"`
	PartSatisfied int `json:"part_satisfied"`
}

// Charges is the charges view for one company.
type Charges struct {
	CompanyNumber string          `json:"company_number"`
	Source        string          `json:"source"`
	Summary       ChargeSummary   `json:"summary"`
	Distressed    bool            `json:"distressed"`
	Charges       []ChargeEntry   `json:"charges"`
	Timeline      []TimelineEvent `json:"timeline"`
}

// Dossier combines the structure and charges of one company.
type Dossier struct {
	CompanyNumber string     `json:"company_number"`
	Structure     *Structure `json:"structure"`
	Charges       *Charges   `json:"charges"`
}

// Charges fetches registered charges for number and builds the timeline.
func (b *Builder) Charges(ctx context.Context, number string) (*Charges, error) {
	reg, source, err := b.source()
	if err != nil {
		return nil, err
	}
	list, err := reg.Charges(ctx, number)
	if err != nil {
		return nil, err
	}
	out := BuildCharges(list)
	out.CompanyNumber = number
	out.Source = source
	return out, nil
}

// Dossier fetches structure and charges concurrently.
func (b *Builder) Dossier(ctx context.Context, number string) (*Dossier, error) {
	out := &Dossier{CompanyNumber: number}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := b.Structure(gctx, number)
		out.Structure = s
		return err
	})
	g.Go(func() error {
		c, err := b.Charges(gctx, number)
		out.Charges = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildCharges flattens a registry charge list and orders its timeline newest first.
func BuildCharges(list *companieshouse.ChargeList) *Charges {
	out := &Charges{Charges: []ChargeEntry{}, Timeline: []TimelineEvent{}}
	if list == nil {
		return out
	}

	for _, c := range list.Items {
		entry := ChargeEntry{
			ChargeCode:      c.ChargeCode,
			Classification:  strings.TrimSpace(c.Classification.Description),
			Status:          strings.ToLower(strings.TrimSpace(c.Status)),
			CreatedOn:       c.CreatedOn,
			DeliveredOn:     c.DeliveredOn,
			SatisfiedOn:     c.SatisfiedOn,
			SecuredDetails:  strings.TrimSpace(c.SecuredDetails.Description),
			PersonsEntitled: make([]string, 0, len(c.PersonsEntitled)),
		}
		for _, p := range c.PersonsEntitled {
			if name := strings.TrimSpace(p.Name); name != "" {
				entry.PersonsEntitled = append(entry.PersonsEntitled, name)
			}
		}
		out.Charges = append(out.Charges, entry)

		out.Summary.Total++
		switch entry.Status {
		case StatusSatisfied, StatusSatisfiedShort:
			out.Summary.Satisfied++
		case StatusPartSatisfied:
			out.Summary.PartSatisfied++
		default:
			out.Summary.Outstanding++
		}

		date := entry.CreatedOn
		if date == "" {
			date = entry.DeliveredOn
		}
		if date != "" {
			out.Timeline = append(out.Timeline, TimelineEvent{
				Date:            date,
				Event:           "created",
				ChargeCode:      entry.ChargeCode,
				Description:     entry.Classification,
				PersonsEntitled: entry.PersonsEntitled,
			})
		}
		if entry.SatisfiedOn != "" {
			out.Timeline = append(out.Timeline, TimelineEvent{
				Date:            entry.SatisfiedOn,
				Event:           "satisfied",
				ChargeCode:      entry.ChargeCode,
				Description:     entry.Classification,
				PersonsEntitled: entry.PersonsEntitled,
			})
		}
	}

	// ISO dates order lexically.
	sort.SliceStable(out.Timeline, func(i, j int) bool {
		return out.Timeline[i].Date > out.Timeline[j].Date
	})
	out.Distressed = out.Summary.Outstanding+out.Summary.PartSatisfied > 0
	return out
}
