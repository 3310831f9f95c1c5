// Package corporate assembles ownership trees and charge timelines for a company dossier.
package corporate

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"vantage-distress-ui/internal/connectors/companieshouse"
)

// Registry is the subset of the Companies House client the builder needs.
type Registry interface {
	Enabled() bool
	Profile(ctx context.Context, number string) (*companieshouse.Profile, error)
	Officers(ctx context.Context, number string) ([]companieshouse.Officer, error)
	PSC(ctx context.Context, number string) ([]companieshouse.PSC, error)
	Charges(ctx context.Context, number string) (*companieshouse.ChargeList, error)
}

// NodeKind classifies nodes in the ownership tree.
type NodeKind string

const (
	KindCompany         NodeKind = "company"
	KindCorporateEntity NodeKind = "corporate-entity"
	KindIndividual      NodeKind = "individual"
	KindOfficer         NodeKind = "officer"
)

const (
	SourceRegistry = "companies_house"
	SourceDemo     = "demo"
)

// Node is one entity in the ownership tree. Owners and officers hang off the company they relate to.
type Node struct {
	Name             string   `json:"name"`
	Kind             NodeKind `json:"kind"`
	CompanyNumber    string   `json:"company_number,omitempty"`
	Status           string   `json:"status,omitempty"`
	Role             string   `json:"role,omitempty"`
	Jurisdiction     string   `json:"jurisdiction,omitempty"`
	Address          string   `json:"registered_office,omitempty"`
	NaturesOfControl []string `json:"natures_of_control,omitempty"`
	Flags            []string `json:"flags,omitempty"`
	Owners           []*Node  `json:"owners,omitempty"`
	Officers         []*Node  `json:"officers,omitempty"`
}

// Signals are distress indicators gathered while walking the tree.
type Signals struct {
	AccountsOverdue   bool `json:"accounts_overdue"`
	HasCharges        bool `json:"has_charges"`
	OffshoreOwnership bool `json:"offshore_ownership"`
	Dissolved         bool `json:"dissolved"`
	Insolvent         bool `json:"insolvent"`
}

// insolventStatuses are registry company statuses for a company in a formal insolvency process.
var insolventStatuses = map[string]bool{
	"liquidation":            true,
	"administration":         true,
	"receivership":           true,
	"insolvency-proceedings": true,
	"voluntary-arrangement":  true,
}

// Structure is the corporate-ownership tree for one company.
type Structure struct {
	CompanyNumber string  `json:"company_number"`
	Source        string  `json:"source"`
	Depth         int     `json:"depth"`
	Root          *Node   `json:"root"`
	Signals       Signals `json:"signals"`
}

// Builder resolves structures and charges against a registry, falling back to demo data.
type Builder struct {
	registry Registry
	fallback Registry
	maxDepth int
}

// NewBuilder returns a Builder. When registry is nil or disabled, fallback is used instead.
func NewBuilder(registry, fallback Registry, maxDepth int) *Builder {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Builder{registry: registry, fallback: fallback, maxDepth: maxDepth}
}

func (b *Builder) source() (Registry, string, error) {
	if b.registry != nil && b.registry.Enabled() {
		return b.registry, SourceRegistry, nil
	}
	if b.fallback != nil {
		return b.fallback, SourceDemo, nil
	}
	return nil, "", companieshouse.ErrDisabled
}

// Structure builds the ownership tree rooted at number, walking corporate owners upward.
func (b *Builder) Structure(ctx context.Context, number string) (*Structure, error) {
	reg, source, err := b.source()
	if err != nil {
		return nil, err
	}

	w := &walker{registry: reg, maxDepth: b.maxDepth, visited: map[string]bool{}}
	root, err := w.company(ctx, number, 0)
	if err != nil {
		return nil, err
	}
	return &Structure{
		CompanyNumber: number,
		Source:        source,
		Depth:         w.deepest,
		Root:          root,
		Signals:       w.signals,
	}, nil
}

type walker struct {
	registry Registry
	maxDepth int
	visited  map[string]bool
	deepest  int
	signals  Signals
}

func (w *walker) company(ctx context.Context, number string, depth int) (*Node, error) {
	w.visited[number] = true
	if depth > w.deepest {
		w.deepest = depth
	}

	var (
		profile  *companieshouse.Profile
		officers []companieshouse.Officer
		pscs     []companieshouse.PSC
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = w.registry.Profile(gctx, number)
		return err
	})
	g.Go(func() error {
		var err error
		officers, err = w.registry.Officers(gctx, number)
		return err
	})
	g.Go(func() error {
		var err error
		pscs, err = w.registry.PSC(gctx, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	node := &Node{
		Name:          profile.CompanyName,
		Kind:          KindCompany,
		CompanyNumber: profile.CompanyNumber,
		Status:        profile.CompanyStatus,
		Jurisdiction:  profile.Jurisdiction,
		Address:       profile.RegisteredOfficeAddress.String(),
	}
	if node.CompanyNumber == "" {
		node.CompanyNumber = number
	}
	if profile.Accounts.Overdue {
		node.Flags = append(node.Flags, "accounts_overdue")
		w.signals.AccountsOverdue = true
	}
	if profile.HasCharges {
		node.Flags = append(node.Flags, "has_charges")
		if depth == 0 {
			w.signals.HasCharges = true
		}
	}
	status := strings.ToLower(strings.TrimSpace(profile.CompanyStatus))
	if status == "dissolved" {
		w.signals.Dissolved = true
	}
	if insolventStatuses[status] {
		w.signals.Insolvent = true
	}

	for _, o := range officers {
		if !o.Active() {
			continue
		}
		node.Officers = append(node.Officers, &Node{Name: o.Name, Kind: KindOfficer, Role: o.OfficerRole})
	}

	for _, p := range pscs {
		if !p.Active() {
			continue
		}
		owner, err := w.owner(ctx, p, depth)
		if err != nil {
			return nil, err
		}
		node.Owners = append(node.Owners, owner)
	}
	return node, nil
}

func (w *walker) owner(ctx context.Context, p companieshouse.PSC, depth int) (*Node, error) {
	if !p.Corporate() {
		return &Node{Name: p.Name, Kind: KindIndividual, NaturesOfControl: p.NaturesOfControl}, nil
	}

	leaf := &Node{
		Name:             p.Name,
		Kind:             KindCorporateEntity,
		Jurisdiction:     p.Identification.CountryRegistered,
		NaturesOfControl: p.NaturesOfControl,
	}
	if isOffshore(p.Identification.CountryRegistered) {
		leaf.Flags = append(leaf.Flags, "offshore")
		w.signals.OffshoreOwnership = true
	}

	regNumber, err := companieshouse.NormalizeNumber(p.Identification.RegistrationNumber)
	if err != nil {
		return leaf, nil
	}
	leaf.CompanyNumber = regNumber
	if w.visited[regNumber] {
		leaf.Flags = append(leaf.Flags, "circular_ownership")
		return leaf, nil
	}
	if depth+1 > w.maxDepth {
		leaf.Flags = append(leaf.Flags, "depth_limit")
		return leaf, nil
	}

	parent, err := w.company(ctx, regNumber, depth+1)
	if err != nil {
		if errors.Is(err, companieshouse.ErrNotFound) {
			leaf.Flags = append(leaf.Flags, "not_in_registry")
			return leaf, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		leaf.Flags = append(leaf.Flags, "lookup_failed")
		return leaf, nil
	}
	parent.NaturesOfControl = p.NaturesOfControl
	return parent, nil
}

var onshore = map[string]bool{
	"":                  true,
	"england":           true,
	"england and wales": true,
	"england & wales":   true,
	"wales":             true,
	"scotland":          true,
	"northern ireland":  true,
	"united kingdom":    true,
	"uk":                true,
}

func isOffshore(country string) bool {
	return !onshore[strings.ToLower(strings.TrimSpace(country))]
}
