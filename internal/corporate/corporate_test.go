package corporate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantage-distress-ui/internal/connectors/companieshouse"
	"vantage-distress-ui/internal/demo"
)

type fakeRegistry struct {
	enabled  bool
	profiles map[string]*companieshouse.Profile
	pscs     map[string][]companieshouse.PSC
	charges  map[string]*companieshouse.ChargeList
	failOn   string
}

func (f *fakeRegistry) Enabled() bool { return f.enabled }

func (f *fakeRegistry) Profile(_ context.Context, number string) (*companieshouse.Profile, error) {
	if number == f.failOn {
		return nil, errors.New("upstream exploded")
	}
	p, ok := f.profiles[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", companieshouse.ErrNotFound, number)
	}
	return p, nil
}

func (f *fakeRegistry) Officers(context.Context, string) ([]companieshouse.Officer, error) {
	return nil, nil
}

func (f *fakeRegistry) PSC(_ context.Context, number string) ([]companieshouse.PSC, error) {
	return f.pscs[number], nil
}

func (f *fakeRegistry) Charges(_ context.Context, number string) (*companieshouse.ChargeList, error) {
	return f.charges[number], nil
}

func corporatePSC(name, regNumber, country string) companieshouse.PSC {
	p := companieshouse.PSC{Name: name, Kind: "corporate-entity-person-with-significant-control"}
	p.Identification.RegistrationNumber = regNumber
	p.Identification.CountryRegistered = country
	return p
}

func TestStructure_DemoFallback(t *testing.T) {
	b := NewBuilder(nil, demo.Registry{}, 2)

	s, err := b.Structure(context.Background(), "09234567")
	require.NoError(t, err)
	assert.Equal(t, SourceDemo, s.Source)
	assert.Equal(t, 1, s.Depth)

	root := s.Root
	assert.Equal(t, "SHOREDITCH INDUSTRIAL LTD", root.Name)
	assert.Equal(t, KindCompany, root.Kind)
	require.Len(t, root.Officers, 2, "resigned officers are excluded")
	require.Len(t, root.Owners, 1, "ceased PSCs are excluded")

	shell := root.Owners[0]
	assert.Equal(t, "DEMO0001", shell.CompanyNumber)
	assert.Equal(t, KindCompany, shell.Kind)
	assert.NotEmpty(t, shell.NaturesOfControl)
	require.Len(t, shell.Owners, 1)
	assert.Equal(t, KindCorporateEntity, shell.Owners[0].Kind)
	assert.Contains(t, shell.Owners[0].Flags, "offshore")

	assert.True(t, s.Signals.AccountsOverdue)
	assert.True(t, s.Signals.HasCharges)
	assert.True(t, s.Signals.OffshoreOwnership)
	assert.False(t, s.Signals.Dissolved)
	assert.False(t, s.Signals.Insolvent)
	assert.Equal(t, "20-22 Wenlock Road, London, N1 7GU", root.Address)
}

func TestStructure_StatusSignals(t *testing.T) {
	cases := []struct {
		status    string
		dissolved bool
		insolvent bool
	}{
		{"active", false, false},
		{"dissolved", true, false},
		{"liquidation", false, true},
		{"Administration", false, true},
		{"voluntary-arrangement", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			reg := &fakeRegistry{
				enabled: true,
				profiles: map[string]*companieshouse.Profile{
					"00000001": {CompanyNumber: "00000001", CompanyName: "ALPHA LTD", CompanyStatus: tc.status},
				},
			}
			s, err := NewBuilder(reg, nil, 2).Structure(context.Background(), "00000001")
			require.NoError(t, err)
			assert.Equal(t, tc.dissolved, s.Signals.Dissolved)
			assert.Equal(t, tc.insolvent, s.Signals.Insolvent)
			assert.Empty(t, s.Root.Address)
		})
	}
}

func TestStructure_DepthLimit(t *testing.T) {
	b := NewBuilder(nil, demo.Registry{}, 0)

	s, err := b.Structure(context.Background(), "09234567")
	require.NoError(t, err)
	require.Len(t, s.Root.Owners, 1)
	shell := s.Root.Owners[0]
	assert.Equal(t, KindCorporateEntity, shell.Kind)
	assert.Contains(t, shell.Flags, "depth_limit")
	assert.Empty(t, shell.Owners)
}

func TestStructure_CircularOwnership(t *testing.T) {
	reg := &fakeRegistry{
		enabled: true,
		profiles: map[string]*companieshouse.Profile{
			"00000001": {CompanyNumber: "00000001", CompanyName: "ALPHA LTD"},
			"00000002": {CompanyNumber: "00000002", CompanyName: "BETA LTD"},
		},
		pscs: map[string][]companieshouse.PSC{
			"00000001": {corporatePSC("BETA LTD", "2", "England")},
			"00000002": {corporatePSC("ALPHA LTD", "00000001", "England")},
		},
	}
	b := NewBuilder(reg, demo.Registry{}, 5)

	s, err := b.Structure(context.Background(), "00000001")
	require.NoError(t, err)
	assert.Equal(t, SourceRegistry, s.Source)

	beta := s.Root.Owners[0]
	assert.Equal(t, "BETA LTD", beta.Name)
	require.Len(t, beta.Owners, 1)
	assert.Contains(t, beta.Owners[0].Flags, "circular_ownership")
	assert.False(t, s.Signals.OffshoreOwnership)
}

func TestStructure_ParentLookupFailures(t *testing.T) {
	reg := &fakeRegistry{
		enabled: true,
		profiles: map[string]*companieshouse.Profile{
			"00000001": {CompanyNumber: "00000001", CompanyName: "ALPHA LTD"},
		},
		pscs: map[string][]companieshouse.PSC{
			"00000001": {
				corporatePSC("MISSING LTD", "00000009", "England"),
				corporatePSC("BROKEN LTD", "00000008", "England"),
			},
		},
		failOn: "00000008",
	}
	b := NewBuilder(reg, nil, 3)

	s, err := b.Structure(context.Background(), "00000001")
	require.NoError(t, err)
	require.Len(t, s.Root.Owners, 2)
	assert.Contains(t, s.Root.Owners[0].Flags, "not_in_registry")
	assert.Contains(t, s.Root.Owners[1].Flags, "lookup_failed")
}

func TestStructure_RootNotFound(t *testing.T) {
	reg := &fakeRegistry{enabled: true}
	b := NewBuilder(reg, nil, 2)

	_, err := b.Structure(context.Background(), "00000001")
	assert.ErrorIs(t, err, companieshouse.ErrNotFound)
}

func TestBuilder_NoSource(t *testing.T) {
	b := NewBuilder(&fakeRegistry{enabled: false}, nil, 2)
	_, err := b.Charges(context.Background(), "00000001")
	assert.ErrorIs(t, err, companieshouse.ErrDisabled)
}

func TestCharges_DemoTimeline(t *testing.T) {
	b := NewBuilder(nil, demo.Registry{}, 2)

	c, err := b.Charges(context.Background(), "07345678")
	require.NoError(t, err)
	assert.Equal(t, "07345678", c.CompanyNumber)
	assert.Equal(t, ChargeSummary{Total: 3, Outstanding: 1, Satisfied: 1, PartSatisfied: 1}, c.Summary)
	assert.True(t, c.Distressed)

	require.Len(t, c.Timeline, 4)
	assert.Equal(t, "2021-11-02", c.Timeline[0].Date)
	assert.Equal(t, "created", c.Timeline[0].Event)
	assert.Equal(t, []string{"Arrow Bridging Finance Ltd"}, c.Timeline[0].PersonsEntitled)
	assert.Equal(t, "2018-07-01", c.Timeline[2].Date)
	assert.Equal(t, "satisfied", c.Timeline[2].Event)
	assert.Equal(t, "2015-03-12", c.Timeline[3].Date)
}

func TestBuildCharges_EmptyAndNil(t *testing.T) {
	c := BuildCharges(nil)
	assert.NotNil(t, c.Charges)
	assert.NotNil(t, c.Timeline)
	assert.False(t, c.Distressed)

	c = BuildCharges(&companieshouse.ChargeList{})
	assert.Zero(t, c.Summary.Total)
}

func TestDossier(t *testing.T) {
	b := NewBuilder(nil, demo.Registry{}, 2)

	d, err := b.Dossier(context.Background(), "08123456")
	require.NoError(t, err)
	require.NotNil(t, d.Structure)
	require.NotNil(t, d.Charges)
	assert.Equal(t, "HOLLYBUSH PROPERTIES LIMITED", d.Structure.Root.Name)
	assert.Equal(t, 3, d.Charges.Summary.Total)
}

func TestDossier_PropagatesError(t *testing.T) {
	b := NewBuilder(&fakeRegistry{enabled: true, charges: map[string]*companieshouse.ChargeList{}}, nil, 2)

	_, err := b.Dossier(context.Background(), "00000001")
	assert.ErrorIs(t, err, companieshouse.ErrNotFound)
}
