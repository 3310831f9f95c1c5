// Package demo holds the hard-coded records served when live data sources are unavailable.
package demo

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"vantage-distress-ui/internal/connectors/companieshouse"
	"vantage-distress-ui/internal/connectors/epc"
)

const (
	shellHoldingsNumber = "DEMO0001"
	localAuthority      = "E09000003"
)

type demoCompany struct {
	name    string
	created string
	overdue bool
}

var companies = map[string]demoCompany{
	"08123456":          {name: "HOLLYBUSH PROPERTIES LIMITED", created: "2012-06-14"},
	"09234567":          {name: "SHOREDITCH INDUSTRIAL LTD", created: "2014-09-30", overdue: true},
	"07345678":          {name: "BRICK LANE BREWERY ESTATES LTD", created: "2010-08-02", overdue: true},
	shellHoldingsNumber: {name: "VANTAGE SHELL HOLDINGS LTD", created: "2016-01-11", overdue: true},
}

// Assets returns the demo distress list.
func Assets() []epc.Asset {
	return []epc.Asset{
		newAsset("10002341923", "1 Hollybush Place, E2", "E2 9QX", "E", 94, "Warehouse", "HOLLYBUSH PROPERTIES LIMITED", "08123456"),
		newAsset("10008257879", "Unit 4b, Shoreditch", "E1 6JJ", "F", 450, "General Industrial", "SHOREDITCH INDUSTRIAL LTD", "09234567"),
		newAsset("10001234567", "The Old Brewery, Brick Lane", "E1 6QR", "G", 1200, "Retail/Leisure", "BRICK LANE BREWERY ESTATES LTD", "07345678"),
		newAsset("10009876543", "77 Whitechapel Rd", "E1 1BY", "D", 210, "Office", "", ""),
	}
}

func newAsset(uprn, address, postcode, band string, floorArea int64, propertyType, companyName, companyNumber string) epc.Asset {
	a := epc.Asset{
		UPRN:            uprn,
		Address:         address,
		AssetRatingBand: &band,
		FloorArea:       decimal.NewNullDecimal(decimal.NewFromInt(floorArea)),
		PropertyType:    propertyType,
		LocalAuthority:  localAuthority,
		Postcode:        postcode,
	}
	if companyName != "" {
		a.CompanyName = &companyName
	}
	if companyNumber != "" {
		a.CompanyNumber = &companyNumber
	}
	return a
}

// Registry is an in-memory stand-in for the Companies House client.
// Every company number resolves; unknown numbers get a generic mocked profile.
type Registry struct{}

func (Registry) Enabled() bool { return true }

func (Registry) Profile(_ context.Context, number string) (*companieshouse.Profile, error) {
	c, ok := companies[number]
	if !ok {
		c = demoCompany{name: fmt.Sprintf("DEMO COMPANY %s LIMITED", number), created: "2018-04-01"}
	}
	p := &companieshouse.Profile{
		CompanyNumber:  number,
		CompanyName:    c.name,
		CompanyStatus:  "active",
		Type:           "ltd",
		DateOfCreation: c.created,
		Jurisdiction:   "england-wales",
		HasCharges:     number != shellHoldingsNumber,
		RegisteredOfficeAddress: companieshouse.Address{
			AddressLine1: "20-22 Wenlock Road",
			Locality:     "London",
			PostalCode:   "N1 7GU",
		},
	}
	p.Accounts.Overdue = c.overdue
	return p, nil
}

func (Registry) Officers(_ context.Context, number string) ([]companieshouse.Officer, error) {
	if number == shellHoldingsNumber {
		return []companieshouse.Officer{
			{Name: "NOMINEE DIRECTORS (BVI) LIMITED", OfficerRole: "corporate-director", AppointedOn: "2016-01-11"},
		}, nil
	}
	return []companieshouse.Officer{
		{Name: "DOE, Jane", OfficerRole: "director", AppointedOn: "2016-02-01", Nationality: "British"},
		{Name: "SMITH, Alan", OfficerRole: "secretary", AppointedOn: "2016-02-01", Nationality: "British"},
		{Name: "ROE, Richard", OfficerRole: "director", AppointedOn: "2014-01-01", ResignedOn: "2019-05-31"},
	}, nil
}

func (Registry) PSC(_ context.Context, number string) ([]companieshouse.PSC, error) {
	if number == shellHoldingsNumber {
		offshore := companieshouse.PSC{
			Name:             "HARBOUR NOMINEES (BVI) LTD",
			Kind:             "corporate-entity-person-with-significant-control",
			NaturesOfControl: []string{"ownership-of-shares-75-to-100-percent"},
			NotifiedOn:       "2016-04-06",
		}
		offshore.Identification.CountryRegistered = "British Virgin Islands"
		offshore.Identification.LegalForm = "Limited Company"
		return []companieshouse.PSC{offshore}, nil
	}

	shell := companieshouse.PSC{
		Name:             "VANTAGE SHELL HOLDINGS LTD",
		Kind:             "corporate-entity-person-with-significant-control",
		NaturesOfControl: []string{"ownership-of-shares-75-to-100-percent", "voting-rights-75-to-100-percent"},
		NotifiedOn:       "2016-04-06",
	}
	shell.Identification.RegistrationNumber = shellHoldingsNumber
	shell.Identification.CountryRegistered = "England"
	shell.Identification.PlaceRegistered = "Companies House"

	ceased := companieshouse.PSC{
		Name:             "Mr Richard Roe",
		Kind:             "individual-person-with-significant-control",
		NaturesOfControl: []string{"ownership-of-shares-25-to-50-percent"},
		NotifiedOn:       "2016-04-06",
		CeasedOn:         "2019-05-31",
	}
	return []companieshouse.PSC{shell, ceased}, nil
}

func (Registry) Charges(_ context.Context, number string) (*companieshouse.ChargeList, error) {
	if number == shellHoldingsNumber {
		return &companieshouse.ChargeList{Items: []companieshouse.Charge{}}, nil
	}
	prefix := strings.ToLower(number)
	items := []companieshouse.Charge{
		newCharge(prefix+"0003", 3, "outstanding", "2021-11-02", "", "A registered charge", "Arrow Bridging Finance Ltd"),
		newCharge(prefix+"0002", 2, "part-satisfied", "2018-07-19", "", "A registered charge", "Shawbrook Bank Limited"),
		newCharge(prefix+"0001", 1, "fully-satisfied", "2015-03-12", "2018-07-01", "Legal charge", "Barclays Bank PLC"),
	}
	return &companieshouse.ChargeList{
		TotalCount:         len(items),
		UnfilteredCount:    len(items),
		SatisfiedCount:     1,
		PartSatisfiedCount: 1,
		Items:              items,
	}, nil
}

func newCharge(code string, n int, status, created, satisfied, description, lender string) companieshouse.Charge {
	c := companieshouse.Charge{
		ChargeCode:   code,
		ChargeNumber: n,
		Status:       status,
		CreatedOn:    created,
		DeliveredOn:  created,
		SatisfiedOn:  satisfied,
	}
	c.Classification.Type = "charge-description"
	c.Classification.Description = description
	c.SecuredDetails.Type = "amount-secured"
	c.SecuredDetails.Description = "All monies due or to become due"
	c.PersonsEntitled = append(c.PersonsEntitled, struct {
		Name string `json:"name"`
	}{Name: lender})
	return c
}
