// Package mapper converts resolved extract rows into destination facts.
// Mapping is pure: all reference lookups happen before, all writes after.
package mapper

import (
	"time"

	"github.com/shopspring/decimal"
)

// Flag constants shared with the historical feed; the reporting side
// filters on them.
const (
	TransTypeFleet  = "X"
	FlagNo          = "N"
	FlagYes         = "Y"
	AuditUser       = "fuelsync"
	PaymentSequence = 1
)

// TransactionFact is one row for the transactions destination table.
// ID is assigned by the importer from the in-memory id counter.
type TransactionFact struct {
	ID          int
	TransAt     time.Time
	TransEndAt  *time.Time
	TransNumber int
	TerminalID  int
	TransType   string

	Quantity        decimal.Decimal
	UnitPriceSold   decimal.Decimal
	UnitPriceMarked decimal.Decimal
	Amount          decimal.Decimal
	Currency        *string
	TaxRate         decimal.Decimal
	Discount        *decimal.Decimal

	ArticleID          int
	ArticleCode        *string
	ArticleDescription *string

	DeviceAddress    *int
	SubDeviceAddress *int
	TankNumber       *int

	WasExported      string
	ExportedCommon   string
	ExportedCustomer string
	ModifiedFlag     string
	FleetImport      string

	FiscalDocType   *string
	FiscalAmount    *decimal.Decimal
	FiscalDiscount  *decimal.Decimal
	FiscalTaxAmount *decimal.Decimal
}

// PaymentFact is one row for the payments destination table. It
// denormalizes the customer/card/vehicle context alongside the money
// columns, mirroring the historical feed.
type PaymentFact struct {
	ID            int
	TransactionID int
	TransAt       time.Time
	TransNumber   int
	TerminalID    int
	TenderCode    string

	Quantity      decimal.Decimal
	UnitPriceSold decimal.Decimal
	Amount        decimal.Decimal
	AmountNet     *decimal.Decimal
	AmountTax     *decimal.Decimal
	TaxRate       decimal.Decimal
	Currency      *string

	ArticleID          int
	ArticleCode        *string
	ArticleDescription *string

	DeviceAddress    *int
	SubDeviceAddress *int
	StationCode      *string
	TerminalNumber   *string

	MandatorID          *int
	MandatorNumber      *string
	MandatorDescription *string

	ContractID     *int
	ContractNumber *string

	CardID     *int
	CardPAN    *string
	CardNumber *string
	CardHolder *string

	CardTwoID     *int
	CardTwoPAN    *string
	CardTwoNumber *string
	CardTwoHolder *string

	CustomerID     *int
	CustomerNumber *string
	CustomerName   *string

	EmployeeNumber *string
	EmployeeName   *string

	VehicleID           *int
	VehicleLicensePlate *string
	Mileage             *int

	TankID          *int
	DispenserNumber *string
	NozzleNumber    *string

	Number       int
	ModifiedFlag string
	FleetImport  string
}
