package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rboulanger/fuelsync/internal/extract"
	"github.com/rboulanger/fuelsync/internal/normalize"
	"github.com/rboulanger/fuelsync/internal/resolve"
	"github.com/rboulanger/fuelsync/pkg/config"
)

// Mapper builds destination facts from extract rows. It carries only
// config; all state lives in the arguments.
type Mapper struct {
	tenderMode     config.TenderMode
	tenderCodes    config.TenderCodes
	panStripEquals bool
	loc            *time.Location
}

func New(cfg config.ImportConfig) *Mapper {
	return &Mapper{
		tenderMode:     cfg.TenderMode,
		tenderCodes:    cfg.TenderCodes,
		panStripEquals: cfg.PANStripEquals,
		loc:            time.Local,
	}
}

// Map converts one resolved row into its transaction and payment facts.
// Fact ids are zero; the importer assigns them at write time.
func (m *Mapper) Map(row extract.Row, keys resolve.Keys, rowNum int) (TransactionFact, PaymentFact, error) {
	transAt, err := m.parseTime(row.TransStartAt, "Transaction_StartDateTime", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	transEndAt, err := m.parseTimePtr(row.TransEndAt, "Transaction_EndDateTime", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}

	transNumber, err := parseInt(row.TransNumber, "Transaction_Number", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}

	quantity, err := parseDecimal(row.Quantity, "TransactionLineItem_Quantity_Value", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	sellUnit, err := parseDecimal(row.SellUnitPrice, "TransactionLineItem_GrossSellUnitPrice_Amount", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	markedUnit, err := parseDecimal(row.MarkedUnitPrice, "TransactionLineItem_GrossMarkedUnitPrice_Amount", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	sellAmount, err := parseDecimal(row.SellAmount, "TransactionLineItem_GrossSellAmount_Amount", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	markedAmount, err := parseDecimal(row.MarkedAmount, "TransactionLineItem_GrossMarkedAmount_Amount", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	taxRate, err := parseDecimal(row.TaxRate, "TransactionLineItem_TaxRate_Value", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	amountNet, err := parseDecimalPtr(row.NetTotal, "Transaction_NetSellTotalPrice_Amount", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	amountTax, err := parseDecimalPtr(row.TaxTotal, "Transaction_SellTaxAmount_Amount", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}

	device, err := parseIntPtr(row.DispenserNumber, "TransactionLineItem_DispenserNumber", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	subDevice, err := parseIntPtr(row.NozzleNumber, "TransactionLineItem_NozzleNumber", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}

	mileage, err := parseMileage(row.Mileage, rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}

	tenderCode, err := m.resolveTender(row, rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}

	fiscalAmount, err := parseDecimalPtr(row.FiscalAmount, "Transaction_AdditionalProperties_Fiscalization_Amount", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	fiscalDiscount, err := parseDecimalPtr(row.FiscalDiscount, "Transaction_AdditionalProperties_Fiscalization_Discount", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}
	fiscalTax, err := parseDecimalPtr(row.FiscalTaxAmount, "Transaction_AdditionalProperties_Fiscalization_TaxAmount", rowNum)
	if err != nil {
		return TransactionFact{}, PaymentFact{}, err
	}

	sellAmount = sellAmount.Round(2)
	sellUnit = sellUnit.Round(2)
	markedUnit = markedUnit.Round(2)

	// A marked price above the sold price is a granted discount; equal or
	// below means none.
	var discount *decimal.Decimal
	if d := markedAmount.Sub(sellAmount).Round(2); d.IsPositive() {
		discount = &d
	}

	// Terminals without a unit price feed still send amount and volume.
	if sellUnit.IsZero() && !quantity.IsZero() && !sellAmount.IsZero() {
		sellUnit = sellAmount.Div(quantity).Round(2)
	}

	tx := TransactionFact{
		TransAt:     transAt,
		TransEndAt:  transEndAt,
		TransNumber: transNumber,
		TerminalID:  keys.TerminalID,
		TransType:   TransTypeFleet,

		Quantity:        quantity,
		UnitPriceSold:   sellUnit,
		UnitPriceMarked: markedUnit,
		Amount:          sellAmount,
		Currency:        strPtr(row.Currency),
		TaxRate:         taxRate,
		Discount:        discount,

		ArticleID:          keys.ArticleID,
		ArticleCode:        strPtr(row.ArticleCode),
		ArticleDescription: strPtr(row.ArticleDescription),

		DeviceAddress:    device,
		SubDeviceAddress: subDevice,
		TankNumber:       keys.TankNumber,

		WasExported:      FlagNo,
		ExportedCommon:   yesNo(parseBool(row.ExportedCommon)),
		ExportedCustomer: yesNo(parseBool(row.ExportedCustomer)),
		ModifiedFlag:     FlagNo,
		FleetImport:      FlagYes,

		FiscalDocType:   strPtr(row.FiscalDocType),
		FiscalAmount:    fiscalAmount,
		FiscalDiscount:  fiscalDiscount,
		FiscalTaxAmount: fiscalTax,
	}

	pay := PaymentFact{
		TransAt:     transAt,
		TransNumber: transNumber,
		TerminalID:  keys.TerminalID,
		TenderCode:  tenderCode,

		Quantity:      quantity,
		UnitPriceSold: sellUnit,
		Amount:        sellAmount,
		AmountNet:     roundPtr(amountNet),
		AmountTax:     roundPtr(amountTax),
		TaxRate:       taxRate,
		Currency:      strPtr(row.Currency),

		ArticleID:          keys.ArticleID,
		ArticleCode:        strPtr(row.ArticleCode),
		ArticleDescription: strPtr(row.ArticleDescription),

		DeviceAddress:    device,
		SubDeviceAddress: subDevice,
		StationCode:      strPtr(row.StationCode),
		TerminalNumber:   strPtr(row.TerminalNumber),

		MandatorID:          keys.MandatorID,
		MandatorNumber:      keys.MandatorNumber,
		MandatorDescription: keys.MandatorDescription,

		ContractID:     keys.ContractID,
		ContractNumber: strPtr(row.ContractNumber),

		CardID:     keys.CardOneID,
		CardPAN:    panPtr(row.CardOnePAN, m.panStripEquals),
		CardNumber: strPtr(row.CardOneNumber),
		CardHolder: strPtr(row.CardOneHolder),

		CardTwoID:     keys.CardTwoID,
		CardTwoPAN:    panPtr(row.CardTwoPAN, m.panStripEquals),
		CardTwoNumber: strPtr(row.CardTwoNumber),
		CardTwoHolder: strPtr(row.CardTwoHolder),

		CustomerID:     keys.CustomerID,
		CustomerNumber: strPtr(row.CustomerNumber),
		CustomerName:   customerName(row, keys),

		EmployeeNumber: strPtr(row.DriverNumber),
		EmployeeName:   fullName(row.DriverFirstName, row.DriverLastName),

		VehicleID:           keys.VehicleID,
		VehicleLicensePlate: strPtr(row.VehicleLicensePlate),
		Mileage:             mileage,

		TankID:          keys.TankID,
		DispenserNumber: strPtr(row.DispenserNumber),
		NozzleNumber:    strPtr(row.NozzleNumber),

		Number:       PaymentSequence,
		ModifiedFlag: FlagNo,
		FleetImport:  FlagYes,
	}

	return tx, pay, nil
}

// resolveTender maps the three payment-method booleans onto a tender
// code. Strict mode refuses anything but a plain card payment; mapped
// mode assigns each method its configured code.
func (m *Mapper) resolveTender(row extract.Row, rowNum int) (string, error) {
	card := parseBool(row.PaymentCard)
	cash := parseBool(row.PaymentCash)
	voucher := parseBool(row.PaymentVoucher)

	if m.tenderMode == config.TenderMapped {
		switch {
		case card:
			return m.tenderCodes.Card, nil
		case cash:
			return m.tenderCodes.Cash, nil
		case voucher:
			return m.tenderCodes.Voucher, nil
		default:
			return m.tenderCodes.Unknown, nil
		}
	}

	if card && !cash && !voucher {
		return m.tenderCodes.Card, nil
	}
	return "", fmt.Errorf("row %d: unsupported payment combination (card=%s cash=%s voucher=%s)",
		rowNum, row.PaymentCard, row.PaymentCash, row.PaymentVoucher)
}

func (m *Mapper) parseTime(s, field string, rowNum int) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("row %d: empty %s", rowNum, field)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("row %d: invalid %s %q: %w", rowNum, field, s, err)
	}
	return t.In(m.loc), nil
}

func (m *Mapper) parseTimePtr(s, field string, rowNum int) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := m.parseTime(s, field, rowNum)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func blank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "NULL")
}

func parseInt(s, field string, rowNum int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("row %d: empty %s", rowNum, field)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("row %d: invalid %s %q", rowNum, field, s)
	}
	return n, nil
}

func parseIntPtr(s, field string, rowNum int) (*int, error) {
	if blank(s) {
		return nil, nil
	}
	n, err := parseInt(s, field, rowNum)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// parseDecimal treats blank and the literal NULL token as zero; the
// transaction money columns are NOT NULL downstream.
func parseDecimal(s, field string, rowNum int) (decimal.Decimal, error) {
	if blank(s) {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("row %d: invalid %s %q", rowNum, field, s)
	}
	return d, nil
}

// parseDecimalPtr keeps blank as nil; the payment breakdown columns are
// nullable and a missing value must stay distinguishable from zero.
func parseDecimalPtr(s, field string, rowNum int) (*decimal.Decimal, error) {
	if blank(s) {
		return nil, nil
	}
	d, err := parseDecimal(s, field, rowNum)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseMileage accepts integers and decimal odometer readings; decimals
// round half away from zero. Anything else is a row error.
func parseMileage(s string, rowNum int) (*int, error) {
	if blank(s) {
		return nil, nil
	}
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("row %d: invalid Mileage %q", rowNum, s)
	}
	n := int(d.Round(0).IntPart())
	return &n, nil
}

func parseBool(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "true") || s == "1"
}

func yesNo(b bool) string {
	if b {
		return FlagYes
	}
	return FlagNo
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func panPtr(raw string, stripEquals bool) *string {
	p := normalize.PAN(raw, stripEquals)
	if p == "" {
		return nil
	}
	return &p
}

func roundPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := d.Round(2)
	return &r
}

// customerName prefers the reference display name, then the extract's
// company, then "first last".
func customerName(row extract.Row, keys resolve.Keys) *string {
	if keys.CustomerName != nil {
		return keys.CustomerName
	}
	if s := strings.TrimSpace(row.CustomerCompany); s != "" {
		return &s
	}
	return fullName(row.CustomerFirstName, row.CustomerLastName)
}

func fullName(first, last string) *string {
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if name == "" {
		return nil
	}
	return &name
}
