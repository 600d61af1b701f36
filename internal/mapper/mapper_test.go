package mapper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rboulanger/fuelsync/internal/extract"
	"github.com/rboulanger/fuelsync/internal/resolve"
	"github.com/rboulanger/fuelsync/pkg/config"
)

func strictMapper() *Mapper {
	return New(config.ImportConfig{
		TenderMode: config.TenderStrict,
		TenderCodes: config.TenderCodes{
			Card: "0", Cash: "CASH", Voucher: "VOUC", Unknown: "UNKN",
		},
	})
}

func mappedMapper() *Mapper {
	return New(config.ImportConfig{
		TenderMode: config.TenderMapped,
		TenderCodes: config.TenderCodes{
			Card: "0", Cash: "CASH", Voucher: "VOUC", Unknown: "UNKN",
		},
	})
}

func baseRow() extract.Row {
	return extract.Row{
		TransStartAt:   "2026-01-15T08:30:00+02:00",
		TransEndAt:     "2026-01-15T08:32:10+02:00",
		TransNumber:    "1234",
		StationCode:    "ST01",
		TerminalNumber: "01",

		Quantity:        "45.5",
		SellUnitPrice:   "1.979",
		MarkedUnitPrice: "1.999",
		SellAmount:      "90.04",
		MarkedAmount:    "90.95",
		Currency:        "EUR",
		TaxRate:         "21",
		NetTotal:        "74.41",
		TaxTotal:        "15.63",

		ArticleNumber:      "12",
		ArticleCode:        "D",
		ArticleDescription: "Diesel",
		DispenserNumber:    "2",
		NozzleNumber:       "1",

		PaymentCard:    "True",
		PaymentCash:    "False",
		PaymentVoucher: "False",
	}
}

func baseKeys() resolve.Keys {
	tankID, tankNo := 40, 2
	return resolve.Keys{StationID: 1, TerminalID: 3, ArticleID: 12, TankID: &tankID, TankNumber: &tankNo}
}

func TestMapTransactionFact(t *testing.T) {
	tx, pay, err := strictMapper().Map(baseRow(), baseKeys(), 2)
	require.NoError(t, err)

	wantAt, _ := time.Parse(time.RFC3339, "2026-01-15T08:30:00+02:00")
	assert.True(t, tx.TransAt.Equal(wantAt))
	require.NotNil(t, tx.TransEndAt)
	assert.Equal(t, 1234, tx.TransNumber)
	assert.Equal(t, 3, tx.TerminalID)
	assert.Equal(t, TransTypeFleet, tx.TransType)
	assert.True(t, tx.Quantity.Equal(decimal.RequireFromString("45.5")))
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("90.04")))
	assert.Equal(t, 12, tx.ArticleID)
	require.NotNil(t, tx.TankNumber)
	assert.Equal(t, 2, *tx.TankNumber)
	assert.Equal(t, FlagNo, tx.WasExported)
	assert.Equal(t, FlagYes, tx.FleetImport)
	assert.Equal(t, FlagNo, tx.ExportedCommon)

	assert.Equal(t, "0", pay.TenderCode)
	assert.Equal(t, PaymentSequence, pay.Number)
	require.NotNil(t, pay.AmountNet)
	assert.True(t, pay.AmountNet.Equal(decimal.RequireFromString("74.41")))
}

func TestMapDiscount(t *testing.T) {
	t.Run("marked above sold", func(t *testing.T) {
		row := baseRow()
		row.SellAmount = "9.50"
		row.MarkedAmount = "10.00"
		tx, _, err := strictMapper().Map(row, baseKeys(), 1)
		require.NoError(t, err)
		require.NotNil(t, tx.Discount)
		assert.True(t, tx.Discount.Equal(decimal.RequireFromString("0.50")))
	})

	t.Run("equal means no discount", func(t *testing.T) {
		row := baseRow()
		row.SellAmount = "10.00"
		row.MarkedAmount = "10.00"
		tx, _, err := strictMapper().Map(row, baseKeys(), 1)
		require.NoError(t, err)
		assert.Nil(t, tx.Discount)
	})

	t.Run("negative difference ignored", func(t *testing.T) {
		row := baseRow()
		row.SellAmount = "10.00"
		row.MarkedAmount = "9.00"
		tx, _, err := strictMapper().Map(row, baseKeys(), 1)
		require.NoError(t, err)
		assert.Nil(t, tx.Discount)
	})
}

func TestMapTenderStrict(t *testing.T) {
	tests := []struct {
		name    string
		card    string
		cash    string
		voucher string
		want    string
		wantErr bool
	}{
		{name: "card only", card: "True", cash: "False", voucher: "False", want: "0"},
		{name: "case-insensitive true", card: "true", cash: "", voucher: "", want: "0"},
		{name: "cash rejected", card: "False", cash: "True", voucher: "False", wantErr: true},
		{name: "card and voucher rejected", card: "True", cash: "False", voucher: "True", wantErr: true},
		{name: "cash and voucher rejected", card: "False", cash: "True", voucher: "True", wantErr: true},
		{name: "nothing set rejected", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := baseRow()
			row.PaymentCard, row.PaymentCash, row.PaymentVoucher = tt.card, tt.cash, tt.voucher
			_, pay, err := strictMapper().Map(row, baseKeys(), 1)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "payment combination")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pay.TenderCode)
		})
	}
}

func TestMapTenderMapped(t *testing.T) {
	tests := []struct {
		name    string
		card    string
		cash    string
		voucher string
		want    string
	}{
		{name: "card", card: "True", want: "0"},
		{name: "cash", cash: "True", want: "CASH"},
		{name: "voucher", voucher: "1", want: "VOUC"},
		{name: "card wins over cash", card: "True", cash: "True", want: "0"},
		{name: "nothing set falls back", want: "UNKN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := baseRow()
			row.PaymentCard, row.PaymentCash, row.PaymentVoucher = tt.card, tt.cash, tt.voucher
			_, pay, err := mappedMapper().Map(row, baseKeys(), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pay.TenderCode)
		})
	}
}

func TestMapMileage(t *testing.T) {
	tests := []struct {
		input   string
		want    *int
		wantErr bool
	}{
		{input: "40066", want: intPtr(40066)},
		{input: "40066.00", want: intPtr(40066)},
		{input: "40066.50", want: intPtr(40067)},
		{input: "", want: nil},
		{input: "NULL", want: nil},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			row := baseRow()
			row.Mileage = tt.input
			_, pay, err := strictMapper().Map(row, baseKeys(), 9)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "Mileage")
				assert.Contains(t, err.Error(), "row 9")
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, pay.Mileage)
			} else {
				require.NotNil(t, pay.Mileage)
				assert.Equal(t, *tt.want, *pay.Mileage)
			}
		})
	}
}

func TestMapNullTokenAsymmetry(t *testing.T) {
	row := baseRow()
	row.Quantity = "NULL"
	row.SellAmount = ""
	row.NetTotal = "NULL"
	row.TaxTotal = ""

	tx, pay, err := strictMapper().Map(row, baseKeys(), 1)
	require.NoError(t, err)

	assert.True(t, tx.Quantity.IsZero(), "transaction quantity collapses to zero")
	assert.True(t, tx.Amount.IsZero())
	assert.Nil(t, pay.AmountNet, "payment breakdown stays null")
	assert.Nil(t, pay.AmountTax)
}

func TestMapUnitPriceDerivedFromAmount(t *testing.T) {
	row := baseRow()
	row.SellUnitPrice = ""
	row.Quantity = "2"
	row.SellAmount = "10.00"

	tx, _, err := strictMapper().Map(row, baseKeys(), 1)
	require.NoError(t, err)
	assert.True(t, tx.UnitPriceSold.Equal(decimal.RequireFromString("5")))
}

func TestMapHardErrors(t *testing.T) {
	t.Run("missing start timestamp", func(t *testing.T) {
		row := baseRow()
		row.TransStartAt = ""
		_, _, err := strictMapper().Map(row, baseKeys(), 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Transaction_StartDateTime")
	})

	t.Run("garbled timestamp", func(t *testing.T) {
		row := baseRow()
		row.TransStartAt = "15/01/2026 08:30"
		_, _, err := strictMapper().Map(row, baseKeys(), 3)
		require.Error(t, err)
	})

	t.Run("invalid transaction number", func(t *testing.T) {
		row := baseRow()
		row.TransNumber = "12a"
		_, _, err := strictMapper().Map(row, baseKeys(), 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Transaction_Number")
	})

	t.Run("invalid dispenser", func(t *testing.T) {
		row := baseRow()
		row.DispenserNumber = "x"
		_, _, err := strictMapper().Map(row, baseKeys(), 3)
		require.Error(t, err)
	})
}

func TestMapPANStripEquals(t *testing.T) {
	row := baseRow()
	row.CardOnePAN = "7001234567="

	_, pay, err := strictMapper().Map(row, baseKeys(), 1)
	require.NoError(t, err)
	require.NotNil(t, pay.CardPAN)
	assert.Equal(t, "7001234567=", *pay.CardPAN, "separator kept by default")

	cfg := config.ImportConfig{
		TenderMode:     config.TenderStrict,
		TenderCodes:    config.TenderCodes{Card: "0"},
		PANStripEquals: true,
	}
	_, pay, err = New(cfg).Map(row, baseKeys(), 1)
	require.NoError(t, err)
	require.NotNil(t, pay.CardPAN)
	assert.Equal(t, "7001234567", *pay.CardPAN)
}

func TestMapCustomerName(t *testing.T) {
	t.Run("reference name wins", func(t *testing.T) {
		row := baseRow()
		row.CustomerCompany = "From Extract"
		keys := baseKeys()
		name := "From Reference"
		keys.CustomerName = &name
		_, pay, err := strictMapper().Map(row, keys, 1)
		require.NoError(t, err)
		assert.Equal(t, "From Reference", *pay.CustomerName)
	})

	t.Run("company from extract", func(t *testing.T) {
		row := baseRow()
		row.CustomerCompany = "Acme"
		_, pay, err := strictMapper().Map(row, baseKeys(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Acme", *pay.CustomerName)
	})

	t.Run("first and last name", func(t *testing.T) {
		row := baseRow()
		row.CustomerFirstName = "Jana"
		row.CustomerLastName = "Ozola"
		_, pay, err := strictMapper().Map(row, baseKeys(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Jana Ozola", *pay.CustomerName)
	})

	t.Run("driver name derived the same way", func(t *testing.T) {
		row := baseRow()
		row.DriverFirstName = "Ivo"
		row.DriverLastName = "Bērziņš"
		_, pay, err := strictMapper().Map(row, baseKeys(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Ivo Bērziņš", *pay.EmployeeName)
		assert.Nil(t, pay.CustomerName)
	})
}

func intPtr(i int) *int { return &i }
