// Package extract reads fleet-card extract files into typed rows.
// One extract row carries a full transaction with its line item, cards,
// customer, driver and vehicle context. Columns are matched by header
// name, so upstream column reordering does not break the import.
package extract

// Row is a raw extract row. All fields stay strings here; parsing and
// validation happen later so a bad value can be reported with its row
// number instead of failing the whole file.
type Row struct {
	TransStartAt   string `csv:"Transaction_StartDateTime"`
	TransEndAt     string `csv:"Transaction_EndDateTime"`
	TransNumber    string `csv:"Transaction_Number"`
	StationCode    string `csv:"Station_Code"`
	TerminalCode   string `csv:"Terminal_Code"`
	TerminalNumber string `csv:"Terminal_Number"`

	Quantity        string `csv:"TransactionLineItem_Quantity_Value"`
	SellUnitPrice   string `csv:"TransactionLineItem_GrossSellUnitPrice_Amount"`
	MarkedUnitPrice string `csv:"TransactionLineItem_GrossMarkedUnitPrice_Amount"`
	SellAmount      string `csv:"TransactionLineItem_GrossSellAmount_Amount"`
	MarkedAmount    string `csv:"TransactionLineItem_GrossMarkedAmount_Amount"`
	Currency        string `csv:"TransactionLineItem_GrossSellAmount_CurrencyISOCode"`
	TaxRate         string `csv:"TransactionLineItem_TaxRate_Value"`
	NetTotal        string `csv:"Transaction_NetSellTotalPrice_Amount"`
	TaxTotal        string `csv:"Transaction_SellTaxAmount_Amount"`

	ArticleNumber      string `csv:"TransactionLineItem_Article_Number"`
	ArticleCode        string `csv:"TransactionLineItem_Article_Code"`
	ArticleDescription string `csv:"TransactionLineItem_Article_Description"`
	DispenserNumber    string `csv:"TransactionLineItem_DispenserNumber"`
	NozzleNumber       string `csv:"TransactionLineItem_NozzleNumber"`

	ExportedCommon   string `csv:"Transaction_IsExportedCommon"`
	ExportedCustomer string `csv:"Transaction_IsExportedCustomer"`

	CardOnePAN    string `csv:"CardOne_Pan"`
	CardOneNumber string `csv:"CardOne_Number"`
	CardOneHolder string `csv:"CardOne_Holder"`
	CardTwoPAN    string `csv:"CardTwo_Pan"`
	CardTwoNumber string `csv:"CardTwo_Number"`
	CardTwoHolder string `csv:"CardTwo_Holder"`

	CustomerNumber      string `csv:"Customer_Number"`
	CustomerFirstName   string `csv:"Customer_FirstName"`
	CustomerLastName    string `csv:"Customer_LastName"`
	CustomerCompany     string `csv:"Customer_Company"`
	ContractNumber      string `csv:"Contract_Number"`
	ContractDescription string `csv:"Contract_Description"`

	DriverNumber    string `csv:"Driver_Number"`
	DriverFirstName string `csv:"Driver_FirstName"`
	DriverLastName  string `csv:"Driver_LastName"`

	VehicleNumber       string `csv:"Vehicle_Number"`
	VehicleDescription  string `csv:"Vehicle_Description"`
	VehicleLicensePlate string `csv:"Vehicle_LicensePlate"`
	Mileage             string `csv:"Mileage"`

	PaymentCard    string `csv:"Payment_Card"`
	PaymentCash    string `csv:"Payment_Cash"`
	PaymentVoucher string `csv:"Payment_Voucher"`

	FiscalDocType   string `csv:"Transaction_AdditionalProperties_Fiscalization_DocumentType"`
	FiscalAmount    string `csv:"Transaction_AdditionalProperties_Fiscalization_Amount"`
	FiscalDiscount  string `csv:"Transaction_AdditionalProperties_Fiscalization_Discount"`
	FiscalTaxAmount string `csv:"Transaction_AdditionalProperties_Fiscalization_TaxAmount"`
}
