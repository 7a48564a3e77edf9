package fixtures

// Receipt is a canned OCR text for one banking app screen.
type Receipt struct {
	Name string
	Bank string
	Text string
}

// Canned receipts. Amounts, names and accounts match InvoiceTestMerchant unless noted.
var (
	// ReceiptABAExact matches the test merchant invoice on every field.
	ReceiptABAExact = Receipt{
		Name: "aba-exact",
		Bank: "aba",
		Text: `ABA Bank
Transfer Successful
-100,000 KHR
Transferred to: TEST MERCHANT
To account: 001 234 567
Trx. ID: 17289345612
Date: 14/10/2026 10:15`,
	}

	// ReceiptABAHalfAmount pays half the invoiced amount.
	ReceiptABAHalfAmount = Receipt{
		Name: "aba-half-amount",
		Bank: "aba",
		Text: `ABA Bank
Transfer Successful
-50,000 KHR
Transferred to: TEST MERCHANT
To account: 001 234 567
Trx. ID: 17289345613
Date: 14/10/2026 10:20`,
	}

	// ReceiptABAUSD pays the right number in the wrong currency.
	ReceiptABAUSD = Receipt{
		Name: "aba-usd",
		Bank: "aba",
		Text: `ABA Bank
Transfer Successful
-100,000 USD
Transferred to: TEST MERCHANT
To account: 001 234 567`,
	}

	// ReceiptGeneric has no bank keywords and no labeled fields.
	ReceiptGeneric = Receipt{
		Name: "generic",
		Text: `Payment complete
TEST MERCHANT
001234567
100,000 KHR`,
	}

	// ReceiptUnreadable carries nothing usable.
	ReceiptUnreadable = Receipt{
		Name: "unreadable",
		Text: "~~ ## ~~",
	}
)

// InvoiceTestMerchant values.
const (
	TestMerchantName    = "TEST MERCHANT"
	TestMerchantAccount = "001234567"
	TestMerchantAmount  = 100000
	TestMerchantCurr    = "KHR"
)
