package payment

import (
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

const (
	StagingURL    = "https://securegw-stage.paytm.in/order/process"
	ProductionURL = "https://securegw.paytm.in/order/process"

	// WEBSTAGING untuk test, DEFAULT untuk production
	WebsiteProduction = "DEFAULT"

	StatusSuccess = "TXN_SUCCESS"
	defaultMobile = "9999999999"
)

type Paytm struct {
	MID          string
	MerchantKey  string
	Website      string
	IndustryType string
	ChannelID    string
	CallbackURL  string
}

type Customer struct {
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Initiation struct {
	URL    string            `json:"paytmUrl"`
	Params map[string]string `json:"paytmParams"`
}

func (p Paytm) URL() string {
	if p.Website == WebsiteProduction {
		return ProductionURL
	}
	return StagingURL
}

// Initiate builds the signed parameter set the browser posts to the gateway.
func (p Paytm) Initiate(orderID string, amount float64, c Customer) (Initiation, error) {
	if strings.TrimSpace(orderID) == "" {
		return Initiation{}, storeerr.InvalidInput("order id is required")
	}
	if amount <= 0 {
		return Initiation{}, storeerr.InvalidInput("amount must be positive, got %v", amount)
	}
	if strings.TrimSpace(c.Email) == "" {
		return Initiation{}, storeerr.InvalidInput("customer email is required")
	}
	mobile := c.Phone
	if mobile == "" {
		mobile = defaultMobile
	}
	params := map[string]string{
		"MID":              p.MID,
		"WEBSITE":          p.Website,
		"INDUSTRY_TYPE_ID": p.IndustryType,
		"CHANNEL_ID":       p.ChannelID,
		"ORDER_ID":         orderID,
		"CUST_ID":          c.Email,
		"TXN_AMOUNT":       strconv.FormatFloat(amount, 'f', -1, 64),
		"CALLBACK_URL":     p.CallbackURL,
		"EMAIL":            c.Email,
		"MOBILE_NO":        mobile,
	}
	params[ChecksumField] = Checksum(params, p.MerchantKey)
	return Initiation{URL: p.URL(), Params: params}, nil
}

// Record is what a successful callback leaves under payment:<orderId>.
type Record struct {
	OrderID       string            `json:"orderId"`
	TransactionID string            `json:"transactionId"`
	Amount        string            `json:"amount"`
	Status        string            `json:"status"`
	PaymentMode   string            `json:"paymentMode,omitempty"`
	BankTxnID     string            `json:"bankTxnId,omitempty"`
	GatewayName   string            `json:"gatewayName,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Raw           map[string]string `json:"rawResponse"`
}

// Callback is the verified gateway answer.
type Callback struct {
	OrderID       string
	TransactionID string
	Amount        string
	Status        string
	Message       string
	Params        map[string]string
}

func (c Callback) Succeeded() bool { return c.Status == StatusSuccess }

// ParseCallback verifies the checksum and lifts the interesting fields.
func (p Paytm) ParseCallback(params map[string]string) (Callback, error) {
	if !Verify(params, p.MerchantKey) {
		return Callback{}, storeerr.InvalidInput("checksum verification failed")
	}
	rest := make(map[string]string, len(params))
	for k, v := range params {
		if k != ChecksumField {
			rest[k] = v
		}
	}
	return Callback{
		OrderID:       rest["ORDERID"],
		TransactionID: rest["TXNID"],
		Amount:        rest["TXNAMOUNT"],
		Status:        rest["STATUS"],
		Message:       rest["RESPMSG"],
		Params:        rest,
	}, nil
}

func (c Callback) Record(now time.Time) Record {
	return Record{
		OrderID:       c.OrderID,
		TransactionID: c.TransactionID,
		Amount:        c.Amount,
		Status:        "SUCCESS",
		PaymentMode:   c.Params["PAYMENTMODE"],
		BankTxnID:     c.Params["BANKTXNID"],
		GatewayName:   c.Params["GATEWAYNAME"],
		Timestamp:     now.UTC(),
		Raw:           c.Params,
	}
}
